package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/timers/internal/server"
	"github.com/psantana5/timers/pkg/auth"
	"github.com/psantana5/timers/pkg/logging"
	"github.com/psantana5/timers/pkg/metrics"
	"github.com/psantana5/timers/pkg/shutdown"
	tlsutil "github.com/psantana5/timers/pkg/tls"
	"github.com/psantana5/timers/pkg/tracing"
)

var (
	listenAddr string
	selfSigned bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timer control API, metrics and a timed sample workload",
	Long: `Starts an HTTP server exposing:

  GET  /health                 liveness
  GET  /metrics                Prometheus metrics of reported timers
  GET  /timers                 capture state
  POST /timers/enable|disable  toggle capture
  POST /timers/{name}/start    start a timer
  POST /timers/{name}/stop     stop a timer
  POST /timers/flush|report    drain the registry
  POST /work                   timed sample workload, reported per request

Example:
  timers serve --enabled --listen :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides server.listen)")
	serveCmd.Flags().BoolVar(&selfSigned, "self-signed", false, "serve HTTPS with a generated self-signed certificate when server.tls_cert is unset")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Close()

	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}

	reg := cfg.NewRegistry()

	var collector *metrics.TimerCollector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewTimerCollector(cfg.Metrics.Namespace, nil)
		if err != nil {
			return fmt.Errorf("failed to create metrics collector: %w", err)
		}
		reg.AddObserver(collector)
	}

	provider, err := tracing.InitTracer(cmd.Context(), tracing.Config{
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return err
	}
	if cfg.Tracing.Enabled {
		reg.AddObserver(tracing.NewSpanObserver(provider))
	}

	sink := cfg.NewReportSink(logger)
	handler := server.NewHandler(reg, logger.WithField("component", "server"), sink, cfg.Timers.ReportLevel, collector)
	if len(cfg.Server.APIKeyHashes) > 0 {
		keys, err := auth.NewKeys(cfg.Server.APIKeyHashes...)
		if err != nil {
			return err
		}
		handler.RequireKeys(keys)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if selfSigned && !cfg.Server.TLSEnabled() {
		if err := useSelfSigned(&cfg.Server.TLSCert, &cfg.Server.TLSKey, cfg.Server.Listen); err != nil {
			return err
		}
		logger.Warn("serving with a self-signed certificate", map[string]interface{}{"cert": cfg.Server.TLSCert})
	}
	if cfg.Server.TLSEnabled() {
		srv.TLSConfig, err = tlsutil.ServerConfig(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.TLSClientCA)
		if err != nil {
			return err
		}
	}

	mgr := shutdown.New(cfg.Server.ShutdownTimeout, logger, reg)
	mgr.Register("tracing", provider.Shutdown)
	mgr.Register("http", shutdown.StopHTTPServer(srv))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", map[string]interface{}{
			"addr":    cfg.Server.Listen,
			"enabled": reg.Enabled(),
			"tls":     srv.TLSConfig != nil,
		})
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.Log.File != "" && cfg.Log.MaxSizeMB > 0 {
		go rotateLogs(cmd.Context(), mgr.Done(), logger, int64(cfg.Log.MaxSizeMB)*1024*1024)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err, ok := <-serveErr; ok && err != nil {
			logger.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
			cancel()
		}
	}()

	waitErr := mgr.Wait(ctx)
	if failed := mgr.Shutdown(); failed > 0 {
		return fmt.Errorf("%d shutdown steps failed", failed)
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// useSelfSigned writes a self-signed certificate for the listen host into a
// private temporary directory.
func useSelfSigned(certFile, keyFile *string, listen string) error {
	dir, err := os.MkdirTemp("", "timers-tls-")
	if err != nil {
		return fmt.Errorf("failed to create certificate directory: %w", err)
	}

	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		host = ""
	}

	*certFile, *keyFile, err = tlsutil.WriteSelfSigned(dir, "timers", 24*time.Hour, host)
	return err
}

func rotateLogs(ctx context.Context, done <-chan struct{}, logger *logging.Logger, maxSize int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := logger.RotateIfNeeded(maxSize); err != nil {
				logger.Warn("log rotation failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
