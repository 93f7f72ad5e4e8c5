package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/timers/pkg/logging"
	"github.com/psantana5/timers/pkg/timers"
)

type step struct {
	name string
	fn   func(context.Context) error
}

// Manager handles graceful shutdown. Every step runs inside a
// "shutdown.<name>" timer and the whole sequence is reported once done.
type Manager struct {
	logger   *logging.Logger
	registry *timers.Registry
	timeout  time.Duration

	mu       sync.Mutex
	steps    []step
	doneChan chan struct{}
	once     sync.Once
}

// New creates a new shutdown manager
func New(timeout time.Duration, logger *logging.Logger, registry *timers.Registry) *Manager {
	return &Manager{
		logger:   logger,
		registry: registry,
		timeout:  timeout,
		doneChan: make(chan struct{}),
	}
}

// Register adds a named shutdown function.
// Functions are called in reverse order (LIFO)
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// Wait blocks until a shutdown signal is received or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	defer m.once.Do(func() {
		close(m.doneChan)
	})

	select {
	case sig := <-sigChan:
		m.logger.Info("Received signal, initiating graceful shutdown", map[string]interface{}{"signal": sig.String()})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed when shutdown is initiated
func (m *Manager) Done() <-chan struct{} {
	return m.doneChan
}

// Shutdown executes all registered shutdown functions and reports their
// timers. It returns the number of steps that failed.
func (m *Manager) Shutdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	failed := 0
	for i := len(m.steps) - 1; i >= 0; i-- {
		s := m.steps[i]

		sw, err := m.registry.Start("shutdown." + s.name)
		if err != nil {
			m.logger.Warn("shutdown step timer not started", map[string]interface{}{"step": s.name, "error": err.Error()})
		}

		if err := s.fn(ctx); err != nil {
			failed++
			m.logger.Error("Shutdown step failed", map[string]interface{}{"step": s.name, "error": err.Error()})
		}

		if sw != nil {
			sw.Stop()
		}
	}

	m.registry.Report(m.logger)
	m.logger.Info("Graceful shutdown complete", map[string]interface{}{"failed_steps": failed})
	return failed
}

// StopHTTPServer creates a shutdown function for http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop HTTP server: %w", err)
		}
		return nil
	}
}

// CloseResource creates a shutdown function for io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return closer.Close()
	}
}
