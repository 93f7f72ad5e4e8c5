package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/timers/pkg/logging"
	"github.com/psantana5/timers/pkg/timers"
)

// EnvPrefix is the prefix for environment overrides, e.g. TIMERS_TIMERS_ENABLED.
const EnvPrefix = "TIMERS"

// Config represents the complete runtime configuration
type Config struct {
	Timers  TimersConfig  `yaml:"timers" json:"timers" mapstructure:"timers"`
	Log     LogConfig     `yaml:"log" json:"log" mapstructure:"log"`
	Server  ServerConfig  `yaml:"server" json:"server" mapstructure:"server"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	Report  ReportConfig  `yaml:"report" json:"report" mapstructure:"report"`
}

// TimersConfig decides whether the registry captures anything
type TimersConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ReportLevel string `yaml:"report_level" json:"report_level" mapstructure:"report_level"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level     string `yaml:"level" json:"level" mapstructure:"level"`
	JSON      bool   `yaml:"json" json:"json" mapstructure:"json"`
	File      string `yaml:"file,omitempty" json:"file,omitempty" mapstructure:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb" mapstructure:"max_size_mb"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Listen          string        `yaml:"listen" json:"listen" mapstructure:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	TLSCert         string        `yaml:"tls_cert,omitempty" json:"tls_cert,omitempty" mapstructure:"tls_cert"`
	TLSKey          string        `yaml:"tls_key,omitempty" json:"tls_key,omitempty" mapstructure:"tls_key"`
	TLSClientCA     string        `yaml:"tls_client_ca,omitempty" json:"tls_client_ca,omitempty" mapstructure:"tls_client_ca"`
	APIKeyHashes    []string      `yaml:"api_key_hashes,omitempty" json:"api_key_hashes,omitempty" mapstructure:"api_key_hashes"`
}

// TLSEnabled reports whether the server should serve HTTPS.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != ""
}

// MetricsConfig configures the Prometheus collector
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" mapstructure:"namespace"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Endpoint    string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	Environment string `yaml:"environment" json:"environment" mapstructure:"environment"`
}

// ReportConfig selects where report records go and bounds how often they
// get there
type ReportConfig struct {
	// Sink is "logger" (the process logger) or "log15".
	Sink  string  `yaml:"sink" json:"sink" mapstructure:"sink"`
	Rate  float64 `yaml:"rate" json:"rate" mapstructure:"rate"`
	Burst int     `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timers.enabled", false)
	v.SetDefault("timers.report_level", timers.LevelInfo)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.tls_client_ca", "")
	v.SetDefault("server.api_key_hashes", []string{})
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "timers")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "timers")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("report.sink", "logger")
	v.SetDefault("report.rate", 0)
	v.SetDefault("report.burst", 1)
}

// NewViper returns a viper instance with defaults and env binding. When
// cfgFile is empty $HOME/.timers/config.yaml is used if present.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".timers"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Timers.ReportLevel) {
	case timers.LevelDebug, timers.LevelInfo, timers.LevelWarn, "warning", timers.LevelError:
	default:
		return fmt.Errorf("invalid timers.report_level %q", c.Timers.ReportLevel)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	if c.Server.TLSClientCA != "" && !c.Server.TLSEnabled() {
		return fmt.Errorf("server.tls_client_ca requires server.tls_cert")
	}
	switch c.Report.Sink {
	case "", "logger", "log15":
	default:
		return fmt.Errorf("invalid report.sink %q", c.Report.Sink)
	}
	if c.Report.Rate < 0 {
		return fmt.Errorf("report.rate must not be negative")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// NewLogger builds the process logger described by c.
func (c *Config) NewLogger() (*logging.Logger, error) {
	level := logging.ParseLevel(c.Log.Level)
	if c.Log.File == "" {
		return logging.NewLogger(level, c.Log.JSON), nil
	}
	return logging.NewFileLogger(c.Log.File, level, c.Log.JSON)
}

// NewReportSink returns the throttled sink report records are written to.
func (c *Config) NewReportSink(logger *logging.Logger) *logging.ThrottledSink {
	var sink timers.LogSink = logger
	if c.Report.Sink == "log15" {
		sink = logging.NewLog15Sink(os.Stdout, logging.ParseLevel(c.Log.Level), c.Log.JSON, "component", "timers")
	}
	return logging.Throttle(sink, c.Report.Rate, c.Report.Burst)
}

// NewRegistry builds the process registry with capture set from c.
func (c *Config) NewRegistry(opts ...timers.Option) *timers.Registry {
	opts = append([]timers.Option{timers.WithEnabled(c.Timers.Enabled)}, opts...)
	return timers.New(opts...)
}
