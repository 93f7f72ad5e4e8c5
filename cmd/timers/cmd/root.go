package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/timers/internal/config"
	"github.com/psantana5/timers/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	forceEnabled bool

	v *viper.Viper
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "timers",
	Short: "Named interval timers for a unit of work",
	Long: `timers measures named intervals inside a unit of work and reports them
to a structured log, Prometheus metrics and OpenTelemetry spans.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.timers/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, json or prom")
	rootCmd.PersistentFlags().BoolVar(&forceEnabled, "enabled", false, "enable timer capture regardless of config")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	var err error
	v, err = config.NewViper(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if forceEnabled {
		v.Set("timers.enabled", true)
	}
}

// loadRuntime decodes the config and builds the process logger.
func loadRuntime() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
