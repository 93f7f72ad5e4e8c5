package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/timers/internal/config"
	"github.com/psantana5/timers/pkg/auth"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for inspecting the effective configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Prints the configuration after defaults, the config file and TIMERS_*
environment variables have been merged.

Example:
  TIMERS_TIMERS_ENABLED=true timers config show --format json`,
	RunE: runConfigShow,
}

var configAPIKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate an API key for the control routes",
	Long: `Generates a random API key and its bcrypt hash. Add the hash to
server.api_key_hashes and send the key as "Authorization: Bearer <key>".`,
	RunE: runConfigAPIKey,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configAPIKeyCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "Output format: yaml, json")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), configFormat, cfg)
}

func writeConfig(w io.Writer, format string, cfg *config.Config) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)

	case "yaml", "":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return err
		}
		return encoder.Close()

	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func runConfigAPIKey(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateKey()
	if err != nil {
		return err
	}
	hash, err := auth.HashKey(key, 0)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key:  %s\n", key)
	fmt.Fprintf(out, "hash: %s\n", hash)
	return nil
}
