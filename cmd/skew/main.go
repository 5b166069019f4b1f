package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/skew/internal/config"
	skewlog "github.com/sawpanic/skew/internal/log"
)

const (
	appName = "skew"
	version = "v1.0.0"
)

// reportedError marks a failure the command already showed to the user
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Political bias lookup and gradient tint tools",
		Version: version,
		Long: `Skew looks up the political bias of a news article and shows where it sits
on the left-to-right gauge.

It also ships the pointer-driven gradient that tints the banner text, a
color probe for that gradient, and a local stand-in for the classification
service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			asJSON, _ := cmd.Flags().GetBool("log-json")
			return skewlog.Setup(os.Stderr, level, asJSON)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration (defaults built in)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON lines")

	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newTintCmd())
	rootCmd.AddCommand(newColorCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// loadConfig reads --config, falling back to defaults
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Debug().Str("path", path).Msg("Loaded configuration")
	}
	return cfg, nil
}
