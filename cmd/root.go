package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newhook/pipewatch/internal/config"
	"github.com/newhook/pipewatch/internal/logging"
	pwsignal "github.com/newhook/pipewatch/internal/signal"
)

var (
	// rootCtx holds the signal-cancellable context for the application
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// flagConfig is the path of the TOML config file
	flagConfig string

	// loadedConfig is the config read in PersistentPreRunE
	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pipewatch",
	Short: "Structure and clean CI logs from GitHub Actions and GitLab",
	Long: `pipewatch turns raw CI log bundles into clean, grouped, step-ordered logs.

It serves a dashboard API for GitHub and GitLab, structures local log archives
and job traces, and can watch a directory for new downloads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Create a cancellable context with signal handling
		rootCtx, rootCancel = pwsignal.WithSignalCancel(context.Background())

		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		loadedConfig = cfg

		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, using info\n", err)
		}
		if err := logging.Init(cfg.Logging.File, level); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
		// Clean up the signal handler
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// GetContext returns the root context that is cancelled on SIGINT/SIGTERM.
// This should be used by all subcommands instead of context.Background().
func GetContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// getConfig returns the loaded config, or the defaults before it is loaded.
func getConfig() *config.Config {
	if loadedConfig == nil {
		return config.Default()
	}
	return loadedConfig
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultFile, "path to the config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}
