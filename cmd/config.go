package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/newhook/pipewatch/internal/config"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the pipewatch config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a documented config file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&flagConfigForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultFile
	if len(args) == 1 {
		path = args[0]
	}
	return writeDefaultConfig(path, flagConfigForce)
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if err := config.Default().SaveDocumented(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	effective := map[string]any{
		"server": map[string]any{
			"addr":                 cfg.Server.GetAddr(),
			"read_timeout_seconds": int(cfg.Server.GetReadTimeout().Seconds()),
			"max_archive_mb":       cfg.Server.GetMaxArchiveBytes() >> 20,
			"max_uncompressed_mb":  cfg.Server.GetMaxUncompressedBytes() >> 20,
		},
		"github": map[string]any{
			"gh_path":       cfg.GitHub.GetGHPath(),
			"hostname":      cfg.GitHub.Hostname,
			"runs_per_page": cfg.GitHub.GetRunsPerPage(),
		},
		"gitlab": map[string]any{
			"api_url":         cfg.GitLab.GetAPIURL(),
			"timeout_seconds": int(cfg.GitLab.GetTimeout().Seconds()),
			"token_cookie":    cfg.GitLab.GetTokenCookie(),
		},
		"cache": map[string]any{
			"ttl_seconds":     int(cfg.Cache.GetTTL().Seconds()),
			"cleanup_seconds": int(cfg.Cache.GetCleanupInterval().Seconds()),
		},
		"logging": map[string]any{
			"file":  cfg.Logging.File,
			"level": cfg.Logging.Level,
		},
	}
	if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(effective); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
