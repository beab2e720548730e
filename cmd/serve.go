package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/pipewatch/internal/github"
	"github.com/newhook/pipewatch/internal/gitlab"
	"github.com/newhook/pipewatch/internal/server"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start the HTTP API that lists GitHub repositories, commits and workflow runs,
GitLab projects, pipelines and jobs, and returns structured run logs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	if flagServeAddr != "" {
		cfg.Server.Addr = flagServeAddr
	}

	srv := server.New(cfg, github.NewClientFromConfig(cfg), gitlab.NewClientFromConfig(cfg))

	fmt.Printf("Listening on %s\n", cfg.Server.GetAddr())
	if err := srv.Run(GetContext()); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
