// Package main implements the ingatd binary: the owning context service,
// its lifecycle supervisor, and a CLI for manual operations.
//
// The CLI commands resolve their backend the same way every ingat client
// does: if a healthy service answers the discovery probe they proxy to it,
// otherwise they open the embedded store directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/config"
	"github.com/fyrsmithlabs/ingatd/internal/logging"
	"github.com/fyrsmithlabs/ingatd/internal/server"
)

var (
	// configPath is the optional YAML config file location.
	configPath string

	// version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ingatd",
	Short: "Local context record service for developer tools",
	Long: `ingatd captures, stores, and semantically searches development context
records on the local machine. One process owns the embedded store and serves
it over HTTP; every other process proxies to it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	server.Version = version

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data_dir>/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(superviseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ingatd by Fyrsmith Labs\n")
		fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", buildDate)
	},
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}
