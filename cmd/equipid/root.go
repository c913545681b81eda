package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DreamCats/equipid/cmd/equipid/internal"
	"github.com/DreamCats/equipid/internal/config"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "equipid",
		Short: "Identify equipment from a photograph",
		Long: `equipid embeds reference photos of equipment into a vector catalog and
identifies new photos by nearest-neighbor search.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.equipid/config/equipid.yaml)")

	rootCmd.AddCommand(
		NewInitCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewStatsCmd(),
		NewVersionCmd(version),
	)
	return rootCmd
}

// loadConfig reads the --config file. A missing file prints setup hints.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		var notFound *config.ConfigNotFoundError
		if errors.As(err, &notFound) {
			internal.PrintConfigExample(cmd.ErrOrStderr(), notFound.RequestedPath)
		}
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures slog for a subcommand and returns the logger.
func setupLogging(cmd *cobra.Command, name string, cfg *config.Config) (*slog.Logger, func()) {
	closeFn, err := internal.SetupLogging(name, cfg.Log)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize log file: %v\n", err)
	}
	return slog.Default().With("cmd", name), closeFn
}
