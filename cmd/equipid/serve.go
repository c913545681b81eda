package main

import (
	"github.com/spf13/cobra"

	"github.com/DreamCats/equipid/internal/app"
	"github.com/DreamCats/equipid/internal/server"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identification HTTP service",
		Long: `Serve POST /identify. The service starts even when the catalog or the
embedding provider is unreachable; requests then fail with a server error
until it is restarted with a working setup.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger, closeLog := setupLogging(cmd, "serve", cfg)
	defer closeLog()

	svc, closeSvc := app.NewQueryService(cmd.Context(), cfg, logger)
	defer closeSvc()

	opts := server.Options{
		Mode:         cfg.Server.Mode,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	}
	index, err := app.OpenItemIndex(cfg)
	if err != nil {
		logger.Warn("item index unavailable", "path", cfg.Ingest.ItemIndex, "err", err)
	} else if index != nil {
		defer index.Close()
		opts.Items = index
	}

	return server.New(svc, opts).Run(cmd.Context(), cfg.Server.Addr)
}
