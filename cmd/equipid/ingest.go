package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/DreamCats/equipid/internal/app"
	"github.com/DreamCats/equipid/internal/config"
	"github.com/DreamCats/equipid/internal/ingest"
)

func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed reference images into the catalog",
		Long: `Walk <data>/<item>/ directories, embed every png/jpg/jpeg image and
upsert one point per image into the configured collection. Each item
directory needs an info.txt describing it.`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().String("data", "", "Reference data root (overrides ingest.data_path)")
	cmd.Flags().String("progress", "", "Progress bar: auto, always or never")
	cmd.Flags().String("point-ids", "", "Point id mode: random or content")
	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyIngestFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closeLog := setupLogging(cmd, "ingest", cfg)
	defer closeLog()

	rt, err := app.NewRuntime(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer rt.Close()

	index, err := app.OpenItemIndex(cfg)
	if err != nil {
		return fmt.Errorf("open item index: %w", err)
	}
	if index != nil {
		defer index.Close()
	}

	pipeline, err := rt.NewPipeline(logger, index)
	if err != nil {
		return err
	}

	logger.Info("ingest started", "data", cfg.Ingest.DataPath, "collection", cfg.Catalog.Collection, "backend", cfg.Catalog.Backend)
	report, err := pipeline.Run(cmd.Context())
	if report != nil {
		printReport(cmd.OutOrStdout(), cfg, report)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

func applyIngestFlags(cmd *cobra.Command, cfg *config.Config) error {
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		cfg.Ingest.DataPath = config.ExpandPath(data)
	}
	if progress, _ := cmd.Flags().GetString("progress"); progress != "" {
		cfg.Ingest.Progress = progress
	}
	if ids, _ := cmd.Flags().GetString("point-ids"); ids != "" {
		cfg.Ingest.PointIDs = ids
	}
	return cfg.Validate()
}

func printReport(w io.Writer, cfg *config.Config, report *ingest.Report) {
	fmt.Fprintf(w, "Collection: %s", cfg.Catalog.Collection)
	if report.CollectionCreated {
		fmt.Fprint(w, " (created)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Items:      %d uploaded, %d skipped\n", report.Uploaded(), report.Skipped())
	fmt.Fprintf(w, "Points:     %d written", report.PointsWritten)
	if report.PointsInCollection >= 0 {
		fmt.Fprintf(w, ", %d in collection", report.PointsInCollection)
	}
	fmt.Fprintln(w)
	if n := report.ImageFailures(); n > 0 {
		fmt.Fprintf(w, "Images:     %d skipped\n", n)
	}
	for _, item := range report.Items {
		if item.Skip != ingest.SkipNone {
			fmt.Fprintf(w, "  skipped %s: %s\n", item.Name, item.Skip)
		}
		for _, imgErr := range item.ImageErrors {
			fmt.Fprintf(w, "  %s\n", imgErr.Error())
		}
	}
}
