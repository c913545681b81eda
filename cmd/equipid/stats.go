package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DreamCats/equipid/internal/app"
	"github.com/DreamCats/equipid/internal/catalog"
)

type statsOutput struct {
	Collection string  `json:"collection"`
	Backend    string  `json:"backend"`
	Exists     bool    `json:"exists"`
	Points     int64   `json:"points"`
	VectorSize int     `json:"vector_size,omitempty"`
	Distance   string  `json:"distance,omitempty"`
	Model      string  `json:"model"`
	Dimensions int     `json:"dimensions"`
	Items      *uint64 `json:"items,omitempty"`
}

func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cat, err := catalog.Open(&cfg.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	out := statsOutput{
		Collection: cfg.Catalog.Collection,
		Backend:    cfg.Catalog.Backend,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	}

	info, err := cat.GetCollection(cmd.Context(), cfg.Catalog.Collection)
	switch {
	case err == nil:
		out.Exists = true
		out.Points = info.PointsCount
		out.VectorSize = info.VectorSize
		out.Distance = string(info.Distance)
	case errors.Is(err, catalog.ErrCollectionNotFound):
	default:
		return fmt.Errorf("read collection: %w", err)
	}

	index, err := app.OpenExistingItemIndex(cfg)
	if err != nil {
		return fmt.Errorf("open item index: %w", err)
	}
	if index != nil {
		defer index.Close()
		count, err := index.Count()
		if err != nil {
			return fmt.Errorf("count items: %w", err)
		}
		out.Items = &count
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Collection: %s (%s)\n", out.Collection, out.Backend)
	if !out.Exists {
		fmt.Fprintln(w, "Status:     not created, run `equipid ingest`")
	} else {
		fmt.Fprintf(w, "Points:     %d\n", out.Points)
		fmt.Fprintf(w, "Vectors:    %d dims, %s\n", out.VectorSize, out.Distance)
	}
	fmt.Fprintf(w, "Model:      %s (%d dims)\n", out.Model, out.Dimensions)
	if out.Items != nil {
		fmt.Fprintf(w, "Items:      %d indexed\n", *out.Items)
	}
	return nil
}
