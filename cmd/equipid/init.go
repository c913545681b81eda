package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DreamCats/equipid/cmd/equipid/internal"
	"github.com/DreamCats/equipid/internal/config"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long:  `Write a commented configuration template to the --config path, or the default location when unset.`,
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	path, err := internal.ResolveConfigPath(configPath)
	if err != nil {
		return err
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created default config at %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Set embedding.api_key (or switch to the clip provider) before running `equipid ingest`.")
	return nil
}
