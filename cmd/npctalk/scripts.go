package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/antoniostano/npctalk/internal/catalog"
	"github.com/antoniostano/npctalk/internal/script"
)

func newCheckScriptsCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "check-scripts",
		Short: "Compile every NPC script and report syntax errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return errors.Wrap(err, "config")
			}
			if dir == "" {
				dir = cfg.ScriptDir
			}

			results, err := script.NewLoader(dir).CompileAll()
			if err != nil {
				return err
			}
			failed := 0
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", r.Path, r.Err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (npc %d)\n", r.Path, r.NPCID)
			}
			if failed > 0 {
				return errors.Errorf("%d of %d scripts failed to compile", failed, len(results))
			}
			fmt.Fprintf(out, "%d scripts compiled\n", len(results))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "script root (defaults to SCRIPT_DIR)")
	return cmd
}

func newSeedCatalogCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Load a YAML catalog into the postgres catalog tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return errors.Wrap(err, "config")
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			if path == "" {
				path = cfg.CatalogSeedPath
			}
			return seedCatalog(cmd.Context(), cfg.DatabaseURL, path, cmd)
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "catalog YAML (defaults to CATALOG_SEED_PATH)")
	return cmd
}

func seedCatalog(ctx context.Context, databaseURL, path string, cmd *cobra.Command) error {
	data, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	store, err := catalog.NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Seed(ctx, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d shops, %d storage keepers from %s\n", len(data.Shops), len(data.Storage), path)
	return nil
}
