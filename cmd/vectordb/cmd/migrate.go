package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorlib/vectordb/internal/config"
	"github.com/vectorlib/vectordb/internal/store"
)

func newMigrateCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every library from one repository backend to another",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == "" || to == "" {
				return fmt.Errorf("--from and --to backend tags are required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runMigrate(cmd, cfg, from, to)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source backend tag (json|pickle|sqlite)")
	cmd.Flags().StringVar(&to, "to", "", "Destination backend tag (json|pickle|sqlite)")
	return cmd
}

func runMigrate(cmd *cobra.Command, cfg *config.Config, from, to string) error {
	src, err := store.New(from, store.BackendPaths{
		JSONPath:   cfg.JSONPath,
		BlobPath:   cfg.PicklePath,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("opening source backend %q: %w", from, err)
	}
	defer src.Close()

	dst, err := store.New(to, store.BackendPaths{
		JSONPath:   cfg.JSONPath,
		BlobPath:   cfg.PicklePath,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("opening destination backend %q: %w", to, err)
	}
	defer dst.Close()

	libraries, err := src.ListAll()
	if err != nil {
		return fmt.Errorf("reading source backend: %w", err)
	}

	for _, lib := range libraries {
		if _, found, err := dst.Get(lib.ID); err != nil {
			return fmt.Errorf("checking destination for library %s: %w", lib.ID, err)
		} else if found {
			if err := dst.Update(lib); err != nil {
				return fmt.Errorf("updating library %s in destination: %w", lib.ID, err)
			}
			continue
		}
		if err := dst.Add(lib); err != nil {
			return fmt.Errorf("adding library %s to destination: %w", lib.ID, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "migrated %d libraries from %s to %s\n", len(libraries), from, to)
	return nil
}
