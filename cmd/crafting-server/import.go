package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rsned/crafting-resolver/internal/crafting/sync"
)

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import catalog data or storage snapshots from JSON",
	}

	countImport := func(use, short string, fn func(*sync.Syncer, context.Context, string) (int, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <file>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				_, log, database, err := setup(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = database.Close() }()

				n, err := fn(sync.NewSyncer(database, log), ctx, args[0])
				if err != nil {
					return fmt.Errorf("importing %s: %w", use, err)
				}
				fmt.Printf("✓ Imported %s %s from %s\n", humanize.Comma(int64(n)), use, args[0])
				return nil
			},
		}
	}

	cmd.AddCommand(
		countImport("recipes", "Import recipes", (*sync.Syncer).ImportRecipesFromFile),
		countImport("groups", "Import substitution groups", (*sync.Syncer).ImportGroupsFromFile),
		countImport("items", "Import item metadata", (*sync.Syncer).ImportItemsFromFile),
		&cobra.Command{
			Use:   "storage <file>",
			Short: "Replace a storage snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				_, log, database, err := setup(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = database.Close() }()

				rev, err := sync.NewSyncer(database, log).ImportStorageFromFile(ctx, args[0])
				if err != nil {
					return fmt.Errorf("importing storage: %w", err)
				}
				fmt.Printf("✓ Imported storage from %s at revision %d\n", args[0], rev)
				return nil
			},
		},
	)
	return cmd
}
