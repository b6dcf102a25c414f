package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookmarks/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate SRC DST",
		Short: "Copy every bookmark from one storage location to another",
		Long: `Migrate loads every live bookmark from SRC and saves it into DST
without de-duplication. Either location may use any backend; a split-icon
DST directory must already exist.

Example:
  bmmgr migrate bookmarks.db bookmarks.jsonl
  mkdir archive && bmmgr migrate bookmarks.jsonl archive`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srcKind, err := store.Kind(args[0])
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			dstKind, err := store.Kind(args[1])
			if err != nil {
				return fmt.Errorf("destination: %w", err)
			}
			src, err := store.Open(args[0], a.logger)
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer src.Close()
			dst, err := store.Open(args[1], a.logger)
			if err != nil {
				return fmt.Errorf("open destination: %w", err)
			}
			defer dst.Close()

			bookmarks, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			if err := dst.Save(ctx, bookmarks); err != nil {
				return fmt.Errorf("save %s: %w", args[1], err)
			}
			a.logger.Info("migration finished", "from", args[0], "from_kind", srcKind,
				"to", args[1], "to_kind", dstKind, "count", len(bookmarks))
			_, err = fmt.Fprintf(a.stdout, "migrated %d bookmarks\n", len(bookmarks))
			return err
		},
	}
}
