package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

func newUpdateIconCmd(a *app) *cobra.Command {
	var (
		iconCache string
		titles    bool
		noForce   bool
		prefixes  []string
	)
	cmd := &cobra.Command{
		Use:   "update-icon [--icon-cache DIR] [--titles] [--no-force]",
		Short: "Refetch and embed the icons of every stored bookmark",
		Long: `Update-icon loads every bookmark, fetches its icon and writes back the
bookmarks whose embedded icon changed. Fetched icons are written to the icon
cache; with --no-force, icons already in the cache are not fetched again.
With --titles, empty titles are filled from the page.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iconCache == "" {
				iconCache = a.cfg.IconCache
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			bookmarks, err := s.Load(ctx)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			untitled := make(map[*types.Bookmark]bool)
			for _, b := range bookmarks {
				untitled[b] = b.Title == ""
			}

			res, err := a.newEnricher(iconCache, titles, !noForce).Run(ctx, bookmarks, prefixes)
			if err != nil {
				return fmt.Errorf("enrich: %w", err)
			}

			var changed []*types.Bookmark
			for _, b := range bookmarks {
				if b.IconUpdated || (untitled[b] && b.Title != "") {
					changed = append(changed, b)
				}
			}
			fields := []string{types.FieldIconDataURI, types.FieldIconURI}
			if titles {
				fields = append(fields, types.FieldTitle)
			}
			if len(changed) > 0 {
				if err := s.Update(ctx, changed, fields); err != nil {
					return fmt.Errorf("update: %w", err)
				}
			}

			_, err = fmt.Fprintf(a.stdout, "selected %d, icons updated %d, titles filled %d\n",
				res.Selected, res.IconsUpdated, res.TitlesFilled)
			return err
		},
	}
	cmd.Flags().StringVar(&iconCache, "icon-cache", "", "icon cache directory (default: icon_cache from config)")
	cmd.Flags().BoolVar(&titles, "titles", false, "also fill empty titles from the page")
	cmd.Flags().BoolVar(&noForce, "no-force", false, "reuse cached icons instead of refetching")
	cmd.Flags().StringArrayVar(&prefixes, "prefix", nil, "only bookmarks whose dotted path starts with this prefix (repeatable)")
	return cmd
}
