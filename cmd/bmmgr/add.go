package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		uri, title, iconURI string
		tags                []string
	)
	cmd := &cobra.Command{
		Use:   "add --uri U [--title T] [--tag X]...",
		Short: "Add a bookmark, fetching its icon and title",
		Long: `Add fetches the icon of the page (and its title when --title is not
given) and stores the bookmark. The title falls back to the uri when the
page has none. A bookmark with the same uri or title is rejected.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &types.Bookmark{Title: title, URI: uri, IconURI: iconURI, Tags: tags}
			if err := b.Normalize(); err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if _, err := a.newEnricher("", true, false).Run(ctx, []*types.Bookmark{b}, nil); err != nil {
				return fmt.Errorf("enrich: %w", err)
			}
			if b.Title == "" {
				b.Title = b.URI
			}
			if err := s.Add(ctx, b); err != nil {
				return fmt.Errorf("add %s: %w", b.URI, err)
			}
			a.logger.Info("bookmark added", "uri", b.URI, "icon_embedded", b.IconDataURI != "")
			return printBookmarks(a.stdout, []*types.Bookmark{b}, a.flagJSON)
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "bookmark uri (required)")
	cmd.Flags().StringVar(&title, "title", "", "bookmark title (default: page title, then the uri)")
	cmd.Flags().StringVar(&iconURI, "icon-uri", "", "icon reference, relative to the uri (default: /favicon.ico)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag (repeatable)")
	return cmd
}
