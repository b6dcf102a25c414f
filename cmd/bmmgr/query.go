package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var uri, title string
	cmd := &cobra.Command{
		Use:   "query (--title T | --uri U)",
		Short: "Search bookmarks by title or uri substring",
		Long: `Query prints every bookmark whose title (or uri) contains the given
text, compared case-insensitively for ASCII letters.

Example:
  bmmgr query --title golang
  bmmgr query --uri example.com --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dnf, err := likeQuery(uri, title)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			found, err := s.Query(cmd.Context(), dnf)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			a.logger.Info("query finished", "matches", len(found))
			return printBookmarks(a.stdout, found, a.flagJSON)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "match titles containing this text")
	cmd.Flags().StringVar(&uri, "uri", "", "match uris containing this text")
	return cmd
}
