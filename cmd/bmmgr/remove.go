package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd(a *app) *cobra.Command {
	var uri, title string
	cmd := &cobra.Command{
		Use:   "remove (--title T | --uri U)",
		Short: "Remove every bookmark with the exact title or uri",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			removed, err := s.Remove(cmd.Context(), uri, title)
			if err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			a.logger.Info("bookmarks removed", "count", len(removed))
			if len(removed) == 0 && !a.flagJSON {
				_, err := fmt.Fprintln(a.stdout, "nothing removed")
				return err
			}
			return printBookmarks(a.stdout, removed, a.flagJSON)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "remove bookmarks with this title")
	cmd.Flags().StringVar(&uri, "uri", "", "remove bookmarks with this uri")
	return cmd
}
