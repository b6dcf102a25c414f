package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// tagEdit is the tag change requested on the modify command line. At most
// one of its fields is set.
type tagEdit struct {
	set    []string
	add    []string
	remove []string
}

func (e tagEdit) validate() error {
	n := 0
	for _, s := range [][]string{e.set, e.add, e.remove} {
		if len(s) > 0 {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w: --tag, --add-tag and --remove-tag are mutually exclusive", errUsage)
	}
	return nil
}

// apply edits b's tags and reports whether the set changed.
func (e tagEdit) apply(b *types.Bookmark) bool {
	before := slices.Clone(b.Tags)
	switch {
	case len(e.set) > 0:
		b.SetTags(e.set)
	case len(e.add) > 0:
		b.AddTags(e.add...)
	case len(e.remove) > 0:
		b.RemoveTags(e.remove...)
	default:
		return false
	}
	return !slices.Equal(before, b.Tags)
}

func newModifyCmd(a *app) *cobra.Command {
	var (
		uri, title, iconURI string
		tags                tagEdit
	)
	cmd := &cobra.Command{
		Use:   "modify (--title T | --uri U) [--tag X... | --add-tag X... | --remove-tag X...] [--icon-uri I]",
		Short: "Edit the tags or icon of a single bookmark",
		Long: `Modify selects bookmarks like query does and requires exactly one
match. Tags are replaced (--tag), extended (--add-tag) or reduced
(--remove-tag). A new --icon-uri is fetched right away and kept only when
the icon could be embedded. Only changed fields are written.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tags.validate(); err != nil {
				return err
			}
			dnf, err := likeQuery(uri, title)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			found, err := s.Query(ctx, dnf)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			if len(found) != 1 {
				return fmt.Errorf("%w: modify needs exactly one match, got %d", errUsage, len(found))
			}
			b := found[0]

			var fields []string
			if tags.apply(b) {
				fields = append(fields, types.FieldTags)
			}
			if iconURI != "" {
				updated, err := a.refetchIcon(cmd, b, iconURI)
				if err != nil {
					return err
				}
				if updated {
					fields = append(fields, types.FieldIconURI, types.FieldIconDataURI)
				}
			}
			if len(fields) == 0 {
				_, err := fmt.Fprintln(a.stdout, "nothing to update")
				return err
			}

			if err := s.Update(ctx, []*types.Bookmark{b}, fields); err != nil {
				return fmt.Errorf("update %s: %w", b.URI, err)
			}
			a.logger.Info("bookmark modified", "uri", b.URI, "fields", fields)
			return printBookmarks(a.stdout, []*types.Bookmark{b}, a.flagJSON)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "select the bookmark whose title contains this text")
	cmd.Flags().StringVar(&uri, "uri", "", "select the bookmark whose uri contains this text")
	cmd.Flags().StringArrayVar(&tags.set, "tag", nil, "replace the tags (repeatable)")
	cmd.Flags().StringArrayVar(&tags.add, "add-tag", nil, "add a tag (repeatable)")
	cmd.Flags().StringArrayVar(&tags.remove, "remove-tag", nil, "remove a tag (repeatable)")
	cmd.Flags().StringVar(&iconURI, "icon-uri", "", "new icon reference, relative to the bookmark uri")
	return cmd
}

// refetchIcon points b at iconURI and embeds it, bypassing the disk cache.
// It reports whether the embedded icon changed. An unchanged icon uri is a
// no-op; a failed fetch leaves b as it was.
func (a *app) refetchIcon(cmd *cobra.Command, b *types.Bookmark, iconURI string) (bool, error) {
	prevURI, prevData := b.IconURI, b.IconDataURI
	if err := b.SetIconURI(iconURI); err != nil {
		return false, err
	}
	if b.IconURI == prevURI {
		return false, nil
	}
	b.IconDataURI = ""
	if _, err := a.newEnricher("", false, true).Run(cmd.Context(), []*types.Bookmark{b}, nil); err != nil {
		b.IconURI, b.IconDataURI = prevURI, prevData
		return false, fmt.Errorf("enrich: %w", err)
	}
	if b.IconDataURI == "" {
		a.logger.Warn("icon not embedded, keeping the stored one", "uri", b.URI, "icon_uri", b.IconURI)
		b.IconURI, b.IconDataURI = prevURI, prevData
		return false, nil
	}
	return b.IconUpdated, nil
}
