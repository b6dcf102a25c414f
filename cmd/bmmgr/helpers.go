// Shared helpers for bmmgr commands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// noArgs and exactArgs wrap the cobra validators so argument mistakes map
// to exitUserError.
func noArgs(cmd *cobra.Command, args []string) error {
	return usage(cobra.NoArgs(cmd, args))
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usage(cobra.ExactArgs(n)(cmd, args))
	}
}

func usage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}

// likeQuery builds the substring search used by query and modify: exactly
// one of uri and title, matched as like %value%.
func likeQuery(uri, title string) (types.DNF, error) {
	field, value, err := types.ValidateRemoveKey(uri, title)
	if err != nil {
		return nil, err
	}
	return types.DNF{{types.Like(field, "%"+value+"%")}}, nil
}

// printBookmarks writes bookmarks as an indented JSON array or as numbered
// text blocks.
func printBookmarks(w io.Writer, bookmarks []*types.Bookmark, asJSON bool) error {
	if asJSON {
		if bookmarks == nil {
			bookmarks = []*types.Bookmark{}
		}
		out, err := json.MarshalIndent(bookmarks, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal bookmarks: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	var buf strings.Builder
	for i, b := range bookmarks {
		buf.WriteString(header.Sprintf("========== Bookmark.%d ===========", i+1))
		buf.WriteString("\n")
		fmt.Fprintf(&buf, "title:    %s\n", b.Title)
		fmt.Fprintf(&buf, "uri:      %s\n", b.URI)
		fmt.Fprintf(&buf, "icon_uri: %s\n", b.IconURI)
		fmt.Fprintf(&buf, "icon:     %s\n", iconSummary(b.IconDataURI))
		fmt.Fprintf(&buf, "tags:     %s\n", strings.Join(b.Tags, ", "))
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

// iconSummary abbreviates an embedded icon to its media type and size.
func iconSummary(dataURI string) string {
	if dataURI == "" {
		return "-"
	}
	mediaType, _, ok := strings.Cut(strings.TrimPrefix(dataURI, "data:"), ";")
	if !ok {
		mediaType, _, _ = strings.Cut(mediaType, ",")
	}
	return fmt.Sprintf("%s (%d bytes encoded)", mediaType, len(dataURI))
}
