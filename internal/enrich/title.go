package enrich

import (
	"context"
	"net/http"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// title fills an empty b.Title from the page's <title>. No fallback.
func (r *run) title(ctx context.Context, b *types.Bookmark) {
	if b.Title != "" {
		return
	}
	logger := r.logger.With("uri", b.URI)

	resp, err := r.fetch(ctx, b.URI)
	if err != nil {
		logger.Warn("title fetch failed", "error", err)
		return
	}
	if resp.status != http.StatusOK {
		logger.Warn("title fetch failed", "status", resp.status)
		return
	}
	doc, err := parseHTML(resp.body, resp.contentType)
	if err != nil {
		logger.Warn("parsing page failed", "error", err)
		return
	}
	title, err := pageTitle(doc)
	if err != nil {
		logger.Warn("no title", "error", err)
		return
	}
	logger.Debug("title found", "title", title)
	b.Title = title
}
