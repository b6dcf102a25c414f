package enrich

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/vincent-petithory/dataurl"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// errBadIcon marks a response that is not a usable icon. It, like exhausted
// retries, sends the icon task to the page fallback.
var errBadIcon = errors.New("unusable icon response")

// icon resolves b.IconURI to an embedded data URL. It never reads b.Title,
// which the title task may be writing.
func (r *run) icon(ctx context.Context, b *types.Bookmark) {
	entry := b.IconDataURI
	defer func() { b.IconUpdated = b.IconDataURI != entry }()

	if b.HasEmbeddedIcon() {
		return
	}
	logger := r.logger.With("uri", b.URI)
	if err := b.SetIconURI(b.IconURI); err != nil {
		logger.Error("bad icon uri", "icon_uri", b.IconURI, "error", err)
		return
	}

	data, err := r.loadIcon(ctx, b.IconURI)
	if err == nil {
		b.IconDataURI = data
		return
	}
	if !fallsBack(err) {
		logger.Error("icon fetch failed", "icon_uri", b.IconURI, "error", err)
		return
	}
	logger.Warn("icon unavailable, looking for a link in the page", "icon_uri", b.IconURI, "error", err)

	link, err := r.pageIconLink(ctx, b.URI)
	if err != nil {
		logger.Warn("no icon found in page", "error", err)
		return
	}
	if link == b.IconURI {
		return
	}
	b.IconURI = link

	data, err = r.loadIcon(ctx, link)
	if err != nil {
		logger.Warn("icon from page link failed", "icon_uri", link, "error", err)
		return
	}
	b.IconDataURI = data
}

func fallsBack(err error) bool {
	return errors.Is(err, errBadIcon) || errors.Is(err, ErrRetriesExhausted)
}

// loadIcon returns the data URL for iconURI from the pass memo, the disk
// cache (unless Force) or the network, in that order. Concurrent loads
// of one URI share a single flight.
func (r *run) loadIcon(ctx context.Context, iconURI string) (string, error) {
	v, err, _ := r.flight.Do(iconURI, func() (any, error) {
		if v, ok := r.memo.Get(iconURI); ok {
			return v.(string), nil
		}
		if r.disk != nil && !r.opts.Force {
			data, ok, err := r.disk.get(iconURI)
			if err != nil {
				r.logger.Warn("icon cache read failed", "icon_uri", iconURI, "error", err)
			}
			if ok {
				r.logger.Debug("icon cache hit", "icon_uri", iconURI)
				r.memo.SetDefault(iconURI, data)
				return data, nil
			}
		}
		data, err := r.fetchIcon(ctx, iconURI)
		if err != nil {
			return "", err
		}
		r.memo.SetDefault(iconURI, data)
		if r.disk != nil {
			if err := r.disk.put(iconURI, data); err != nil {
				r.logger.Warn("icon cache write failed", "icon_uri", iconURI, "error", err)
			}
		}
		return data, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fetchIcon GETs iconURI and encodes the body as a base64 data URL. The
// response must be 200 with an image content type and a non-empty body.
func (r *run) fetchIcon(ctx context.Context, iconURI string) (string, error) {
	resp, err := r.fetch(ctx, iconURI)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errBadIcon, resp.status)
	}
	if !strings.HasPrefix(resp.contentType, "image") {
		return "", fmt.Errorf("%w: content type %q", errBadIcon, resp.contentType)
	}
	if len(resp.body) == 0 {
		return "", fmt.Errorf("%w: empty body", errBadIcon)
	}
	if resp.truncated {
		return "", fmt.Errorf("%w: body exceeds %d bytes", errBadIcon, r.opts.MaxBodyBytes)
	}
	mediaType, params, err := mime.ParseMediaType(resp.contentType)
	if err != nil || strings.Count(mediaType, "/") != 1 {
		return "", fmt.Errorf("%w: content type %q", errBadIcon, resp.contentType)
	}
	pairs := make([]string, 0, 2*len(params))
	for k, v := range params {
		pairs = append(pairs, k, v)
	}
	return dataurl.New(resp.body, mediaType, pairs...).String(), nil
}

// pageIconLink fetches the bookmark page and returns its first icon link,
// resolved against the final page URL.
func (r *run) pageIconLink(ctx context.Context, pageURI string) (string, error) {
	resp, err := r.fetch(ctx, pageURI)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("page status %d", resp.status)
	}
	doc, err := parseHTML(resp.body, resp.contentType)
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}
	base := resp.url
	if base == nil {
		if base, err = url.Parse(pageURI); err != nil {
			return "", err
		}
	}
	return iconLink(doc, base)
}
