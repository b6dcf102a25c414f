// Package enrich fills in bookmark icons and titles from the network.
//
// Run starts one task per selected bookmark per enrichment function and
// returns when every task has finished. A task only touches the fields it
// owns: the icon task writes IconURI, IconDataURI and IconUpdated, the
// title task writes Title. A failing task is logged and leaves its bookmark
// as it was; it never aborts the batch.
package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// Defaults applied by New.
const (
	DefaultRetries      = 3
	DefaultRetryDelay   = 200 * time.Millisecond
	DefaultMaxBodyBytes = 10 << 20

	memoExpiration = 30 * time.Minute
	memoCleanup    = 10 * time.Minute
)

// Options configure an Enricher.
type Options struct {
	Client   HTTPClient // NewHTTPClient(0) when nil
	CacheDir string     // icon cache directory; empty disables the disk cache
	Titles   bool       // also fetch titles for bookmarks without one
	Force    bool       // skip disk cache and earlier-pass reads (writes still happen)

	Retries      int           // attempts per fetch
	RetryDelay   time.Duration // linear backoff step; negative disables backoff
	Workers      int           // concurrent tasks; 0 means unbounded
	MaxBodyBytes int64
	UserAgent    string

	Logger *slog.Logger
}

// Enricher runs enrichment passes. It is safe for concurrent use, and
// icons fetched by one pass are reused by later passes unless Force is set.
type Enricher struct {
	opts   Options
	client HTTPClient
	disk   *diskCache
	memo   *cache.Cache
	flight singleflight.Group
	logger *slog.Logger
}

// New builds an Enricher. A disk cache directory that cannot be created is
// logged and the disk cache disabled.
func New(opts Options) *Enricher {
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	e := &Enricher{
		opts:   opts,
		client: opts.Client,
		memo:   cache.New(memoExpiration, memoCleanup),
		logger: opts.Logger.With("component", "enrich"),
	}
	if e.client == nil {
		e.client = NewHTTPClient(0)
	}
	if opts.CacheDir != "" {
		disk, err := newDiskCache(opts.CacheDir)
		if err != nil {
			e.logger.Error("icon cache disabled", "error", err)
		} else {
			e.disk = disk
		}
	}
	return e
}

// run is one enrichment pass, carrying the pass-scoped logger. With Force
// the pass memoizes icons in its own cache, so every icon is fetched at
// least once per pass.
type run struct {
	*Enricher
	memo   *cache.Cache
	logger *slog.Logger
}

// Result summarizes a pass.
type Result struct {
	Selected     int
	IconsUpdated int
	TitlesFilled int
}

// Run enriches every bookmark whose path starts with one of prefixes (all
// bookmarks when prefixes is empty). It returns ctx.Err() if the pass was
// canceled; per-bookmark failures are only logged.
func (e *Enricher) Run(ctx context.Context, bookmarks []*types.Bookmark, prefixes []string) (Result, error) {
	r := &run{Enricher: e, memo: e.memo, logger: e.logger.With("run", newRunID())}
	if e.opts.Force {
		r.memo = cache.New(cache.NoExpiration, 0)
	}

	var (
		g        errgroup.Group
		selected []*types.Bookmark
		untitled = make(map[*types.Bookmark]bool)
	)
	if e.opts.Workers > 0 {
		g.SetLimit(e.opts.Workers)
	}
	for _, b := range bookmarks {
		if !types.MatchesPrefix(b.Path(), prefixes) {
			continue
		}
		selected = append(selected, b)
		g.Go(func() error {
			r.icon(ctx, b)
			return nil
		})
		if e.opts.Titles && b.Title == "" {
			untitled[b] = true
			g.Go(func() error {
				r.title(ctx, b)
				return nil
			})
		}
	}
	g.Wait()

	res := Result{Selected: len(selected)}
	for _, b := range selected {
		if b.IconUpdated {
			res.IconsUpdated++
		}
		if untitled[b] && b.Title != "" {
			res.TitlesFilled++
		}
	}
	r.logger.Info("enrichment finished",
		"selected", res.Selected, "icons_updated", res.IconsUpdated, "titles_filled", res.TitlesFilled)
	return res, ctx.Err()
}

// RunTree enriches the bookmarks of an import tree.
func (e *Enricher) RunTree(ctx context.Context, root *types.Folder, prefixes []string) (Result, error) {
	var bookmarks []*types.Bookmark
	root.Walk(func(b *types.Bookmark) { bookmarks = append(bookmarks, b) })
	return e.Run(ctx, bookmarks, prefixes)
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
