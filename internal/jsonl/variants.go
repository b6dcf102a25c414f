package jsonl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/bookmarks/internal/iconzip"
	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

var (
	_ types.Store = (*SplitIconStore)(nil)
	_ types.Store = (*NoIconStore)(nil)
)

// SplitIconStore keeps icon payloads out of the log. The log stores
// iconzip.Key(uri) in icon_data_uri and the payload lives in the archive
// beside it.
type SplitIconStore struct {
	log     *Store
	archive *iconzip.Archive
	logger  *slog.Logger
}

// OpenSplitIcon opens the split-icon store in dir, which must exist.
func OpenSplitIcon(dir string, logger *slog.Logger) (*SplitIconStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownLocation, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrUnknownLocation, dir)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	log, err := Open(filepath.Join(dir, types.SplitLogFile), logger)
	if err != nil {
		return nil, err
	}
	return &SplitIconStore{
		log:     log,
		archive: iconzip.Open(filepath.Join(dir, types.SplitArchiveFile), logger),
		logger:  logger.With("component", "split-icon", "dir", dir),
	}, nil
}

func (s *SplitIconStore) Query(ctx context.Context, dnf types.DNF) ([]*types.Bookmark, error) {
	return s.log.query(ctx, dnf, s.expand)
}

func (s *SplitIconStore) Load(ctx context.Context) ([]*types.Bookmark, error) {
	return s.log.query(ctx, nil, s.expand)
}

func (s *SplitIconStore) Save(ctx context.Context, bookmarks []*types.Bookmark) error {
	return s.log.save(ctx, bookmarks, s.stash)
}

func (s *SplitIconStore) Add(ctx context.Context, b *types.Bookmark) error {
	return s.log.add(ctx, b, s.stash)
}

func (s *SplitIconStore) Remove(ctx context.Context, uri, title string) ([]*types.Bookmark, error) {
	return s.log.remove(ctx, uri, title, s.expand)
}

func (s *SplitIconStore) Update(ctx context.Context, bookmarks []*types.Bookmark, fields []string) error {
	if err := types.ValidateUpdateFields(fields); err != nil {
		return err
	}
	return s.log.save(ctx, bookmarks, s.stash)
}

func (s *SplitIconStore) Close() error { return s.log.Close() }

// stash moves embedded payloads into the archive in one rewrite and returns
// copies carrying the keys.
func (s *SplitIconStore) stash(bookmarks []*types.Bookmark) ([]*types.Bookmark, error) {
	blobs := make(map[string]string)
	out := make([]*types.Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		c := b.Clone()
		if c.IconDataURI != "" {
			key := iconzip.Key(c.URI)
			blobs[key] = c.IconDataURI
			c.IconDataURI = key
		}
		out[i] = c
	}
	if err := s.archive.Put(blobs); err != nil {
		return nil, fmt.Errorf("storing icons: %w", err)
	}
	return out, nil
}

// expand replaces keys with archived payloads. Values that are already
// data URLs pass through. A key with no entry, or an archive that cannot be
// read, is store corruption: it is logged and the bookmark keeps an empty
// IconDataURI rather than the key.
func (s *SplitIconStore) expand(bookmarks []*types.Bookmark) ([]*types.Bookmark, error) {
	var keys []string
	for _, b := range bookmarks {
		if isArchiveKey(b.IconDataURI) {
			keys = append(keys, b.IconDataURI)
		}
	}
	if len(keys) == 0 {
		return bookmarks, nil
	}
	blobs, err := s.archive.GetAll(keys)
	if err != nil {
		s.logger.Warn("icon archive unreadable, icons dropped", "count", len(keys),
			"error", fmt.Errorf("%w: %v", types.ErrStoreCorruption, err))
		blobs = nil
	}
	for _, b := range bookmarks {
		if !isArchiveKey(b.IconDataURI) {
			continue
		}
		if blobs == nil {
			b.IconDataURI = ""
			continue
		}
		blob, ok := blobs[b.IconDataURI]
		if !ok {
			s.logger.Warn("icon missing from archive", "uri", b.URI,
				"error", fmt.Errorf("%w: %w: %s", types.ErrStoreCorruption, types.ErrBlobNotFound, b.IconDataURI))
			b.IconDataURI = ""
			continue
		}
		b.IconDataURI = blob
	}
	return bookmarks, nil
}

func isArchiveKey(v string) bool {
	return v != "" && !strings.HasPrefix(v, "data:")
}

// NoIconStore is a log that never persists icon payloads.
type NoIconStore struct {
	log *Store
}

// OpenNoIcon opens the log at path.
func OpenNoIcon(path string, logger *slog.Logger) (*NoIconStore, error) {
	log, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	return &NoIconStore{log: log}, nil
}

func (s *NoIconStore) Query(ctx context.Context, dnf types.DNF) ([]*types.Bookmark, error) {
	return s.log.Query(ctx, dnf)
}

func (s *NoIconStore) Load(ctx context.Context) ([]*types.Bookmark, error) {
	return s.log.Load(ctx)
}

func (s *NoIconStore) Save(ctx context.Context, bookmarks []*types.Bookmark) error {
	return s.log.save(ctx, bookmarks, stripIcons)
}

func (s *NoIconStore) Add(ctx context.Context, b *types.Bookmark) error {
	return s.log.add(ctx, b, stripIcons)
}

func (s *NoIconStore) Remove(ctx context.Context, uri, title string) ([]*types.Bookmark, error) {
	return s.log.Remove(ctx, uri, title)
}

func (s *NoIconStore) Update(ctx context.Context, bookmarks []*types.Bookmark, fields []string) error {
	if err := types.ValidateUpdateFields(fields); err != nil {
		return err
	}
	return s.log.save(ctx, bookmarks, stripIcons)
}

func (s *NoIconStore) Close() error { return s.log.Close() }

func stripIcons(bookmarks []*types.Bookmark) ([]*types.Bookmark, error) {
	out := make([]*types.Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		c := b.Clone()
		c.IconDataURI = ""
		out[i] = c
	}
	return out, nil
}
