// Package jsonl implements the append-only log backend. The log is a file
// of JSON records, one per line; the durable state of a bookmark is the fold
// of every record sharing its uri, in file order.
//
// Every operation, reads included, opens the log and holds a whole-file
// exclusive advisory lock until it completes. Independent handles on the
// same file, in one process or several, are serialized by that lock.
package jsonl

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

var _ types.Store = (*Store)(nil)

// Store is a bookmark log at a single path.
type Store struct {
	path   string
	logger *slog.Logger
}

// encodeHook rewrites bookmarks before they are appended. It runs with the
// log lock held and must not mutate its input.
type encodeHook func([]*types.Bookmark) ([]*types.Bookmark, error)

// decodeHook rewrites bookmarks after they are folded, with the lock held.
type decodeHook func([]*types.Bookmark) ([]*types.Bookmark, error)

// Open returns a Store for the log at path, creating an empty log if none
// exists. The parent directory must exist.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, types.ErrLocationEmpty
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", path, err)
	}
	return &Store{path: path, logger: logger.With("component", "jsonl", "path", path)}, nil
}

// Path returns the log file path.
func (s *Store) Path() string { return s.path }

// Query returns the live bookmarks matching dnf in order of first
// appearance.
func (s *Store) Query(ctx context.Context, dnf types.DNF) ([]*types.Bookmark, error) {
	return s.query(ctx, dnf, nil)
}

// Load returns every live bookmark.
func (s *Store) Load(ctx context.Context) ([]*types.Bookmark, error) {
	return s.query(ctx, nil, nil)
}

// Save appends a full snapshot of each bookmark.
func (s *Store) Save(ctx context.Context, bookmarks []*types.Bookmark) error {
	return s.save(ctx, bookmarks, nil)
}

// Add appends b unless a live bookmark has the same uri or title. The check
// and the append share one lock hold.
func (s *Store) Add(ctx context.Context, b *types.Bookmark) error {
	return s.add(ctx, b, nil)
}

// Remove appends a tombstone for every live bookmark whose uri (or title)
// equals the given value and returns those bookmarks.
func (s *Store) Remove(ctx context.Context, uri, title string) ([]*types.Bookmark, error) {
	return s.remove(ctx, uri, title, nil)
}

// Update appends full snapshots, like Save. fields is validated and then
// ignored: a snapshot carries every field.
func (s *Store) Update(ctx context.Context, bookmarks []*types.Bookmark, fields []string) error {
	if err := types.ValidateUpdateFields(fields); err != nil {
		return err
	}
	return s.save(ctx, bookmarks, nil)
}

// Close is a no-op; the log is only open during an operation.
func (s *Store) Close() error { return nil }

func (s *Store) locked(ctx context.Context, fn func(l *logFile) error) error {
	l, err := openLocked(ctx, s.path, s.logger)
	if err != nil {
		return err
	}
	ferr := fn(l)
	if cerr := l.close(); cerr != nil && ferr == nil {
		ferr = fmt.Errorf("closing %s: %w", s.path, cerr)
	}
	return ferr
}

func (s *Store) query(ctx context.Context, dnf types.DNF, decode decodeHook) ([]*types.Bookmark, error) {
	if err := dnf.Validate(); err != nil {
		return nil, err
	}
	var out []*types.Bookmark
	err := s.locked(ctx, func(l *logFile) error {
		all, err := l.fold()
		if err != nil {
			return err
		}
		if decode != nil {
			if all, err = decode(all); err != nil {
				return err
			}
		}
		for _, b := range all {
			if dnf.Match(b) {
				out = append(out, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) save(ctx context.Context, bookmarks []*types.Bookmark, encode encodeHook) error {
	if len(bookmarks) == 0 {
		return nil
	}
	return s.locked(ctx, func(l *logFile) error {
		return s.appendSnapshots(l, bookmarks, encode)
	})
}

func (s *Store) add(ctx context.Context, b *types.Bookmark, encode encodeHook) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.locked(ctx, func(l *logFile) error {
		all, err := l.fold()
		if err != nil {
			return err
		}
		for _, existing := range all {
			if existing.URI == b.URI {
				return fmt.Errorf("%w: uri %q", types.ErrDuplicateKey, b.URI)
			}
			if existing.Title == b.Title {
				return fmt.Errorf("%w: title %q", types.ErrDuplicateKey, b.Title)
			}
		}
		return s.appendSnapshots(l, []*types.Bookmark{b}, encode)
	})
}

func (s *Store) remove(ctx context.Context, uri, title string, decode decodeHook) ([]*types.Bookmark, error) {
	field, value, err := types.ValidateRemoveKey(uri, title)
	if err != nil {
		return nil, err
	}
	var removed []*types.Bookmark
	err = s.locked(ctx, func(l *logFile) error {
		all, err := l.fold()
		if err != nil {
			return err
		}
		var lines [][]byte
		for _, b := range all {
			if types.FieldValue(b, field) != value {
				continue
			}
			line, err := encodeTombstone(b)
			if err != nil {
				return err
			}
			lines = append(lines, line)
			removed = append(removed, b)
		}
		if err := l.append(lines); err != nil {
			return err
		}
		s.logger.Debug("removed", "field", field, "count", len(removed))
		if decode != nil && len(removed) > 0 {
			removed, err = decode(removed)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *Store) appendSnapshots(l *logFile, bookmarks []*types.Bookmark, encode encodeHook) error {
	if encode != nil {
		var err error
		if bookmarks, err = encode(bookmarks); err != nil {
			return err
		}
	}
	lines := make([][]byte, 0, len(bookmarks))
	for _, b := range bookmarks {
		line, err := encodeSnapshot(b)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	if err := l.append(lines); err != nil {
		return err
	}
	s.logger.Debug("appended", "count", len(lines))
	return nil
}
