// Package sqlite implements the relational bookmark backend: one table of
// five text columns in a SQLite file. Every call runs in its own
// transaction. Uniqueness is checked by Add inside its transaction, with no
// index behind it, so two processes adding the same bookmark concurrently
// may both succeed.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// busyTimeoutMillis is how long a writer waits on another process's lock.
const busyTimeoutMillis = 5000

var _ types.Store = (*Store)(nil)

// Store is a bookmark table in a SQLite database file.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// bookmarks table exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, types.ErrLocationEmpty
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection: transactions in this process never contend with each
	// other for the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema in %s: %w", path, err)
	}
	return &Store{db: db, path: path, logger: logger.With("component", "sqlite", "path", path)}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Query returns the rows matching dnf in rowid order.
func (s *Store) Query(ctx context.Context, dnf types.DNF) ([]*types.Bookmark, error) {
	if err := dnf.Validate(); err != nil {
		return nil, err
	}
	where, args, err := whereClause(dnf)
	if err != nil {
		return nil, err
	}
	out, err := queryBookmarks(ctx, s.db, s.logger, selectColumns+where+" ORDER BY rowid", args)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	return out, nil
}

// Load returns every row in rowid order.
func (s *Store) Load(ctx context.Context) ([]*types.Bookmark, error) {
	return s.Query(ctx, nil)
}

// Save inserts one row per bookmark.
func (s *Store) Save(ctx context.Context, bookmarks []*types.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insert(ctx, tx, bookmarks)
	})
}

// Add inserts b unless a row with the same title or uri exists. The check
// and the insert share a transaction but no unique index backs them, so two
// processes adding the same bookmark at once may both succeed.
func (s *Store) Add(ctx context.Context, b *types.Bookmark) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var title, uri sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT title, uri FROM bookmarks WHERE title = ? OR uri = ? LIMIT 1`,
			b.Title, b.URI).Scan(&title, &uri)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("checking duplicates: %w", err)
		case uri.String == b.URI:
			return fmt.Errorf("%w: uri %q", types.ErrDuplicateKey, b.URI)
		default:
			return fmt.Errorf("%w: title %q", types.ErrDuplicateKey, b.Title)
		}
		return insert(ctx, tx, []*types.Bookmark{b})
	})
}

// Remove deletes and returns every row whose uri (or title) equals the
// given value.
func (s *Store) Remove(ctx context.Context, uri, title string) ([]*types.Bookmark, error) {
	field, value, err := types.ValidateRemoveKey(uri, title)
	if err != nil {
		return nil, err
	}
	col, err := column(field)
	if err != nil {
		return nil, err
	}

	var removed []*types.Bookmark
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = queryBookmarks(ctx, tx, s.logger, selectColumns+" WHERE "+col+" = ? ORDER BY rowid", []any{value})
		if err != nil {
			return fmt.Errorf("selecting rows to remove: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE `+col+` = ?`, value); err != nil {
			return fmt.Errorf("deleting rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("removed", "field", field, "count", len(removed))
	return removed, nil
}

// Update writes only the named columns of every row with each bookmark's
// uri. When every field is an icon field, bookmarks whose icon did not
// change in the last enrichment pass are skipped.
func (s *Store) Update(ctx context.Context, bookmarks []*types.Bookmark, fields []string) error {
	if err := types.ValidateUpdateFields(fields); err != nil {
		return err
	}
	if len(fields) == 0 || len(bookmarks) == 0 {
		return nil
	}

	sets := make([]string, len(fields))
	for i, f := range fields {
		col, err := column(f)
		if err != nil {
			return err
		}
		sets[i] = col + " = ?"
	}
	stmtSQL := `UPDATE bookmarks SET ` + strings.Join(sets, ", ") + ` WHERE uri = ?`
	iconOnly := types.OnlyIconFields(fields)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, stmtSQL)
		if err != nil {
			return fmt.Errorf("preparing update: %w", err)
		}
		defer stmt.Close()

		written := 0
		for _, b := range bookmarks {
			if iconOnly && !b.IconUpdated {
				s.logger.Debug("icon unchanged, skipping", "uri", b.URI)
				continue
			}
			args := make([]any, 0, len(fields)+1)
			for _, f := range fields {
				args = append(args, columnValue(b, f))
			}
			args = append(args, b.URI)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("updating %s: %w", b.URI, err)
			}
			written++
		}
		s.logger.Debug("updated", "fields", fields, "count", written)
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, bookmarks []*types.Bookmark) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bookmarks (title, uri, icon_uri, icon_data_uri, tags) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bookmarks {
		if _, err := stmt.ExecContext(ctx, b.Title, b.URI, b.IconURI, b.IconDataURI, b.JoinedTags()); err != nil {
			return fmt.Errorf("inserting %s: %w", b.URI, err)
		}
	}
	return nil
}
