// Package sqlite provides the public API for the relational bookmark
// backend while keeping implementation details internal.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/bookmarks/internal/sqlite"
	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// Open opens or creates the bookmark database at path.
//
// Example:
//
//	store, err := sqlite.Open("bookmarks.db", slog.Default())
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string, logger *slog.Logger) (types.Store, error) {
	s, err := sqlite.Open(path, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}
