// Package store opens the bookmark backend named by a storage location.
package store

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/bookmarks/internal/jsonl"
	"github.com/mesh-intelligence/bookmarks/pkg/sqlite"
	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// Kind returns the backend kind for location without opening it. See
// types.Config.Backend.
func Kind(location string) (string, error) {
	return types.Config{Location: location}.Backend()
}

// Open returns the Store for location:
//
//	*.db           relational
//	*.jsonl        log
//	*.njsonl       log without icon payloads
//	existing dir   log with icons in a side archive
func Open(location string, logger *slog.Logger) (types.Store, error) {
	kind, err := Kind(location)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("opening store", "location", location, "backend", kind)

	var s types.Store
	switch kind {
	case types.BackendSQLite:
		s, err = sqlite.Open(location, logger)
	case types.BackendJSONL:
		s, err = jsonl.Open(location, logger)
	case types.BackendNoIcon:
		s, err = jsonl.OpenNoIcon(location, logger)
	case types.BackendSplitIcon:
		s, err = jsonl.OpenSplitIcon(location, logger)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownLocation, location)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", kind, err)
	}
	return s, nil
}
