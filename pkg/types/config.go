package types

import (
	"fmt"
	"os"
	"strings"
)

// Backend kinds.
const (
	BackendSQLite    = "sqlite"     // *.db
	BackendJSONL     = "jsonl"      // *.jsonl
	BackendNoIcon    = "njsonl"     // *.njsonl, icon payloads never stored
	BackendSplitIcon = "split-icon" // existing directory, icons in a side archive
)

// Files inside a split-icon store directory.
const (
	SplitLogFile     = "bookmarks.jsonl"
	SplitArchiveFile = "icons.zip"
)

// Config selects a backend by storage location.
type Config struct {
	Location string `json:"location" yaml:"location"`
}

// Backend maps Location to a backend kind purely by naming convention:
// the .db, .jsonl and .njsonl suffixes, or an existing directory.
func (c Config) Backend() (string, error) {
	if c.Location == "" {
		return "", ErrLocationEmpty
	}
	switch {
	case strings.HasSuffix(c.Location, ".db"):
		return BackendSQLite, nil
	case strings.HasSuffix(c.Location, ".njsonl"):
		return BackendNoIcon, nil
	case strings.HasSuffix(c.Location, ".jsonl"):
		return BackendJSONL, nil
	}
	if info, err := os.Stat(c.Location); err == nil && info.IsDir() {
		return BackendSplitIcon, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLocation, c.Location)
}
