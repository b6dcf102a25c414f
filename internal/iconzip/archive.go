// Package iconzip keeps embedded icon payloads in a zip archive beside a
// bookmark log. Entries are keyed by Key(uri) and hold the icon data URL as
// written by the enrichment pipeline.
//
// An Archive does no locking of its own across processes. Callers serialize
// writers by holding the log's file lock around Put.
package iconzip

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// Key derives the content key of a bookmark's icon from its URI.
func Key(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:])
}

// Archive is a zip file of icon blobs.
type Archive struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// Open returns an Archive at path. The file is created by the first Put.
func Open(path string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Archive{path: path, logger: logger.With("component", "iconzip")}
}

// Path returns the archive file path.
func (a *Archive) Path() string { return a.path }

// GetAll returns the blobs stored under keys, reading the archive once.
// Keys without an entry are absent from the result.
func (a *Archive) GetAll(keys []string) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	r, err := zip.OpenReader(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", a.path, err)
	}
	defer r.Close()

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	for _, f := range r.File {
		if !want[f.Name] {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			a.logger.Warn("unreadable archive entry", "key", f.Name, "error", err)
			continue
		}
		out[f.Name] = data
	}
	return out, nil
}

// Put stores every blob, replacing existing entries with the same key. The
// archive is rewritten to a temp file and renamed into place, so readers
// see either the old or the new archive and never a partial one. An
// existing archive that is not a readable zip is logged and replaced by one
// holding only blobs.
func (a *Archive) Put(blobs map[string]string) error {
	if len(blobs) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".icons-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	bw := bufio.NewWriter(tmp)
	zw := zip.NewWriter(bw)

	if err := a.copyExisting(zw, blobs); err != nil {
		return fail(err)
	}

	keys := make([]string, 0, len(blobs))
	for k := range blobs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	now := time.Now()
	for _, k := range keys {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: k, Method: zip.Deflate, Modified: now})
		if err != nil {
			return fail(fmt.Errorf("creating entry %s: %w", k, err))
		}
		if _, err := io.WriteString(w, blobs[k]); err != nil {
			return fail(fmt.Errorf("writing entry %s: %w", k, err))
		}
	}

	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("closing archive writer: %w", err))
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	a.logger.Debug("archive rewritten", "path", a.path, "written", len(blobs))
	return nil
}

// copyExisting carries over every current entry not being replaced, without
// recompressing it.
func (a *Archive) copyExisting(zw *zip.Writer, replace map[string]string) error {
	r, err := zip.OpenReader(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
		a.logger.Warn("discarding unreadable archive", "path", a.path,
			"error", fmt.Errorf("%w: %v", types.ErrStoreCorruption, err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", a.path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if _, ok := replace[f.Name]; ok {
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("copying entry %s: %w", f.Name, err)
		}
	}
	return nil
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
