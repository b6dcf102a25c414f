package enrich

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// maxCacheName is the longest file name most filesystems accept.
const maxCacheName = 255

// diskCache stores icon data URLs, one file per icon URI.
type diskCache struct {
	dir string
}

// CacheName returns the cache file name for an icon URI: the base32 form of
// the URI, or sha256-<hex> when that would exceed the file name limit.
func CacheName(iconURI string) string {
	name := base32.StdEncoding.EncodeToString([]byte(iconURI))
	if len(name) <= maxCacheName {
		return name
	}
	sum := sha256.Sum256([]byte(iconURI))
	return "sha256-" + hex.EncodeToString(sum[:])
}

func newDiskCache(dir string) (*diskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating icon cache %s: %w", dir, err)
	}
	return &diskCache{dir: dir}, nil
}

func (c *diskCache) path(iconURI string) string {
	return filepath.Join(c.dir, CacheName(iconURI))
}

// get returns the cached data URL. A missing or empty file is a miss.
func (c *diskCache) get(iconURI string) (string, bool, error) {
	data, err := os.ReadFile(c.path(iconURI))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}

// put writes through a temp file so a concurrent reader never sees a
// partial entry.
func (c *diskCache) put(iconURI, dataURI string) error {
	tmp, err := os.CreateTemp(c.dir, ".icon-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(dataURI); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.path(iconURI)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
