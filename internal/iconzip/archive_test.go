package iconzip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entryNames lists the entries of the zip at path.
func entryNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestKeyIsStableHex(t *testing.T) {
	k := Key("https://example.com")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("https://example.com"))
	assert.NotEqual(t, k, Key("https://example.org"))
}

func TestArchiveMissingFile(t *testing.T) {
	a := Open(filepath.Join(t.TempDir(), "icons.zip"), nil)

	got, err := a.GetAll([]string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArchivePutAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icons.zip")
	a := Open(path, nil)

	require.NoError(t, a.Put(map[string]string{
		"a": "data:image/png;base64,AAAA",
		"b": "data:image/png;base64,BBBB",
	}))
	_, err := os.Stat(path)
	require.NoError(t, err, "archive should exist after first put")

	got, err := a.GetAll([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "data:image/png;base64,AAAA"}, got)

	t.Run("replace keeps other entries", func(t *testing.T) {
		require.NoError(t, a.Put(map[string]string{"a": "data:image/gif;base64,CCCC"}))

		all, err := a.GetAll([]string{"a", "b", "missing"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"a": "data:image/gif;base64,CCCC",
			"b": "data:image/png;base64,BBBB",
		}, all)

		assert.ElementsMatch(t, []string{"a", "b"}, entryNames(t, path))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "icons.zip", entries[0].Name())
	})
}

func TestArchiveEmptyPutIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icons.zip")
	require.NoError(t, Open(path, nil).Put(nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestArchivePutReplacesUnreadableArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icons.zip")
	a := Open(path, nil)
	require.NoError(t, a.Put(map[string]string{
		"a": "data:image/png;base64,AAAA",
		"b": "data:image/png;base64,BBBB",
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()/2))
	_, err = a.GetAll([]string{"a"})
	require.Error(t, err)

	require.NoError(t, a.Put(map[string]string{"c": "data:image/png;base64,CCCC"}))
	assert.Equal(t, []string{"c"}, entryNames(t, path))
	got, err := a.GetAll([]string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c": "data:image/png;base64,CCCC"}, got)
}
