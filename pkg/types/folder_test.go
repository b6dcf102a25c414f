package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree returns
//
//	root
//	└── toolbar
//	    ├── dev
//	    │   ├── Go      (https://go.dev)
//	    │   └── SQLite  (https://sqlite.org)
//	    └── News        (https://news.example.com)
func buildTree(t *testing.T) *Folder {
	t.Helper()
	root := NewFolder("", "")
	toolbar := NewFolder("toolbar", root.Path())
	dev := NewFolder("dev", toolbar.Path())

	mk := func(title, uri, parent string) *Bookmark {
		b, err := NewBookmark(title, uri, parent)
		require.NoError(t, err)
		return b
	}
	dev.Add(mk("Go", "https://go.dev", dev.Path()))
	dev.Add(mk("SQLite", "https://sqlite.org", dev.Path()))
	toolbar.Add(dev)
	toolbar.Add(mk("News", "https://news.example.com", toolbar.Path()))
	root.Add(toolbar)
	return root
}

func TestFolderPath(t *testing.T) {
	root := buildTree(t)
	toolbar := root.Children[0].(*Folder)
	dev := toolbar.Children[0].(*Folder)

	assert.Equal(t, "", root.Path())
	assert.Equal(t, "toolbar", toolbar.Path())
	assert.Equal(t, "toolbar.dev", dev.Path())
	assert.Equal(t, "toolbar.dev.Go", dev.Children[0].Path())
}

func TestFolderWalk(t *testing.T) {
	var titles []string
	buildTree(t).Walk(func(b *Bookmark) { titles = append(titles, b.Title) })
	assert.Equal(t, []string{"Go", "SQLite", "News"}, titles)
}

func TestFlatten(t *testing.T) {
	t.Run("all bookmarks, common tag removed", func(t *testing.T) {
		bookmarks, counts := Flatten(buildTree(t), nil)
		require.Len(t, bookmarks, 3)

		// "toolbar" is on every bookmark and is dropped.
		assert.Equal(t, []string{"dev"}, bookmarks[0].Tags)
		assert.Equal(t, []string{"dev"}, bookmarks[1].Tags)
		assert.Empty(t, bookmarks[2].Tags)
		assert.Equal(t, map[string]int{"dev": 2}, counts)
	})

	t.Run("prefix filter", func(t *testing.T) {
		bookmarks, counts := Flatten(buildTree(t), []string{"toolbar.News", "nomatch"})
		require.Len(t, bookmarks, 1)
		assert.Equal(t, "News", bookmarks[0].Title)
		assert.Empty(t, bookmarks[0].Tags)
		assert.Empty(t, counts)
	})
}

func TestMatchesPrefix(t *testing.T) {
	assert.True(t, MatchesPrefix("a.b", nil))
	assert.True(t, MatchesPrefix("a.b", []string{"x", "a."}))
	assert.False(t, MatchesPrefix("a.b", []string{"b"}))
}
