package types

import (
	"strings"
	"time"
)

// Node is an element of an import tree: a *Folder or a *Bookmark.
type Node interface {
	Path() string
}

// Folder groups bookmarks and sub-folders in an import tree. Browser export
// parsers produce Folder trees; Flatten turns them into storable bookmarks.
type Folder struct {
	Title    string
	Parent   string
	Created  time.Time
	Modified time.Time
	Children []Node
}

// NewFolder returns an empty folder under parent.
func NewFolder(title, parent string) *Folder {
	now := time.Now()
	return &Folder{Title: title, Parent: parent, Created: now, Modified: now}
}

// Add appends a child node.
func (f *Folder) Add(child Node) {
	f.Children = append(f.Children, child)
}

// Path is the dotted path of the folder. A root folder's path is its title.
func (f *Folder) Path() string {
	if f.Parent == "" {
		return f.Title
	}
	return f.Parent + "." + f.Title
}

// Walk calls fn for every bookmark under f in tree order.
func (f *Folder) Walk(fn func(b *Bookmark)) {
	for _, child := range f.Children {
		switch c := child.(type) {
		case *Folder:
			c.Walk(fn)
		case *Bookmark:
			fn(c)
		}
	}
}

// MatchesPrefix reports whether path starts with at least one prefix.
// An empty prefix list matches everything.
func MatchesPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Flatten collects the bookmarks under root whose path matches prefixes and
// assigns each the titles of its ancestor folders as tags. Tags carried by
// every selected bookmark say nothing and are removed. The second result
// counts the remaining tags.
func Flatten(root *Folder, prefixes []string) ([]*Bookmark, map[string]int) {
	var (
		bookmarks []*Bookmark
		stack     []string
	)
	counts := make(map[string]int)

	var visit func(n Node)
	visit = func(n Node) {
		switch x := n.(type) {
		case *Folder:
			if x.Title != "" {
				stack = append(stack, x.Title)
			}
			for _, child := range x.Children {
				visit(child)
			}
			if x.Title != "" {
				stack = stack[:len(stack)-1]
			}
		case *Bookmark:
			if !MatchesPrefix(x.Path(), prefixes) {
				return
			}
			x.SetTags(stack)
			for _, t := range x.Tags {
				counts[t]++
			}
			bookmarks = append(bookmarks, x)
		}
	}
	visit(root)

	total := len(bookmarks)
	for tag, n := range counts {
		if n != total {
			continue
		}
		delete(counts, tag)
		for _, b := range bookmarks {
			b.RemoveTags(tag)
		}
	}
	return bookmarks, counts
}
