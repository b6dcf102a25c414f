package types

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultIconURI is assigned when a bookmark carries no icon reference.
// It is resolved against the bookmark URI like any other relative icon.
const DefaultIconURI = "/favicon.ico"

// TagSeparator joins tags in flat string form (relational column, queries).
const TagSeparator = ";"

// Bookmark is a single stored link. URI is the primary key.
type Bookmark struct {
	Title       string    `json:"title"`
	URI         string    `json:"uri"`
	IconURI     string    `json:"icon_uri"`
	IconDataURI string    `json:"icon_data_uri"`
	Tags        []string  `json:"tags"`
	Parent      string    `json:"-"` // Dotted folder path from the import tree.
	Created     time.Time `json:"-"`
	Modified    time.Time `json:"-"`

	// IconUpdated is true only when the last enrichment pass changed
	// IconDataURI. It is never persisted.
	IconUpdated bool `json:"-"`
}

// NewBookmark builds a validated bookmark with a normalized icon URI.
func NewBookmark(title, uri, parent string) (*Bookmark, error) {
	b := &Bookmark{Title: title, URI: uri, Parent: parent}
	if err := b.Normalize(); err != nil {
		return nil, err
	}
	return b, nil
}

// Normalize validates the URI, resolves IconURI to an absolute URL
// (defaulting to DefaultIconURI), canonicalizes tags and stamps
// Created/Modified when they are unset.
func (b *Bookmark) Normalize() error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := b.SetIconURI(b.IconURI); err != nil {
		return err
	}
	b.SetTags(b.Tags)
	now := time.Now()
	if b.Created.IsZero() {
		b.Created = now
	}
	if b.Modified.IsZero() {
		b.Modified = now
	}
	return nil
}

// Validate checks that URI is an absolute http(s) URL with a host.
func (b *Bookmark) Validate() error {
	u, err := url.Parse(b.URI)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURI, b.URI, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: %q: lack of scheme", ErrInvalidURI, b.URI)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidURI, b.URI, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: lack of host", ErrInvalidURI, b.URI)
	}
	return nil
}

// SetIconURI assigns the icon reference, resolving it against URI when it is
// root-relative, scheme-relative or relative. Absolute references, data URIs
// included, are kept as given.
func (b *Bookmark) SetIconURI(raw string) error {
	if raw == "" {
		raw = DefaultIconURI
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: icon %q: %v", ErrInvalidURI, raw, err)
	}
	if ref.IsAbs() {
		b.IconURI = raw
		return nil
	}
	base, err := url.Parse(b.URI)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURI, b.URI, err)
	}
	b.IconURI = base.ResolveReference(ref).String()
	return nil
}

// HasEmbeddedIcon reports whether IconURI is itself an image data URI.
func (b *Bookmark) HasEmbeddedIcon() bool {
	return strings.HasPrefix(b.IconURI, "data:image/")
}

// Path is the dotted folder path of the bookmark including its own title.
func (b *Bookmark) Path() string {
	return b.Parent + "." + b.Title
}

// SetTags replaces the tag set. Empty tags are dropped; the result is sorted
// and de-duplicated.
func (b *Bookmark) SetTags(tags []string) {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	b.Tags = slices.Compact(out)
}

// AddTags merges tags into the set.
func (b *Bookmark) AddTags(tags ...string) {
	b.SetTags(append(slices.Clone(b.Tags), tags...))
}

// RemoveTags drops tags from the set. Absent tags are ignored.
func (b *Bookmark) RemoveTags(tags ...string) {
	b.Tags = slices.DeleteFunc(slices.Clone(b.Tags), func(t string) bool {
		return slices.Contains(tags, t)
	})
}

// JoinedTags returns the tag set in its flat string form.
func (b *Bookmark) JoinedTags() string {
	return strings.Join(b.Tags, TagSeparator)
}

// SplitTags parses the flat string form produced by JoinedTags.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, TagSeparator)
}

// Clone returns a copy that shares no mutable state with b.
func (b *Bookmark) Clone() *Bookmark {
	c := *b
	c.Tags = slices.Clone(b.Tags)
	return &c
}
