package types

import (
	"context"
	"fmt"
	"strings"
)

// Store is the capability contract shared by every bookmark backend.
//
// Query order is backend-defined but deterministic for a fixed store state.
// Uniqueness of URI is checked only by Add; Save and Update never check it.
type Store interface {
	// Query returns every bookmark matching at least one conjunction of dnf.
	// A malformed dnf fails with ErrInvalidQuery before storage is touched.
	// The empty dnf is equivalent to Load.
	Query(ctx context.Context, dnf DNF) ([]*Bookmark, error)

	// Save writes every bookmark as a new record. No de-duplication.
	Save(ctx context.Context, bookmarks []*Bookmark) error

	// Load returns every live record.
	Load(ctx context.Context) ([]*Bookmark, error)

	// Add saves b unless a record with the same title or the same URI
	// exists, in which case it returns an error wrapping ErrDuplicateKey.
	Add(ctx context.Context, b *Bookmark) error

	// Remove deletes every record whose URI (or title) equals the given
	// value and returns them. Exactly one of uri and title must be set,
	// otherwise ErrInvalidRemoveKey.
	Remove(ctx context.Context, uri, title string) ([]*Bookmark, error)

	// Update persists a mutation of the named fields. fields must not
	// contain FieldURI (ErrUpdateURI). How fields is honored is
	// backend-specific.
	Update(ctx context.Context, bookmarks []*Bookmark, fields []string) error

	// Close releases backend resources.
	Close() error
}

// ValidateRemoveKey enforces the uri XOR title contract of Store.Remove and
// returns the field and value to match.
func ValidateRemoveKey(uri, title string) (field, value string, err error) {
	if (uri == "") == (title == "") {
		return "", "", ErrInvalidRemoveKey
	}
	if uri != "" {
		return FieldURI, uri, nil
	}
	return FieldTitle, title, nil
}

// ValidateUpdateFields rejects unknown fields and FieldURI.
func ValidateUpdateFields(fields []string) error {
	for _, f := range fields {
		if f == FieldURI {
			return ErrUpdateURI
		}
		if !IsField(f) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
	}
	return nil
}

// OnlyIconFields reports whether every field is icon-related. An empty list
// is not icon-only.
func OnlyIconFields(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f, "icon") {
			return false
		}
	}
	return true
}
