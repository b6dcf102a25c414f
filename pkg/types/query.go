package types

import (
	"fmt"
	"strings"
)

// Query operators.
const (
	OpEquals = "="
	OpLike   = "like"
)

// Bookmark field names as used by queries, updates and storage columns.
const (
	FieldTitle       = "title"
	FieldURI         = "uri"
	FieldIconURI     = "icon_uri"
	FieldIconDataURI = "icon_data_uri"
	FieldTags        = "tags"
)

// Fields lists the stored bookmark fields in column order.
var Fields = []string{FieldTitle, FieldURI, FieldIconURI, FieldIconDataURI, FieldTags}

// IsField reports whether name is a stored bookmark field.
func IsField(name string) bool {
	switch name {
	case FieldTitle, FieldURI, FieldIconURI, FieldIconDataURI, FieldTags:
		return true
	}
	return false
}

// Condition is a single (field, operator, value) predicate. For OpLike the
// caller supplies the % and _ wildcards.
type Condition struct {
	Field string
	Op    string
	Value string
}

// Eq builds an equality condition.
func Eq(field, value string) Condition {
	return Condition{Field: field, Op: OpEquals, Value: value}
}

// Like builds a LIKE condition. value is used verbatim.
func Like(field, pattern string) Condition {
	return Condition{Field: field, Op: OpLike, Value: pattern}
}

// Conjunction is an AND of conditions.
type Conjunction []Condition

// DNF is an OR of conjunctions. The empty DNF selects every record.
type DNF []Conjunction

// Validate rejects unknown fields, unknown operators and empty conjunctions.
func (q DNF) Validate() error {
	for i, conj := range q {
		if len(conj) == 0 {
			return fmt.Errorf("%w: conjunction %d is empty", ErrInvalidQuery, i)
		}
		for _, c := range conj {
			if !IsField(c.Field) {
				return fmt.Errorf("%w: field %q", ErrInvalidQuery, c.Field)
			}
			if c.Op != OpEquals && c.Op != OpLike {
				return fmt.Errorf("%w: operator %q", ErrInvalidQuery, c.Op)
			}
		}
	}
	return nil
}

// Match reports whether b satisfies at least one conjunction. The empty DNF
// matches everything. Match assumes q has been validated.
func (q DNF) Match(b *Bookmark) bool {
	if len(q) == 0 {
		return true
	}
	for _, conj := range q {
		if conj.Match(b) {
			return true
		}
	}
	return false
}

// Match reports whether b satisfies every condition.
func (c Conjunction) Match(b *Bookmark) bool {
	for _, cond := range c {
		if !cond.Match(b) {
			return false
		}
	}
	return true
}

// Match evaluates the condition against b.
func (c Condition) Match(b *Bookmark) bool {
	v := FieldValue(b, c.Field)
	switch c.Op {
	case OpEquals:
		return v == c.Value
	case OpLike:
		return likeMatch(c.Value, v)
	}
	return false
}

// FieldValue returns the flat string value of a stored field.
func FieldValue(b *Bookmark, field string) string {
	switch field {
	case FieldTitle:
		return b.Title
	case FieldURI:
		return b.URI
	case FieldIconURI:
		return b.IconURI
	case FieldIconDataURI:
		return b.IconDataURI
	case FieldTags:
		return b.JoinedTags()
	}
	return ""
}

// likeMatch implements SQLite LIKE: % matches any run, _ matches one
// character, ASCII letters compare case-insensitively.
func likeMatch(pattern, s string) bool {
	return likeRunes([]rune(asciiLower(pattern)), []rune(asciiLower(s)))
}

func likeRunes(p, s []rune) bool {
	// px/sx remember the last % position for backtracking.
	pi, si := 0, 0
	px, sx := -1, -1
	for si < len(s) {
		switch {
		case pi < len(p) && p[pi] == '%':
			px, sx = pi, si
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == s[si]):
			pi++
			si++
		case px >= 0:
			pi = px + 1
			sx++
			si = sx
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

func asciiLower(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
