package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

const selectColumns = `SELECT title, uri, icon_uri, icon_data_uri, tags FROM bookmarks`

// column returns the quoted column for a field name. Only names in
// types.Fields are accepted; user input never reaches the SQL text.
func column(field string) (string, error) {
	if !types.IsField(field) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidField, field)
	}
	return `"` + field + `"`, nil
}

// whereClause renders dnf as ((a) AND (b)) OR ((c)) with bound values. The
// empty DNF renders as the empty string.
func whereClause(dnf types.DNF) (string, []any, error) {
	if len(dnf) == 0 {
		return "", nil, nil
	}
	var (
		ors  []string
		args []any
	)
	for _, conj := range dnf {
		ands := make([]string, 0, len(conj))
		for _, c := range conj {
			col, err := column(c.Field)
			if err != nil {
				return "", nil, err
			}
			op := "="
			if c.Op == types.OpLike {
				op = "LIKE"
			}
			ands = append(ands, fmt.Sprintf("(%s %s ?)", col, op))
			args = append(args, c.Value)
		}
		ors = append(ors, "("+strings.Join(ands, " AND ")+")")
	}
	return " WHERE " + strings.Join(ors, " OR "), args, nil
}

// columnValue returns the stored text of a bookmark field.
func columnValue(b *types.Bookmark, field string) string {
	return types.FieldValue(b, field)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (*types.Bookmark, error) {
	var title, uri, iconURI, iconData, tags sql.NullString
	if err := row.Scan(&title, &uri, &iconURI, &iconData, &tags); err != nil {
		return nil, err
	}
	b := &types.Bookmark{
		Title:       title.String,
		URI:         uri.String,
		IconURI:     iconURI.String,
		IconDataURI: iconData.String,
		Tags:        types.SplitTags(tags.String),
	}
	return b, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryBookmarks scans the rows of stmt into normalized bookmarks. Rows that
// fail normalization are logged and skipped.
func queryBookmarks(ctx context.Context, q queryer, logger *slog.Logger, stmt string, args []any) ([]*types.Bookmark, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		if err := b.Normalize(); err != nil {
			logger.Warn("dropping unreadable bookmark", "uri", b.URI,
				"error", fmt.Errorf("%w: %v", types.ErrStoreCorruption, err))
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
