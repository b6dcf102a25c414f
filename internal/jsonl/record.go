package jsonl

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// record is one line of the log: a field map and a delete marker.
//
//	{"record": {"title": ..., "uri": ..., "icon_uri": ..., "icon_data_uri": ..., "tags": [...]}, "deleted": false}
type record struct {
	Record  json.RawMessage `json:"record"`
	Deleted bool            `json:"deleted"`
}

// fieldMap is the accumulated state of one uri. Keys are field names.
type fieldMap map[string]json.RawMessage

var errNoURI = errors.New("record has no uri")

// encodeSnapshot renders the full field map of b as a live record.
func encodeSnapshot(b *types.Bookmark) ([]byte, error) {
	if b.Tags == nil {
		b = b.Clone()
		b.Tags = []string{}
	}
	fields, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding bookmark %s: %w", b.URI, err)
	}
	return json.Marshal(record{Record: fields})
}

// encodeTombstone renders a delete marker carrying only the key fields.
func encodeTombstone(b *types.Bookmark) ([]byte, error) {
	fields, err := json.Marshal(map[string]string{
		types.FieldURI:   b.URI,
		types.FieldTitle: b.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding tombstone %s: %w", b.URI, err)
	}
	return json.Marshal(record{Record: fields, Deleted: true})
}

// decodeLine parses one log line.
func decodeLine(line []byte) (uri string, fields fieldMap, deleted bool, err error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return "", nil, false, err
	}
	if err := json.Unmarshal(rec.Record, &fields); err != nil {
		return "", nil, false, fmt.Errorf("record body: %w", err)
	}
	raw, ok := fields[types.FieldURI]
	if !ok {
		return "", nil, false, errNoURI
	}
	if err := json.Unmarshal(raw, &uri); err != nil || uri == "" {
		return "", nil, false, errNoURI
	}
	return uri, fields, rec.Deleted, nil
}

// decodeFields reconstructs a bookmark from a folded field map.
func decodeFields(fields fieldMap) (*types.Bookmark, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var b types.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if err := b.Normalize(); err != nil {
		return nil, err
	}
	return &b, nil
}
