package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// logFile is an open log holding the exclusive lock.
type logFile struct {
	f      *os.File
	path   string
	logger *slog.Logger
}

func openLocked(ctx context.Context, path string, logger *slog.Logger) (*logFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &logFile{f: f, path: path, logger: logger}, nil
}

func (l *logFile) close() error {
	return errors.Join(unlockFile(l.f), l.f.Close())
}

type folded struct {
	seq    int
	fields fieldMap
}

// fold reads the log from the start and merges records per uri. A live
// record shallow-updates the uri's field map; a deleted record drops the map
// entirely, so a later record starts from empty and takes a new position.
// Bookmarks are returned in order of (re)appearance. Malformed lines and
// maps that do not reconstruct into a valid bookmark are logged and skipped.
func (l *logFile) fold() ([]*types.Bookmark, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking %s: %w", l.path, err)
	}

	state := make(map[string]*folded)
	seq := 0
	r := bufio.NewReader(l.f)
	for lineNo := 1; ; lineNo++ {
		line, rerr := r.ReadBytes('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, fmt.Errorf("reading %s: %w", l.path, rerr)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			uri, fields, deleted, err := decodeLine(line)
			switch {
			case err != nil:
				l.logger.Warn("skipping malformed record",
					"line", lineNo, "error", fmt.Errorf("%w: %v", types.ErrStoreCorruption, err))
			case deleted:
				delete(state, uri)
			default:
				acc, ok := state[uri]
				if !ok {
					acc = &folded{seq: seq, fields: make(fieldMap, len(fields))}
					seq++
					state[uri] = acc
				}
				for k, v := range fields {
					acc.fields[k] = v
				}
			}
		}
		if rerr != nil {
			break
		}
	}

	live := make([]*folded, 0, len(state))
	for _, acc := range state {
		live = append(live, acc)
	}
	slices.SortFunc(live, func(a, b *folded) int { return a.seq - b.seq })

	out := make([]*types.Bookmark, 0, len(live))
	for _, acc := range live {
		b, err := decodeFields(acc.fields)
		if err != nil {
			l.logger.Warn("dropping unreadable bookmark",
				"error", fmt.Errorf("%w: %v", types.ErrStoreCorruption, err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// append writes lines at the end of the log in one write. A newline is
// written first when the log ends in a truncated record.
func (l *logFile) append(lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	torn, err := l.endsTorn()
	if err != nil {
		return err
	}
	if torn {
		buf.WriteByte('\n')
	}
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if _, err := l.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending to %s: %w", l.path, err)
	}
	return nil
}

// endsTorn reports whether the log is non-empty and its last byte is not a
// newline.
func (l *logFile) endsTorn() (bool, error) {
	info, err := l.f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := l.f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("reading %s: %w", l.path, err)
	}
	return last[0] != '\n', nil
}
