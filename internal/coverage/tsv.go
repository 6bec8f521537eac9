package coverage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"partrecon/internal/apperr"
	"partrecon/internal/fileutil"
)

var tsvHeader = []string{
	"date", "run_id", "total", "match", "tolerance", "not_impl",
	"intentional", "bug", "missing", "fail", "coverage",
}

// TSVStore keeps the history as a tab-separated file with a header row.
// Every append rewrites the file through a temp file under a lock.
type TSVStore struct {
	path string
}

// OpenTSV returns a store for path. The file is created on first append.
func OpenTSV(path string) *TSVStore {
	return &TSVStore{path: path}
}

// Append adds a snapshot after the existing rows.
func (s *TSVStore) Append(ctx context.Context, snap Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}
	return fileutil.WithLock(s.path, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := s.read()
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.RunID == snap.RunID {
				return fmt.Errorf("%w: %s", ErrDuplicateRun, snap.RunID)
			}
		}
		rows = append(rows, snap)

		var buf bytes.Buffer
		buf.WriteString(strings.Join(tsvHeader, "\t"))
		buf.WriteByte('\n')
		for _, row := range rows {
			buf.WriteString(formatRow(row))
			buf.WriteByte('\n')
		}
		return fileutil.WriteFileAtomic(s.path, buf.Bytes(), 0o644)
	})
}

// Window returns the last n snapshots, oldest first.
func (s *TSVStore) Window(ctx context.Context, n int) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.read()
	if err != nil {
		return nil, err
	}
	return lastN(rows, n), nil
}

// Close is a no-op for the file store.
func (s *TSVStore) Close() error { return nil }

func (s *TSVStore) read() ([]Snapshot, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open coverage history: %w", err)
	}
	defer file.Close()

	var rows []Snapshot
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if lineNo == 1 && strings.HasPrefix(line, tsvHeader[0]+"\t") {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrParse, "coverage history", fmt.Sprintf("%s:%d", s.path, lineNo), err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read coverage history: %w", err)
	}
	return rows, nil
}

func formatRow(s Snapshot) string {
	cols := []string{
		s.Timestamp.UTC().Format(time.RFC3339),
		s.RunID,
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Match),
		strconv.Itoa(s.Tolerance),
		strconv.Itoa(s.NotImpl),
		strconv.Itoa(s.Intentional),
		strconv.Itoa(s.Bug),
		strconv.Itoa(s.Missing),
		strconv.Itoa(s.Fail),
		strconv.FormatFloat(s.Coverage, 'f', 2, 64),
	}
	return strings.Join(cols, "\t")
}

func parseRow(line string) (Snapshot, error) {
	cols := strings.Split(line, "\t")
	if len(cols) != len(tsvHeader) {
		return Snapshot{}, fmt.Errorf("expected %d columns, got %d", len(tsvHeader), len(cols))
	}
	ts, err := time.Parse(time.RFC3339, cols[0])
	if err != nil {
		return Snapshot{}, fmt.Errorf("date: %w", err)
	}
	ints := make([]int, 8)
	for i := range ints {
		value, err := strconv.Atoi(strings.TrimSpace(cols[i+2]))
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", tsvHeader[i+2], err)
		}
		ints[i] = value
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("coverage: %w", err)
	}
	return Snapshot{
		RunID:       cols[1],
		Timestamp:   ts.UTC(),
		Total:       ints[0],
		Match:       ints[1],
		Tolerance:   ints[2],
		NotImpl:     ints[3],
		Intentional: ints[4],
		Bug:         ints[5],
		Missing:     ints[6],
		Fail:        ints[7],
		Coverage:    pct,
	}, nil
}
