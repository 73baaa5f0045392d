package eventlog

import (
	"Go2NetSentinel/internal/model"
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CSVLog appends one CSV line per event to a file.
type CSVLog struct {
	path string

	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVLog opens (or creates) the log file at path, creating parent directories.
func NewCSVLog(path string) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create event log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log '%s': %w", path, err)
	}
	return &CSVLog{path: path, file: file, w: csv.NewWriter(file)}, nil
}

// Path returns the log file location.
func (l *CSVLog) Path() string { return l.path }

// Append writes ev as one line and flushes it.
func (l *CSVLog) Append(ev model.ScoredEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if err := l.w.Write(rowOf(ev).fields()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("failed to flush event log: %w", err)
	}
	return nil
}

// Recent streams the whole file keeping only the last n records in a ring, so
// memory stays bounded by n. A missing file yields no rows.
func (l *CSVLog) Recent(ctx context.Context, n int) ([]Row, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	file, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	return lastRows(ctx, file, n)
}

func lastRows(ctx context.Context, src io.Reader, n int) ([]Row, error) {
	r := csv.NewReader(bufio.NewReader(src))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	ring := make([]Row, n)
	seen := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A torn trailing line from a concurrent append; keep what was read.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("failed to read event log: %w", err)
		}
		if seen%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ring[seen%n] = rowFromFields(rec)
		seen++
	}

	count := min(seen, n)
	out := make([]Row, 0, count)
	start := seen - count
	for i := start; i < seen; i++ {
		out = append(out, ring[i%n])
	}
	return out, nil
}

// Close flushes and closes the file.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.w.Flush()
	err := l.file.Close()
	l.file = nil
	return err
}
