// Package jsonl persists audit events as one JSON document per line. The
// active file rotates by size into a bounded set of numbered backups kept
// alongside it.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/toolgate/toolgate/pkg/types"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
)

// Options tunes rotation; zero values fall back to the package defaults.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
}

// Store is an append-only audit sink. The active file's size is tracked in
// memory so appends never stat the file.
type Store struct {
	path    string
	limit   int64
	backups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// Open creates the log directory if needed and resumes the active file at
// path, picking up its current size.
func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path is empty")
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = defaultMaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}
	f, size, err := openActive(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:    path,
		limit:   int64(opts.MaxSizeMB) << 20,
		backups: opts.MaxBackups,
		file:    f,
		size:    size,
	}, nil
}

func openActive(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("open audit log: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat audit log: %w", err)
	}
	return f, st.Size(), nil
}

// AppendEvent writes ev as a single line. When the write would push the
// active file past the limit it rotates first, so a record never spans two
// files. An oversized record on an empty file is written anyway.
func (s *Store) AppendEvent(_ context.Context, ev types.Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("audit log is closed")
	}
	if s.size > 0 && s.size+int64(len(line)) > s.limit {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := s.file.Write(line)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// QueryEvents is unsupported; the JSONL log is write-only. Configure the
// sqlite backend when the audit command needs to read events back.
func (s *Store) QueryEvents(_ context.Context, _ types.EventQuery) ([]types.Event, error) {
	return nil, fmt.Errorf("jsonl audit log is write-only")
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// rotateLocked shifts events.jsonl.1 up to .2 and so on, dropping the
// oldest backup, then reopens a fresh active file.
func (s *Store) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close audit log for rotation: %w", err)
	}
	for i := s.backups; i > 1; i-- {
		older := fmt.Sprintf("%s.%d", s.path, i-1)
		if _, err := os.Stat(older); err == nil {
			_ = os.Rename(older, fmt.Sprintf("%s.%d", s.path, i))
		}
	}
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	f, size, err := openActive(s.path)
	if err != nil {
		return err
	}
	s.file, s.size = f, size
	return nil
}
