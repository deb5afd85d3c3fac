package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingJSONLStore stores history in a JSONL file with automatic rotation.
// Rotated backups are replayed oldest first, so records dropped by rotation
// are gone for good.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   false,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeEntry(s.logger, entry{Record: &rec})
}

// files lists rotated backups (name-<timestamp>.ext) followed by the live file.
func (s *RotatingJSONLStore) files() ([]string, error) {
	ext := filepath.Ext(s.path)
	pattern := strings.TrimSuffix(s.path, ext) + "*" + ext
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (s *RotatingJSONLStore) load() (*journal, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	j := newJournal()
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		rerr := j.replay(f)
		_ = f.Close()
		if rerr != nil {
			return nil, rerr
		}
	}
	return j, nil
}

func (s *RotatingJSONLStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load()
	if err != nil {
		return Record{}, err
	}
	r, ok := j.recs[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// Query reads all log files including rotated ones.
func (s *RotatingJSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load()
	if err != nil {
		return nil, err
	}
	return filterRecords(j.records(), q), nil
}

func (s *RotatingJSONLStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := j.recs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return writeEntry(s.logger, entry{Deleted: id})
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}
