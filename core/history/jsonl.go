package history

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// JSONLStore keeps history in a single append-only JSONL file. Deletes are
// written as tombstones.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(entry{Record: &rec})
}

func (s *JSONLStore) write(e entry) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return writeEntry(f, e)
}

func (s *JSONLStore) load() (*journal, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	j := newJournal()
	if err := j.replay(f); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *JSONLStore) Get(ctx context.Context, id string) (Record, error) {
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

func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load()
	if err != nil {
		return nil, err
	}
	return filterRecords(j.records(), q), nil
}

func (s *JSONLStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := j.recs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.write(entry{Deleted: id})
}

func (s *JSONLStore) Close() error { return nil }
