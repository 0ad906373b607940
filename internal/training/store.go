package training

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/intake/internal/model"
)

// ErrNotFound is returned when a record ID is unknown
var ErrNotFound = errors.New("training record not found")

// Store is the append-only record log. Implementations must persist a record
// completely or not at all.
type Store interface {
	Append(ctx context.Context, rec model.TrainingRecord) error
	List(ctx context.Context) ([]model.TrainingRecord, error)
	Get(ctx context.Context, id string) (model.TrainingRecord, error)
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.TrainingRecord
	index   map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Append stores a record. Duplicate IDs are rejected.
func (s *MemoryStore) Append(ctx context.Context, rec model.TrainingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[rec.ID]; dup {
		return errors.New("duplicate training record id " + rec.ID)
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// List returns all records in append order
func (s *MemoryStore) List(ctx context.Context) ([]model.TrainingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TrainingRecord(nil), s.records...), nil
}

// Get returns one record
func (s *MemoryStore) Get(ctx context.Context, id string) (model.TrainingRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.TrainingRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.TrainingRecord{}, ErrNotFound
	}
	return s.records[i], nil
}
