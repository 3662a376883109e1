package sink

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
)

// MemoryStore keeps records in a map. It backs one-shot CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.StreamRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.StreamRecord)}
}

// Persist implements ports.Sink.
func (s *MemoryStore) Persist(ctx context.Context, record model.StreamRecord) error {
	if record.StreamID == "" {
		return errors.New("record has no stream id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.StreamID] = record
	return nil
}

// Load implements ports.StreamClient.
func (s *MemoryStore) Load(ctx context.Context, streamID string) (*model.StreamRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[streamID]
	if !ok {
		return nil, ports.ErrStreamNotFound
	}
	return &record, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, contextID string, limit int) ([]model.StreamRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	for id, record := range s.records {
		if contextID == "" || record.Context == contextID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]model.StreamRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	s.mu.RUnlock()
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
