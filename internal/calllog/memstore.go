package calllog

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// memRecord is a CallRecord plus its accumulated turns and end time.
type memRecord struct {
	CallRecord
	Turns   []Turn
	EndedAt time.Time
	ended   bool
}

// MemStore is an in-memory [Store] for single-process deployments and
// tests. Records vanish on restart.
type MemStore struct {
	mu      sync.Mutex
	records map[string]*memRecord
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*memRecord)}
}

// Begin implements Store.
func (s *MemStore) Begin(_ context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = &memRecord{CallRecord: rec}
	return nil
}

// AppendTurn implements Store. Turns for unknown sessions are dropped; the
// call may have ended while its last pipeline run was in flight.
func (s *MemStore) AppendTurn(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[sessionID]; ok && !rec.ended {
		rec.Turns = append(rec.Turns, turn)
	}
	return nil
}

// End implements Store.
func (s *MemStore) End(_ context.Context, sessionID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[sessionID]; ok && !rec.ended {
		rec.EndedAt = endedAt
		rec.ended = true
	}
	return nil
}

// Turns returns a copy of the recorded turns for a session. Test helper.
func (s *MemStore) Turns(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return nil
	}
	out := make([]Turn, len(rec.Turns))
	copy(out, rec.Turns)
	return out
}

// Len returns the number of recorded calls.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
