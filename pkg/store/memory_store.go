package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a goroutine-safe Store backed by a map
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.ID] = snap.clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap.clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[id]; !ok {
		return ErrSnapshotNotFound
	}
	delete(s.snapshots, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, machine string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Snapshot
	for _, snap := range s.snapshots {
		if machine == "" || snap.Machine == machine {
			out = append(out, snap.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
