// Package store persists the resting state and data of state machine
// instances so they can be resumed later, possibly in another process.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for an id.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrMachineMismatch is returned when a snapshot was captured from a
	// definition with a different name.
	ErrMachineMismatch = errors.New("snapshot belongs to a different machine")

	// ErrStateMismatch is returned when the recorded state no longer matches
	// the definition's declared state set.
	ErrStateMismatch = errors.New("snapshot state does not match definition")
)

// Snapshot is the persisted form of an instance at rest. State is kept as
// text for readability; Ordinal is the declaration index used to restore it.
type Snapshot struct {
	ID        string
	Machine   string
	State     string
	Ordinal   int
	Data      []byte
	UpdatedAt time.Time
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	if s.Data != nil {
		c.Data = append([]byte(nil), s.Data...)
	}
	return &c
}

// Store saves and loads snapshots. Save replaces any snapshot with the same ID.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
	// List returns the snapshots of one machine, or all when machine is empty
	List(ctx context.Context, machine string) ([]*Snapshot, error)
}
