package store

import (
	"fmt"
	"time"

	"github.com/anggasct/fsm"
)

// Capture records the resting state and data of a started instance
func Capture[S comparable, C, D any](m *fsm.FSM[S, C, D]) (*Snapshot, error) {
	if !m.IsStarted() {
		return nil, fmt.Errorf("capturing %s: %w", m.ID(), fsm.ErrNotStarted)
	}

	data, err := EncodeValue(m.Data())
	if err != nil {
		return nil, fmt.Errorf("encoding data of %s: %w", m.ID(), err)
	}

	def := m.Definition()
	return &Snapshot{
		ID:        m.ID(),
		Machine:   def.Name(),
		State:     fmt.Sprint(m.State()),
		Ordinal:   def.Ordinal(m.State()),
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Restore maps a snapshot back onto def, returning the state to resume in and
// the decoded data
func Restore[S comparable, C, D any](def *fsm.Definition[S, C, D], snap *Snapshot) (S, D, error) {
	var (
		state S
		data  D
	)

	if snap.Machine != def.Name() {
		return state, data, fmt.Errorf("%w: %q is not %q", ErrMachineMismatch, snap.Machine, def.Name())
	}

	state, ok := def.StateAt(snap.Ordinal)
	if !ok || fmt.Sprint(state) != snap.State {
		return state, data, fmt.Errorf("%w: %s at ordinal %d", ErrStateMismatch, snap.State, snap.Ordinal)
	}

	data, err := DecodeValue[D](snap.Data)
	if err != nil {
		return state, data, fmt.Errorf("decoding data of %s: %w", snap.ID, err)
	}
	return state, data, nil
}

// Resume creates an instance from a snapshot and relocates it to the recorded
// state with ReStartAndEnter. The initial-enter action of that state does not
// run again.
func Resume[S comparable, C, D any](def *fsm.Definition[S, C, D], snap *Snapshot, ctx C, opts ...fsm.InstanceOption[S]) (*fsm.FSM[S, C, D], error) {
	state, data, err := Restore(def, snap)
	if err != nil {
		return nil, err
	}

	m := def.NewInstance(snap.ID, ctx, data, opts...)
	if err := m.ReStartAndEnter(state); err != nil {
		return nil, err
	}
	return m, nil
}
