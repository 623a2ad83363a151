package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/fsm"
	"github.com/anggasct/fsm/fsmtest"
	"github.com/anggasct/fsm/pkg/store"
)

type stage int

const (
	stageDraft stage = iota
	stageSubmitted
	stageApproved
)

func (s stage) String() string {
	switch s {
	case stageDraft:
		return "draft"
	case stageSubmitted:
		return "submitted"
	case stageApproved:
		return "approved"
	default:
		return "unknown"
	}
}

type addItem struct {
	name  string
	price int
}

type submit struct{}

type approve struct{}

type order struct {
	Items []string
	Total int
}

func orderDefinition(t *testing.T) *fsm.Definition[stage, *fsmtest.CallLog, *order] {
	t.Helper()

	b := fsm.New[stage, *fsmtest.CallLog, *order](stageDraft, stageSubmitted, stageApproved).Named("order")

	draft := b.WithInitialState(stageDraft)
	fsm.OnEvent[addItem](draft.TransitionToSelf()).
		WithContextAction(func(e addItem, _ *fsmtest.CallLog, o *order) error {
			o.Items = append(o.Items, e.name)
			o.Total += e.price
			return nil
		})
	fsm.OnEvent[submit](draft.TransitionTo(stageSubmitted))

	submitted := b.WithState(stageSubmitted).
		WithInitialEnterAction(func(l *fsmtest.CallLog, _ *order) error {
			l.Add("initial-enter submitted")
			return nil
		}).
		WithEnterAction(func(l *fsmtest.CallLog, _ *order) error {
			l.Add("enter submitted")
			return nil
		})
	fsm.OnEvent[approve](submitted.TransitionTo(stageApproved))

	b.WithFinalState(stageApproved)

	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func submittedOrder(t *testing.T, def *fsm.Definition[stage, *fsmtest.CallLog, *order]) *fsm.FSM[stage, *fsmtest.CallLog, *order] {
	t.Helper()

	m := def.NewInstance("order-1", &fsmtest.CallLog{}, &order{})
	require.NoError(t, m.Start())
	fsmtest.AssertOutcome(t, m.OnEvent(addItem{name: "tea", price: 3}), fsm.OutcomeTransitioned)
	fsmtest.AssertOutcome(t, m.OnEvent(addItem{name: "cake", price: 5}), fsm.OutcomeTransitioned)
	fsmtest.AssertTransitioned(t, m.OnEvent(submit{}), stageDraft, stageSubmitted)
	return m
}

func TestCodec(t *testing.T) {
	data, err := store.EncodeValue(&order{Items: []string{"tea"}, Total: 3})
	require.NoError(t, err)

	got, err := store.DecodeValue[*order](data)
	require.NoError(t, err)
	assert.Equal(t, &order{Items: []string{"tea"}, Total: 3}, got)

	empty, err := store.EncodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	zero, err := store.DecodeValue[*order](nil)
	require.NoError(t, err)
	assert.Nil(t, zero)

	_, err = store.DecodeValue[*order]([]byte("not gob"))
	assert.Error(t, err)
}

func TestCodecTypedNil(t *testing.T) {
	data, err := store.EncodeValue((*order)(nil))
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = store.EncodeValue([]string(nil))
	require.NoError(t, err)
	assert.Nil(t, data)

	got, err := store.DecodeValue[*order](data)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCaptureNilData(t *testing.T) {
	def := orderDefinition(t)
	m := def.NewInstance("order-2", &fsmtest.CallLog{}, nil)
	require.NoError(t, m.Start())

	snap, err := store.Capture(m)
	require.NoError(t, err)
	assert.Empty(t, snap.Data)
	assert.Equal(t, "draft", snap.State)

	resumed, err := store.Resume(def, snap, &fsmtest.CallLog{})
	require.NoError(t, err)
	fsmtest.AssertState(t, resumed, stageDraft)
	assert.Nil(t, resumed.Data())
}

func TestCapture(t *testing.T) {
	def := orderDefinition(t)
	m := submittedOrder(t, def)

	snap, err := store.Capture(m)
	require.NoError(t, err)

	assert.Equal(t, "order-1", snap.ID)
	assert.Equal(t, "order", snap.Machine)
	assert.Equal(t, "submitted", snap.State)
	assert.Equal(t, 1, snap.Ordinal)
	assert.NotEmpty(t, snap.Data)
	assert.WithinDuration(t, time.Now(), snap.UpdatedAt, time.Minute)
}

func TestCaptureNotStarted(t *testing.T) {
	m := orderDefinition(t).NewInstance("order-1", &fsmtest.CallLog{}, &order{})

	_, err := store.Capture(m)
	assert.ErrorIs(t, err, fsm.ErrNotStarted)
}

func TestResume(t *testing.T) {
	def := orderDefinition(t)
	snap, err := store.Capture(submittedOrder(t, def))
	require.NoError(t, err)

	log := &fsmtest.CallLog{}
	rec := fsmtest.NewRecorder[stage]()
	m, err := store.Resume(def, snap, log, fsm.WithObserver[stage](rec))
	require.NoError(t, err)

	assert.Equal(t, "order-1", m.ID())
	assert.True(t, m.IsStarted())
	fsmtest.AssertState(t, m, stageSubmitted)
	assert.Equal(t, &order{Items: []string{"tea", "cake"}, Total: 8}, m.Data())
	assert.Equal(t, []string{"enter submitted"}, log.Calls())
	assert.Equal(t, []stage{stageSubmitted}, rec.StateEnters)

	fsmtest.AssertTransitioned(t, m.OnEvent(approve{}), stageSubmitted, stageApproved)
	assert.True(t, m.IsTerminated())
}

func TestResumeMismatch(t *testing.T) {
	def := orderDefinition(t)
	snap, err := store.Capture(submittedOrder(t, def))
	require.NoError(t, err)

	t.Run("machine name", func(t *testing.T) {
		other := *snap
		other.Machine = "invoice"
		_, err := store.Resume(def, &other, &fsmtest.CallLog{})
		assert.ErrorIs(t, err, store.ErrMachineMismatch)
	})

	t.Run("ordinal out of range", func(t *testing.T) {
		other := *snap
		other.Ordinal = 7
		_, err := store.Resume(def, &other, &fsmtest.CallLog{})
		assert.ErrorIs(t, err, store.ErrStateMismatch)
	})

	t.Run("renamed state", func(t *testing.T) {
		other := *snap
		other.State = "pending"
		_, err := store.Resume(def, &other, &fsmtest.CallLog{})
		assert.ErrorIs(t, err, store.ErrStateMismatch)
	})

	t.Run("corrupt data", func(t *testing.T) {
		other := *snap
		other.Data = []byte("garbage")
		_, err := store.Resume(def, &other, &fsmtest.CallLog{})
		assert.Error(t, err)
	})
}

func TestResumeEnterFailure(t *testing.T) {
	b := fsm.New[stage, *fsmtest.CallLog, *order](stageDraft, stageSubmitted, stageApproved).Named("order")
	fsm.OnEvent[submit](b.WithInitialState(stageDraft).TransitionTo(stageSubmitted))
	fsm.OnEvent[approve](b.WithState(stageSubmitted).
		WithEnterAction(func(*fsmtest.CallLog, *order) error {
			return errors.New("ledger offline")
		}).
		TransitionTo(stageApproved))
	b.WithFinalState(stageApproved)
	def := b.MustBuild()

	snap := &store.Snapshot{ID: "order-2", Machine: "order", State: "submitted", Ordinal: 1}
	_, err := store.Resume(def, snap, &fsmtest.CallLog{})

	var failure *fsm.ActionFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, fsm.StageEnter, failure.Stage)
}

func testStores(t *testing.T) map[string]store.Store {
	t.Helper()

	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	sqlite, err := store.NewSQLiteStore(context.Background(), db)
	require.NoError(t, err)

	return map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStores(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

			snap := &store.Snapshot{
				ID:        "a",
				Machine:   "order",
				State:     "draft",
				Ordinal:   0,
				Data:      []byte{1, 2, 3},
				UpdatedAt: updated,
			}
			require.NoError(t, s.Save(ctx, snap))

			got, err := s.Load(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, snap, got)

			snap.State = "submitted"
			snap.Ordinal = 1
			snap.Data = []byte{4}
			require.NoError(t, s.Save(ctx, snap))

			got, err = s.Load(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "submitted", got.State)
			assert.Equal(t, 1, got.Ordinal)
			assert.Equal(t, []byte{4}, got.Data)

			require.NoError(t, s.Save(ctx, &store.Snapshot{ID: "b", Machine: "invoice", State: "open", UpdatedAt: updated}))
			require.NoError(t, s.Save(ctx, &store.Snapshot{ID: "c", Machine: "order", State: "draft", UpdatedAt: updated}))

			orders, err := s.List(ctx, "order")
			require.NoError(t, err)
			require.Len(t, orders, 2)
			assert.Equal(t, "a", orders[0].ID)
			assert.Equal(t, "c", orders[1].ID)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, s.Delete(ctx, "a"))
			_, err = s.Load(ctx, "a")
			assert.ErrorIs(t, err, store.ErrSnapshotNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "a"), store.ErrSnapshotNotFound)
		})
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	snap := &store.Snapshot{ID: "a", Data: []byte{1}}
	require.NoError(t, s.Save(ctx, snap))
	snap.Data[0] = 9

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got.Data)
}

func TestRoundTripThroughSQLite(t *testing.T) {
	ctx := context.Background()
	def := orderDefinition(t)

	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s, err := store.NewSQLiteStore(ctx, db)
	require.NoError(t, err)

	snap, err := store.Capture(submittedOrder(t, def))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, snap))

	loaded, err := s.Load(ctx, "order-1")
	require.NoError(t, err)

	m, err := store.Resume(def, loaded, &fsmtest.CallLog{})
	require.NoError(t, err)
	fsmtest.AssertState(t, m, stageSubmitted)
	assert.Equal(t, 8, m.Data().Total)
}
