package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ n int }

type pong struct{}

func typedTransition(guard func(any, int, []string) bool) *Transition[string, int, []string] {
	return &Transition[string, int, []string]{
		from:      "a",
		to:        "b",
		eventType: typeOf[ping](),
		accepts: func(event any) bool {
			_, ok := event.(ping)
			return ok
		},
		guard: guard,
	}
}

func TestTransition_MatchByType(t *testing.T) {
	tr := typedTransition(nil)

	ok, err := tr.Match(ping{}, 0, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.Match(pong{}, 0, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tr.Match(nil, 0, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransition_MatchGuard(t *testing.T) {
	tr := typedTransition(func(event any, ctx int, data []string) bool {
		return event.(ping).n == ctx && len(data) > 0
	})

	ok, _ := tr.Match(ping{n: 2}, 2, []string{"x"})
	assert.True(t, ok)

	ok, _ = tr.Match(ping{n: 2}, 3, []string{"x"})
	assert.False(t, ok)

	ok, _ = tr.Match(ping{n: 2}, 2, nil)
	assert.False(t, ok)
}

func TestTransition_GuardIsNotCalledForOtherTypes(t *testing.T) {
	called := false
	tr := typedTransition(func(any, int, []string) bool {
		called = true
		return true
	})

	ok, _ := tr.Match(pong{}, 0, nil)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestTransition_GuardPanic(t *testing.T) {
	tr := typedTransition(func(any, int, []string) bool { panic("bad guard") })

	ok, err := tr.Match(ping{}, 0, nil)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guard panic: bad guard")
}

func TestTransition_Execute(t *testing.T) {
	tr := typedTransition(nil)
	assert.NoError(t, tr.execute(ping{}, 0, nil), "no action")

	boom := errors.New("boom")
	tr.action = func(any, int, []string) error { return boom }
	assert.ErrorIs(t, tr.execute(ping{}, 0, nil), boom)

	tr.action = func(any, int, []string) error { panic(boom) }
	err := tr.execute(ping{}, 0, nil)
	assert.ErrorIs(t, err, boom, "panicked errors stay inspectable")
	assert.Contains(t, err.Error(), "action panic")
}

func TestTransition_TransformEvent(t *testing.T) {
	tr := typedTransition(nil)
	tr.transform = func(event any) (any, error) {
		return event.(ping).n * 10, nil
	}

	out, err := tr.transformEvent(ping{n: 4})
	require.NoError(t, err)
	assert.Equal(t, 40, out)

	tr.transform = func(any) (any, error) { panic("nope") }
	out, err = tr.transformEvent(ping{})
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "transformation panic: nope")
}

func TestTransition_Accessors(t *testing.T) {
	tr := typedTransition(nil)
	assert.Equal(t, "a", tr.From())
	assert.Equal(t, "b", tr.To())
	assert.Equal(t, "ping", tr.EventType().Name())
	assert.False(t, tr.IsSelf())
	assert.False(t, tr.IsDefault())
	assert.False(t, tr.HasGuard())
	assert.False(t, tr.HasAction())
	assert.False(t, tr.HasTransformation())

	c := tr.clone()
	c.to = "a"
	assert.True(t, c.IsSelf())
	assert.Equal(t, "b", tr.To())
}
