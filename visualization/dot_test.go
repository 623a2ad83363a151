package visualization_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/fsm"
	"github.com/anggasct/fsm/visualization"
)

type door string

const (
	doorClosed  door = "closed"
	doorOpen    door = "open"
	doorCheck   door = "check-lock"
	doorRemoved door = "removed"
)

type openEvent struct{}

type closeEvent struct{}

type lockEvent struct{ code string }

func doorDefinition(t *testing.T, name string) *fsm.Definition[door, struct{}, struct{}] {
	t.Helper()

	b := fsm.New[door, struct{}, struct{}](doorClosed, doorOpen, doorCheck, doorRemoved).Named(name)

	closed := b.WithInitialState(doorClosed).
		WithEnterAction(func(struct{}, struct{}) error { return nil }, "latch")
	fsm.OnEvent[openEvent](closed.TransitionTo(doorOpen)).
		WithGuard(func(openEvent) bool { return true }, "unlocked")
	fsm.OnEvent[lockEvent](closed.TransitionTo(doorCheck)).
		WithTransformation(func(e lockEvent) (any, error) { return e.code, nil }, "extract code")

	open := b.WithState(doorOpen)
	fsm.OnEvent[closeEvent](open.TransitionTo(doorClosed)).
		WithAction(func(closeEvent) error { return nil }, "slam")

	b.WithTransientState(doorCheck).
		TransitionTo(doorRemoved).AsDefaultTransition()

	b.WithFinalState(doorRemoved)

	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func TestDOTGeneration(t *testing.T) {
	generator := visualization.NewDOTGenerator(doorDefinition(t, "door"))

	dotContent, err := generator.Generate()
	require.NoError(t, err)

	assert.Contains(t, dotContent, `digraph "door"`)
	assert.Contains(t, dotContent, `"closed" [shape=box style="filled" fillcolor=lightgreen label="closed\n(initial)\nenter / latch"]`)
	assert.Contains(t, dotContent, `"open" [shape=box style="filled" fillcolor=lightblue label="open"]`)
	assert.Contains(t, dotContent, `"check-lock" [shape=diamond style="filled" fillcolor=lightyellow label="check-lock\n(transient)"]`)
	assert.Contains(t, dotContent, `"removed" [shape=doublecircle style="filled" fillcolor=lightcoral label="removed"]`)

	assert.Contains(t, dotContent, `"__start" -> "closed";`)
	assert.Contains(t, dotContent, `"closed" -> "open" [label="openEvent [unlocked]"];`)
	assert.Contains(t, dotContent, `"closed" -> "check-lock" [label="lockEvent => extract code"];`)
	assert.Contains(t, dotContent, `"open" -> "closed" [label="closeEvent / slam"];`)
	assert.Contains(t, dotContent, `"check-lock" -> "removed" [label="else" style=dashed];`)
	assert.True(t, strings.HasSuffix(dotContent, "}\n"))
}

func TestDOTGenerationOptions(t *testing.T) {
	opts := visualization.DefaultDOTOptions()
	opts.ShowGuardConditions = false
	opts.ShowActions = false
	opts.ShowStartMarker = false
	opts.RankDirection = "LR"

	dotContent, err := visualization.NewDOTGenerator(doorDefinition(t, ""), opts).Generate()
	require.NoError(t, err)

	assert.Contains(t, dotContent, `digraph "StateMachine"`)
	assert.Contains(t, dotContent, "rankdir=LR;")
	assert.Contains(t, dotContent, `"closed" -> "open" [label="openEvent"];`)
	assert.Contains(t, dotContent, `"closed" -> "check-lock" [label="lockEvent"];`)
	assert.NotContains(t, dotContent, "__start")
	assert.NotContains(t, dotContent, "latch")
}

func TestDOTGenerateToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "door.dot")
	generator := visualization.NewDOTGenerator(doorDefinition(t, "door"))

	require.NoError(t, generator.GenerateToFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	expected, err := generator.Generate()
	require.NoError(t, err)
	assert.Equal(t, expected, string(content))
}

func TestDOTGenerateSVG(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("Graphviz not installed")
	}

	svg, err := visualization.NewDOTGenerator(doorDefinition(t, "door")).GenerateSVG()
	require.NoError(t, err)
	assert.Contains(t, svg, "<svg")
}

func TestPlantUMLGeneration(t *testing.T) {
	var out strings.Builder
	require.NoError(t, visualization.NewPlantUMLGenerator(doorDefinition(t, "front-door")).Generate(&out))

	uml := out.String()
	assert.True(t, strings.HasPrefix(uml, "@startuml front_door\n"))
	assert.True(t, strings.HasSuffix(uml, "@enduml\n"))
	assert.Contains(t, uml, "  state closed\n")
	assert.Contains(t, uml, "  state closed: enter / latch\n")
	assert.Contains(t, uml, "  state check_lock <<choice>>\n")
	assert.Contains(t, uml, "[*] --> closed\n")
	assert.Contains(t, uml, "removed --> [*]\n")
	assert.Contains(t, uml, "closed --> open : openEvent [unlocked]\n")
	assert.Contains(t, uml, "open --> closed : closeEvent / slam\n")
	assert.Contains(t, uml, "check_lock --> removed : else\n")
}
