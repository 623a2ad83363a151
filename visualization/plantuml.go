package visualization

import (
	"fmt"
	"io"
	"strings"

	"github.com/anggasct/fsm"
)

// PlantUMLGenerator renders a definition as a PlantUML state diagram
type PlantUMLGenerator[S comparable, C, D any] struct {
	definition *fsm.Definition[S, C, D]
}

func NewPlantUMLGenerator[S comparable, C, D any](def *fsm.Definition[S, C, D]) *PlantUMLGenerator[S, C, D] {
	return &PlantUMLGenerator[S, C, D]{definition: def}
}

// Generate writes the diagram to writer
func (g *PlantUMLGenerator[S, C, D]) Generate(writer io.Writer) error {
	w := &plantumlWriter[S, C, D]{}
	g.definition.Accept(w)

	var builder strings.Builder
	name := g.definition.Name()
	if name == "" {
		builder.WriteString("@startuml\n")
	} else {
		fmt.Fprintf(&builder, "@startuml %s\n", plantumlID(name))
	}
	builder.WriteString(w.states.String())
	builder.WriteString(w.transitions.String())
	builder.WriteString("@enduml\n")

	_, err := io.WriteString(writer, builder.String())
	return err
}

type plantumlWriter[S comparable, C, D any] struct {
	states      strings.Builder
	transitions strings.Builder
}

func (w *plantumlWriter[S, C, D]) VisitDefinition(def *fsm.Definition[S, C, D]) {
	fmt.Fprintf(&w.transitions, "[*] --> %s\n", plantumlID(stateName(def.InitialState())))
}

func (w *plantumlWriter[S, C, D]) VisitState(state *fsm.State[S, C, D]) {
	id := plantumlID(stateName(state.ID()))
	tag := ""
	if state.IsTransient() {
		tag = " <<choice>>"
	}
	fmt.Fprintf(&w.states, "  state %s%s\n", id, tag)
	for _, line := range actionLines(state) {
		fmt.Fprintf(&w.states, "  state %s: %s\n", id, line)
	}
	if state.IsFinal() {
		fmt.Fprintf(&w.transitions, "%s --> [*]\n", id)
	}
}

func (w *plantumlWriter[S, C, D]) VisitTransition(_ *fsm.State[S, C, D], t *fsm.Transition[S, C, D]) {
	w.edge(t)
}

func (w *plantumlWriter[S, C, D]) VisitDefaultTransition(_ *fsm.State[S, C, D], t *fsm.Transition[S, C, D]) {
	w.edge(t)
}

func (w *plantumlWriter[S, C, D]) edge(t *fsm.Transition[S, C, D]) {
	fmt.Fprintf(&w.transitions, "%s --> %s : %s\n",
		plantumlID(stateName(t.From())),
		plantumlID(stateName(t.To())),
		transitionLabel(t, true, true),
	)
}

func plantumlID(name string) string {
	return strings.NewReplacer("-", "_", " ", "_", ".", "_", "/", "_").Replace(name)
}
