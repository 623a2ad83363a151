// Package visualization renders state machine definitions as Graphviz DOT
// and PlantUML diagrams.
package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/fsm"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator[S comparable, C, D any] struct {
	definition *fsm.Definition[S, C, D]
	options    DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowStartMarker     bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	TransientShape      string
	DefaultEdgeStyle    string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowStartMarker:     true,
		RankDirection:       "TB",
		NodeShape:           "box",
		TransientShape:      "diamond",
		DefaultEdgeStyle:    "dashed",
	}
}

// NewDOTGenerator creates a new DOT generator for the given definition
func NewDOTGenerator[S comparable, C, D any](def *fsm.Definition[S, C, D], options ...DOTOptions) *DOTGenerator[S, C, D] {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator[S, C, D]{
		definition: def,
		options:    opts,
	}
}

// Generate creates a DOT representation of the state machine
func (g *DOTGenerator[S, C, D]) Generate() (string, error) {
	if g.definition == nil {
		return "", fmt.Errorf("no definition to render")
	}

	w := &dotWriter[S, C, D]{options: g.options}
	g.definition.Accept(w)

	var dot strings.Builder

	name := g.definition.Name()
	if name == "" {
		name = "StateMachine"
	}
	fmt.Fprintf(&dot, "digraph %q {\n", name)
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	fmt.Fprintf(&dot, "  node [shape=%s];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	dot.WriteString(w.nodes.String())
	dot.WriteString("\n  // Transitions\n")
	dot.WriteString(w.edges.String())

	dot.WriteString("}\n")

	return dot.String(), nil
}

// dotWriter collects nodes and edges while walking a definition
type dotWriter[S comparable, C, D any] struct {
	options DOTOptions
	nodes   strings.Builder
	edges   strings.Builder
}

func (w *dotWriter[S, C, D]) VisitDefinition(def *fsm.Definition[S, C, D]) {
	if w.options.ShowStartMarker {
		w.nodes.WriteString("  \"__start\" [shape=point];\n")
		fmt.Fprintf(&w.edges, "  \"__start\" -> %q;\n", stateName(def.InitialState()))
	}
}

func (w *dotWriter[S, C, D]) VisitState(state *fsm.State[S, C, D]) {
	id := stateName(state.ID())
	shape := w.options.NodeShape
	fillColor := "lightblue"
	label := id

	switch {
	case state.IsInitial():
		fillColor = "lightgreen"
		label += "\\n(initial)"
	case state.IsFinal():
		shape = "doublecircle"
		fillColor = "lightcoral"
	case state.IsTransient():
		shape = w.options.TransientShape
		fillColor = "lightyellow"
		label += "\\n(transient)"
	}

	if w.options.ShowActions {
		for _, line := range actionLines(state) {
			label += "\\n" + line
		}
	}

	fmt.Fprintf(&w.nodes, "  %q [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"];\n",
		id, shape, fillColor, label)
}

func (w *dotWriter[S, C, D]) VisitTransition(state *fsm.State[S, C, D], t *fsm.Transition[S, C, D]) {
	label := transitionLabel(t, w.options.ShowGuardConditions, w.options.ShowActions)
	fmt.Fprintf(&w.edges, "  %q -> %q [label=%q];\n", stateName(t.From()), stateName(t.To()), label)
}

func (w *dotWriter[S, C, D]) VisitDefaultTransition(state *fsm.State[S, C, D], t *fsm.Transition[S, C, D]) {
	label := transitionLabel(t, w.options.ShowGuardConditions, w.options.ShowActions)
	fmt.Fprintf(&w.edges, "  %q -> %q [label=%q style=%s];\n",
		stateName(t.From()), stateName(t.To()), label, w.options.DefaultEdgeStyle)
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator[S, C, D]) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// GenerateSVG renders the diagram by piping it through the Graphviz dot command
func (g *DOTGenerator[S, C, D]) GenerateSVG() (string, error) {
	dotContent, err := g.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

func stateName(s any) string {
	return fmt.Sprint(s)
}

// transitionLabel renders "event [guard] / action => transformation"
func transitionLabel[S comparable, C, D any](t *fsm.Transition[S, C, D], guards, actions bool) string {
	label := "else"
	if !t.IsDefault() {
		label = eventName(t)
	}
	if guards && t.HasGuard() {
		label = fmt.Sprintf("%s [%s]", label, orDefault(t.GuardLabel(), "guard"))
	}
	if actions && t.HasAction() {
		label = fmt.Sprintf("%s / %s", label, orDefault(t.ActionLabel(), "action"))
	}
	if actions && t.HasTransformation() {
		label = fmt.Sprintf("%s => %s", label, orDefault(t.TransformationLabel(), "transform"))
	}
	return label
}

func eventName[S comparable, C, D any](t *fsm.Transition[S, C, D]) string {
	typ := t.EventType()
	if typ == nil {
		return "*"
	}
	if name := typ.Name(); name != "" {
		return name
	}
	return typ.String()
}

func actionLines[S comparable, C, D any](state *fsm.State[S, C, D]) []string {
	var lines []string
	for _, info := range state.Actions() {
		lines = append(lines, fmt.Sprintf("%s / %s", info.Kind, orDefault(info.Label, string(info.Kind))))
	}
	return lines
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
