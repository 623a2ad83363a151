package fsm_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anggasct/fsm"
	"github.com/anggasct/fsm/fsmtest"
)

type tracingVisitor struct {
	fsm.BaseVisitor[phase, *fsmtest.CallLog, *memo]
	steps []string
}

func (v *tracingVisitor) VisitDefinition(def *definition) {
	v.steps = append(v.steps, "definition "+def.Name())
}

func (v *tracingVisitor) VisitState(st *fsm.State[phase, *fsmtest.CallLog, *memo]) {
	v.steps = append(v.steps, fmt.Sprintf("state %v", st.ID()))
}

func (v *tracingVisitor) VisitTransition(st *fsm.State[phase, *fsmtest.CallLog, *memo], tr *fsm.Transition[phase, *fsmtest.CallLog, *memo]) {
	v.steps = append(v.steps, fmt.Sprintf("%v -%s-> %v", st.ID(), tr.EventType().Name(), tr.To()))
}

func (v *tracingVisitor) VisitDefaultTransition(st *fsm.State[phase, *fsmtest.CallLog, *memo], tr *fsm.Transition[phase, *fsmtest.CallLog, *memo]) {
	v.steps = append(v.steps, fmt.Sprintf("%v -*-> %v", st.ID(), tr.To()))
}

func TestDefinition_Accept(t *testing.T) {
	v := &tracingVisitor{}
	pingPong().MustBuild().Accept(v)

	assert.Equal(t, []string{
		"definition ping-pong",
		"state A",
		"A -tick-> B",
		"state B",
		"B -tick-> A",
		"B -word-> B",
		"B -*-> H",
		"state H",
	}, v.steps)
}

func TestBaseVisitor(t *testing.T) {
	var v fsm.Visitor[phase, *fsmtest.CallLog, *memo] = fsm.BaseVisitor[phase, *fsmtest.CallLog, *memo]{}
	assert.NotPanics(t, func() {
		pingPong().MustBuild().Accept(v)
	})
}
