package agent

import (
	"testing"

	"wheelly/internal/blackboard"
)

// stubState is a minimal State used to exercise the interpreter without
// pulling in the full catalog (component C8 lives in its own package).
type stubState struct {
	name       string
	events     []string // one entry consumed per Step call, repeats last
	initCount  int
	entryCount int
	exitCount  int
	stepCount  int
}

func (s *stubState) Name() string { return s.name }
func (s *stubState) Init(Context)  { s.initCount++ }
func (s *stubState) Entry(Context) { s.entryCount++ }
func (s *stubState) Exit(Context)  { s.exitCount++ }
func (s *stubState) Step(Context) StepResult {
	idx := s.stepCount
	if idx >= len(s.events) {
		idx = len(s.events) - 1
	}
	s.stepCount++
	if idx < 0 {
		return StepResult{}
	}
	return StepResult{Event: s.events[idx]}
}

func TestStartRunsInitForEveryStateThenEntersEntryState(t *testing.T) {
	a := &stubState{name: "a"}
	b := &stubState{name: "b"}
	flow, err := NewFlow("a", []State{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	interp := NewInterpreter(flow, blackboard.NewBoard())
	if err := interp.Start(Context{}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if a.initCount != 1 || b.initCount != 1 {
		t.Fatalf("expected both states initialized once, got a=%d b=%d", a.initCount, b.initCount)
	}
	if a.entryCount != 1 || b.entryCount != 0 {
		t.Fatalf("expected only entry state entered, got a=%d b=%d", a.entryCount, b.entryCount)
	}
	if interp.Current() != "a" {
		t.Fatalf("expected current state a, got %s", interp.Current())
	}
}

func TestTickWalksTransitionsInDeclarationOrder(t *testing.T) {
	a := &stubState{name: "a", events: []string{"completed"}}
	b := &stubState{name: "b"}
	flow, err := NewFlow("a", []State{a, b},
		WithTransitions("a",
			Transition{On: "notFound", Target: "b"},
			Transition{On: "completed", Target: "b"},
		),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	interp := NewInterpreter(flow, blackboard.NewBoard())
	if err := interp.Start(Context{}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if _, err := interp.Tick(Context{}); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
	if interp.Current() != "b" {
		t.Fatalf("expected transition to b, got %s", interp.Current())
	}
	if a.exitCount != 1 {
		t.Fatalf("expected a.Exit called once, got %d", a.exitCount)
	}
	if b.entryCount != 1 {
		t.Fatalf("expected b.Entry called once, got %d", b.entryCount)
	}
}

func TestTickWithNoEventStaysInCurrentState(t *testing.T) {
	a := &stubState{name: "a", events: []string{""}}
	flow, err := NewFlow("a", []State{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	interp := NewInterpreter(flow, blackboard.NewBoard())
	_ = interp.Start(Context{})
	if _, err := interp.Tick(Context{}); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
	if interp.Current() != "a" {
		t.Fatalf("expected to remain in a, got %s", interp.Current())
	}
}

func TestTransitionRunsOnTransitHook(t *testing.T) {
	a := &stubState{name: "a", events: []string{"completed"}}
	b := &stubState{name: "b"}
	board := blackboard.NewBoard()
	flow, err := NewFlow("a", []State{a, b},
		WithTransitions("a", Transition{
			On: "completed", Target: "b",
			OnTransit: []Hook{{Name: "mark", Ops: []blackboard.Op{
				blackboard.Push(blackboard.Num(1)),
				blackboard.Put("transitioned"),
			}}},
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	interp := NewInterpreter(flow, board)
	_ = interp.Start(Context{})
	if _, err := interp.Tick(Context{}); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
	v, ok := board.Get("transitioned")
	if !ok || v.Number != 1 {
		t.Fatalf("expected onTransition hook to write blackboard entry, got %+v ok=%v", v, ok)
	}
}

func TestNewFlowRejectsUnknownEntryState(t *testing.T) {
	a := &stubState{name: "a"}
	if _, err := NewFlow("missing", []State{a}); err == nil {
		t.Fatalf("expected error for unknown entry state")
	}
}

func TestNewFlowRejectsUnknownTransitionTarget(t *testing.T) {
	a := &stubState{name: "a"}
	_, err := NewFlow("a", []State{a}, WithTransitions("a", Transition{On: "x", Target: "ghost"}))
	if err == nil {
		t.Fatalf("expected error for unknown transition target")
	}
}

func TestHookFailureAbortsTransition(t *testing.T) {
	a := &stubState{name: "a", events: []string{"completed"}}
	b := &stubState{name: "b"}
	flow, err := NewFlow("a", []State{a, b},
		WithTransitions("a", Transition{
			On: "completed", Target: "b",
			OnTransit: []Hook{{Name: "broken", Ops: []blackboard.Op{{Code: blackboard.OpAdd}}}},
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	interp := NewInterpreter(flow, blackboard.NewBoard())
	_ = interp.Start(Context{})
	if _, err := interp.Tick(Context{}); err == nil {
		t.Fatalf("expected hook failure to surface as an error")
	}
}
