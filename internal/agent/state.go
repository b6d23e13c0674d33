// Package agent implements the hierarchical state machine interpreter
// (component C7): a flow of named states wired by ordered transitions,
// driven one tick at a time against a world.Model and a shared blackboard.
// Each tick advances the current state, then walks its transitions in
// declared order, committing the first one whose event matches.
package agent

import (
	"wheelly/internal/blackboard"
	"wheelly/internal/clock"
	"wheelly/internal/world"
)

// Context is passed to every state lifecycle method. States read world.Model
// and the robot spec, and read/write shared blackboard entries; they must
// not retain ctx or Model across ticks.
type Context struct {
	Now   clock.Time
	Model world.Model
	Board *blackboard.Board
}

// Command is one instruction the controller sends to the robot link at the
// end of a tick.
type Command struct {
	Kind  string
	Speed float64
	Left  float64
	Right float64
	Dir   float64
}

// StepResult is what a state's step returns each tick.
type StepResult struct {
	Commands []Command
	Event    string // empty means no event raised this tick
}

// State is the behavior contract every catalog entry (C8) implements.
type State interface {
	// Name identifies the state within its flow; must be unique.
	Name() string
	// Init runs once, when the flow starts, for every state regardless of
	// whether it is the entry state.
	Init(ctx Context)
	// Entry runs each time the state is transitioned into.
	Entry(ctx Context)
	// Step runs once per tick while the state is current.
	Step(ctx Context) StepResult
	// Exit runs each time the state is transitioned out of.
	Exit(ctx Context)
}

// Hook is a named blackboard-VM program attached to a lifecycle point
// (onInit, onEntry, onExit) or a transition edge (onTransition).
type Hook struct {
	Name string
	Ops  []blackboard.Op
}

// Transition is one declared edge, evaluated in declaration order.
type Transition struct {
	On        string // event name this edge fires on
	Target    string // destination state name
	OnTransit []Hook // hooks run when this edge is taken, before Entry
}
