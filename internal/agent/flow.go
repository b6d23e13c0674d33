package agent

import (
	"errors"
	"fmt"

	"wheelly/internal/blackboard"
)

// ErrUnknownState signals a transition target or entry id with no matching
// registered state — a ConfigInvalid condition, detected at load time
// whenever possible.
var ErrUnknownState = errors.New("agent: unknown state")

// ErrHookFailed wraps a blackboard VM failure raised from a lifecycle hook.
// This is fatal: the interpreter aborts the transition and
// re-raises rather than silently dropping the event.
var ErrHookFailed = errors.New("agent: hook failed")

// StateHooks are the onInit/onEntry/onExit programs attached to one state,
// run in addition to (and before) its Init/Entry/Exit methods.
type StateHooks struct {
	OnInit  []Hook
	OnEntry []Hook
	OnExit  []Hook
}

// Flow is a fully resolved, immutable flow definition: the state catalog
// instances, their attached hooks, and their ordered outgoing transitions.
type Flow struct {
	entryID     string
	states      map[string]State
	hooks       map[string]StateHooks
	transitions map[string][]Transition
	order       []string // registration order, for deterministic Init walks
}

// Option configures a Flow at construction time.
type Option func(*Flow)

// WithHooks attaches lifecycle hooks to a named state.
func WithHooks(stateName string, hooks StateHooks) Option {
	return func(f *Flow) {
		//1.- Merge rather than overwrite, so multiple WithHooks calls compose.
		existing := f.hooks[stateName]
		existing.OnInit = append(existing.OnInit, hooks.OnInit...)
		existing.OnEntry = append(existing.OnEntry, hooks.OnEntry...)
		existing.OnExit = append(existing.OnExit, hooks.OnExit...)
		f.hooks[stateName] = existing
	}
}

// WithTransitions declares the ordered outgoing edges for a named state.
// Declaration order is transition evaluation order.
func WithTransitions(stateName string, transitions ...Transition) Option {
	return func(f *Flow) {
		f.transitions[stateName] = append(f.transitions[stateName], transitions...)
	}
}

// NewFlow registers states (in the given order) under entryID, applying opts.
func NewFlow(entryID string, states []State, opts ...Option) (*Flow, error) {
	flow := &Flow{
		entryID:     entryID,
		states:      make(map[string]State, len(states)),
		hooks:       make(map[string]StateHooks),
		transitions: make(map[string][]Transition),
	}
	for _, s := range states {
		flow.states[s.Name()] = s
		flow.order = append(flow.order, s.Name())
	}
	for _, opt := range opts {
		if opt != nil {
			opt(flow)
		}
	}
	if _, ok := flow.states[entryID]; !ok {
		return nil, fmt.Errorf("%w: entry state %q", ErrUnknownState, entryID)
	}
	for from, edges := range flow.transitions {
		for _, e := range edges {
			if _, ok := flow.states[e.Target]; !ok {
				return nil, fmt.Errorf("%w: transition %s->%s", ErrUnknownState, from, e.Target)
			}
		}
	}
	return flow, nil
}

// Interpreter drives one Flow instance against a shared blackboard,
// advancing exactly one state per tick.
type Interpreter struct {
	flow        *Flow
	board       *blackboard.Board
	current     string
	initialized bool
}

// NewInterpreter constructs an interpreter over flow, sharing board with the
// rest of the controller.
func NewInterpreter(flow *Flow, board *blackboard.Board) *Interpreter {
	return &Interpreter{flow: flow, board: board}
}

// Current returns the name of the currently active state.
func (i *Interpreter) Current() string { return i.current }

// Start runs onInit hooks for every registered state once, in registration
// order, then transitions into the entry state.
func (i *Interpreter) Start(ctx Context) error {
	if i.initialized {
		return nil
	}
	for _, name := range i.flow.order {
		if err := i.runHooks(i.flow.hooks[name].OnInit); err != nil {
			return fmt.Errorf("init %s: %w", name, err)
		}
		i.flow.states[name].Init(ctx)
	}
	i.initialized = true
	return i.enter(i.flow.entryID, ctx)
}

// Tick runs one interpreter step: calls Step on the current
// state, then walks its transitions in declared order for the first event
// match, committing the new current state if one fires.
func (i *Interpreter) Tick(ctx Context) (StepResult, error) {
	current, ok := i.flow.states[i.current]
	if !ok {
		return StepResult{}, fmt.Errorf("%w: current state %q", ErrUnknownState, i.current)
	}
	result := current.Step(ctx)
	if result.Event == "" {
		return result, nil
	}
	for _, edge := range i.flow.transitions[i.current] {
		if edge.On != result.Event {
			continue
		}
		if err := i.runHooks(i.flow.hooks[i.current].OnExit); err != nil {
			return result, fmt.Errorf("exit %s: %w", i.current, err)
		}
		current.Exit(ctx)
		if err := i.runHooks(edge.OnTransit); err != nil {
			return result, fmt.Errorf("transition %s->%s: %w", i.current, edge.Target, err)
		}
		if err := i.enter(edge.Target, ctx); err != nil {
			return result, err
		}
		break
	}
	return result, nil
}

// enter runs a target state's onEntry hooks and Entry method and commits it
// as current. An onEntry hook that itself would raise an event
// defers that event to the next tick — hooks here only mutate the
// blackboard, they never themselves raise state-machine events.
func (i *Interpreter) enter(name string, ctx Context) error {
	if err := i.runHooks(i.flow.hooks[name].OnEntry); err != nil {
		return fmt.Errorf("entry %s: %w", name, err)
	}
	i.flow.states[name].Entry(ctx)
	i.current = name
	return nil
}

// runHooks executes a sequence of blackboard-VM hook programs in order,
// sharing the interpreter's board across hooks and ticks.
func (i *Interpreter) runHooks(hooks []Hook) error {
	for _, h := range hooks {
		if err := blackboard.Execute(h.Ops, i.board); err != nil {
			return fmt.Errorf("%w: hook %s: %v", ErrHookFailed, h.Name, err)
		}
	}
	return nil
}
