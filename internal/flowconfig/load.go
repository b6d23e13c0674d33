package flowconfig

import (
	"fmt"
	"sort"

	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/geom"
	"wheelly/internal/markers"
	"wheelly/internal/radar"
)

// Load parses data and resolves it into a runnable *agent.Flow, instantiating
// each declared state against reg and wiring its hooks and transitions.
// Returns a ConfigInvalidError for anything a flow loader must catch before
// the reactor ever starts: unknown schema version, unknown class, or a
// transition target with no matching state.
func Load(data []byte, grid *radar.Grid, tracker *markers.Tracker) (*agent.Flow, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Resolve(doc, NewRegistry(grid, tracker))
}

// Resolve builds a Flow from an already-parsed Document against reg,
// letting callers supply a custom registry (e.g. in tests, one stubbing out
// the grid/tracker collaborators).
func Resolve(doc *Document, reg *Registry) (*agent.Flow, error) {
	if doc.Version != SchemaVersion {
		return nil, &ConfigInvalidError{Reason: fmt.Sprintf("unsupported schema version %q, want %q", doc.Version, SchemaVersion)}
	}
	if doc.Entry == "" {
		return nil, &ConfigInvalidError{Reason: "missing entry state id"}
	}

	var catalog []agent.State
	var opts []agent.Option
	for _, sd := range doc.States {
		if sd.ID == "" {
			return nil, &ConfigInvalidError{Reason: "state declared with empty id"}
		}
		base, err := reg.build(sd.Class, sd.Params)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", sd.ID, err)
		}
		catalog = append(catalog, namedState{State: base, id: sd.ID})

		onInit, err := compileHooks(sd.OnInit)
		if err != nil {
			return nil, fmt.Errorf("state %q onInit: %w", sd.ID, err)
		}
		onEntry, err := compileHooks(sd.OnEntry)
		if err != nil {
			return nil, fmt.Errorf("state %q onEntry: %w", sd.ID, err)
		}
		onExit, err := compileHooks(sd.OnExit)
		if err != nil {
			return nil, fmt.Errorf("state %q onExit: %w", sd.ID, err)
		}
		opts = append(opts, agent.WithHooks(sd.ID, agent.StateHooks{OnInit: onInit, OnEntry: onEntry, OnExit: onExit}))

		events := make([]string, 0, len(sd.Transitions))
		for event := range sd.Transitions {
			events = append(events, event)
		}
		sort.Strings(events)
		transitions := make([]agent.Transition, 0, len(events))
		for _, event := range events {
			td := sd.Transitions[event]
			if td.To == "" {
				return nil, &ConfigInvalidError{Reason: fmt.Sprintf("state %q transition %q: missing target", sd.ID, event)}
			}
			hooks, err := compileHooks(td.OnTransition)
			if err != nil {
				return nil, fmt.Errorf("state %q transition %q: %w", sd.ID, event, err)
			}
			transitions = append(transitions, agent.Transition{On: event, Target: td.To, OnTransit: hooks})
		}
		if len(transitions) > 0 {
			opts = append(opts, agent.WithTransitions(sd.ID, transitions...))
		}
	}

	flow, err := agent.NewFlow(doc.Entry, catalog, opts...)
	if err != nil {
		return nil, &ConfigInvalidError{Reason: err.Error()}
	}
	return flow, nil
}

func compileHooks(docs []HookDoc) ([]agent.Hook, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	hooks := make([]agent.Hook, 0, len(docs))
	for _, hd := range docs {
		ops, err := compileOps(hd.Ops)
		if err != nil {
			return nil, fmt.Errorf("hook %q: %w", hd.Name, err)
		}
		hooks = append(hooks, agent.Hook{Name: hd.Name, Ops: ops})
	}
	return hooks, nil
}

func compileOps(docs []OpDoc) ([]blackboard.Op, error) {
	ops := make([]blackboard.Op, 0, len(docs))
	for _, od := range docs {
		op, err := compileOp(od)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func compileOp(od OpDoc) (blackboard.Op, error) {
	switch od.Op {
	case "push":
		if od.Literal == nil {
			return blackboard.Op{}, &ConfigInvalidError{Reason: "push op missing literal"}
		}
		v, err := compileLiteral(*od.Literal)
		if err != nil {
			return blackboard.Op{}, err
		}
		return blackboard.Push(v), nil
	case "get":
		return blackboard.Get(od.Key), nil
	case "put":
		return blackboard.Put(od.Key), nil
	case "add":
		return blackboard.Op{Code: blackboard.OpAdd}, nil
	case "sub":
		return blackboard.Op{Code: blackboard.OpSub}, nil
	case "mul":
		return blackboard.Op{Code: blackboard.OpMul}, nil
	case "div":
		return blackboard.Op{Code: blackboard.OpDiv}, nil
	case "eq":
		return blackboard.Op{Code: blackboard.OpEq}, nil
	case "lt":
		return blackboard.Op{Code: blackboard.OpLt}, nil
	case "gt":
		return blackboard.Op{Code: blackboard.OpGt}, nil
	case "not":
		return blackboard.Op{Code: blackboard.OpNot}, nil
	case "x":
		return blackboard.Op{Code: blackboard.OpX}, nil
	case "y":
		return blackboard.Op{Code: blackboard.OpY}, nil
	case "bearing":
		return blackboard.Op{Code: blackboard.OpBearing}, nil
	case "distance":
		return blackboard.Op{Code: blackboard.OpDistance}, nil
	case "dup":
		return blackboard.Op{Code: blackboard.OpDup}, nil
	case "swap":
		return blackboard.Op{Code: blackboard.OpSwap}, nil
	case "neg":
		return blackboard.Op{Code: blackboard.OpNeg}, nil
	default:
		return blackboard.Op{}, &ConfigInvalidError{Reason: fmt.Sprintf("unknown opcode %q", od.Op)}
	}
}

func compileLiteral(ld LiteralDoc) (blackboard.Value, error) {
	switch ld.Type {
	case "number":
		return blackboard.Num(ld.Number), nil
	case "integer":
		return blackboard.Int(ld.Integer), nil
	case "string":
		return blackboard.Str(ld.String), nil
	case "point":
		return blackboard.Pt(geom.Point{X: ld.X, Y: ld.Y}), nil
	case "bearing":
		return blackboard.Bear(geom.FromDegrees(ld.Degrees)), nil
	default:
		return blackboard.Value{}, &ConfigInvalidError{Reason: fmt.Sprintf("unknown literal type %q", ld.Type)}
	}
}
