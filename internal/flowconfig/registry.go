package flowconfig

import (
	"encoding/json"
	"fmt"

	"wheelly/internal/agent"
	"wheelly/internal/markers"
	"wheelly/internal/radar"
	"wheelly/internal/states"
)

// Registry maps a state document's class name to a constructor. Grid and
// Tracker are populated once per flow from the shared radar grid and marker tracker;
// classes that don't need them ignore the field.
type Registry struct {
	Grid    *radar.Grid
	Tracker *markers.Tracker
}

// NewRegistry returns the closed, built-in catalog registry, wired against
// the shared grid and tracker every Find/LabelPoint/ClearMap state reads
// from.
func NewRegistry(grid *radar.Grid, tracker *markers.Tracker) *Registry {
	return &Registry{Grid: grid, Tracker: tracker}
}

func (r *Registry) build(class string, params json.RawMessage) (agent.State, error) {
	switch class {
	case "haltScan":
		var cfg states.HaltScanConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewHaltScan(cfg), nil
	case "mapping":
		var cfg states.MappingConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewMapping(cfg), nil
	case "avoiding":
		var cfg states.AvoidingConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewAvoiding(cfg), nil
	case "exploringPoint":
		var cfg states.ExploringPointConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewExploringPoint(cfg), nil
	case "labelPoint":
		var cfg states.LabelPointConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewLabelPoint(cfg, r.Tracker), nil
	case "moveTo":
		var cfg states.MoveToConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewMoveTo(cfg), nil
	case "movePath":
		var cfg states.MovePathConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewMovePath(cfg), nil
	case "labelStuck":
		var cfg states.LabelStuckConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return states.NewLabelStuck(cfg), nil
	case "clearMap":
		return states.NewClearMap(r.Grid, r.Tracker), nil
	case "findUnknown", "findLabel", "findRefresh":
		var cfg states.FindConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		switch class {
		case "findLabel":
			cfg.Kind = states.FindLabel
		case "findRefresh":
			cfg.Kind = states.FindRefresh
		default:
			cfg.Kind = states.FindUnknown
		}
		return states.NewFind(cfg, r.Grid, r.Tracker), nil
	default:
		return nil, &ConfigInvalidError{Reason: fmt.Sprintf("unknown state class %q", class)}
	}
}

func decodeParams(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &ConfigInvalidError{Reason: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// namedState overrides Name() so a document's declared id (distinct from
// its class) becomes the flow-graph identity a transition's "to" resolves
// against — the catalog's own Name() methods return a fixed per-class
// string, which would collide if a flow used the same class twice.
type namedState struct {
	agent.State
	id string
}

func (n namedState) Name() string { return n.id }
