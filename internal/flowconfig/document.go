// Package flowconfig parses a flow document (the agent configuration
// external interface) into an *agent.Flow: states keyed by class, their
// params, and their ordered transitions with attached hook programs.
//
// The document is decoded with encoding/json only. A YAML file loads only
// if it is written in JSON syntax; block-style YAML is rejected as
// malformed.
package flowconfig

import "encoding/json"

// SchemaVersion is the one supported flow document version. Unknown
// versions are rejected at load time as ConfigInvalid.
const SchemaVersion = "1.0"

// Document is the top-level flow configuration: an entry state id and the
// full state catalog with their transitions.
type Document struct {
	Version string     `json:"version"`
	Entry   string     `json:"entry"`
	States  []StateDoc `json:"states"`
}

// StateDoc declares one state node: its catalog class, constructor params,
// and lifecycle hooks.
type StateDoc struct {
	ID          string                   `json:"id"`
	Class       string                   `json:"class"`
	Params      json.RawMessage          `json:"params"`
	OnInit      []HookDoc                `json:"onInit"`
	OnEntry     []HookDoc                `json:"onEntry"`
	OnExit      []HookDoc                `json:"onExit"`
	Transitions map[string]TransitionDoc `json:"transitions"`
}

// TransitionDoc is one outgoing edge, keyed by event name in the enclosing
// map — map iteration order is not transition order, so Resolve sorts edges
// lexicographically by event name to keep loading deterministic.
type TransitionDoc struct {
	To           string    `json:"to"`
	OnTransition []HookDoc `json:"onTransition"`
}

// HookDoc is one named blackboard-VM program.
type HookDoc struct {
	Name string  `json:"name"`
	Ops  []OpDoc `json:"ops"`
}

// OpDoc is one VM instruction literal.
type OpDoc struct {
	Op      string      `json:"op"`
	Key     string      `json:"key,omitempty"`
	Literal *LiteralDoc `json:"literal,omitempty"`
}

// LiteralDoc is a tagged literal value pushed by an OpPush instruction.
type LiteralDoc struct {
	Type    string  `json:"type"` // number, integer, string, point, bearing
	Number  float64 `json:"number,omitempty"`
	Integer int64   `json:"integer,omitempty"`
	String  string  `json:"string,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Degrees float64 `json:"degrees,omitempty"`
}

// Parse decodes raw bytes into a Document without resolving it against a
// state registry; callers needing a runnable agent.Flow should use Load.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigInvalidError{Reason: "malformed document: " + err.Error()}
	}
	return &doc, nil
}

// ConfigInvalidError reports a flow document that fails to load: an
// unknown schema version, an unregistered class, or a transition target
// that resolves to no declared state.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return "flowconfig: " + e.Reason
}
