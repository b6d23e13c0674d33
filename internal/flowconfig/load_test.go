package flowconfig

import (
	"testing"

	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/markers"
	"wheelly/internal/polar"
	"wheelly/internal/radar"
	"wheelly/internal/world"
)

const sampleDoc = `{
  "version": "1.0",
  "entry": "scan",
  "states": [
    {
      "id": "scan",
      "class": "haltScan",
      "params": {"minSensorDir": -90, "maxSensorDir": 90, "sensorDirNumber": 5, "scanInterval": 100, "timeout": 2000},
      "transitions": {
        "timeout": {
          "to": "explore",
          "onTransition": [
            {"name": "markScanned", "ops": [{"op": "push", "literal": {"type": "number", "number": 1}}, {"op": "put", "key": "scan.done"}]}
          ]
        }
      }
    },
    {
      "id": "explore",
      "class": "exploringPoint",
      "params": {"safeDistance": 0.4, "maxDistance": 3},
      "transitions": {
        "completed": {"to": "scan"},
        "notFound": {"to": "scan"}
      }
    }
  ]
}`

func newGridAndTracker() (*radar.Grid, *markers.Tracker) {
	grid := radar.NewGrid(radar.Config{
		Width: 20, Height: 20, CellSize: 0.2,
		EchoPersistence: 5000, ContactPersistence: 5000, CleanInterval: 1000,
	})
	return grid, markers.NewTracker(10000, 30000)
}

func TestLoadResolvesFlowAndTransitions(t *testing.T) {
	grid, tracker := newGridAndTracker()
	flow, err := Load([]byte(sampleDoc), grid, tracker)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	interp := agent.NewInterpreter(flow, blackboard.NewBoard())
	ctx := agent.Context{Now: 0, Model: world.Model{}, Board: blackboard.NewBoard()}
	if err := interp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if interp.Current() != "scan" {
		t.Fatalf("expected entry state scan, got %q", interp.Current())
	}

	ctx.Now = 3000
	if _, err := interp.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if interp.Current() != "explore" {
		t.Fatalf("expected transition to explore after timeout, got %q", interp.Current())
	}
}

func TestLoadRejectsUnknownSchemaVersion(t *testing.T) {
	grid, tracker := newGridAndTracker()
	_, err := Load([]byte(`{"version":"0.9","entry":"scan","states":[]}`), grid, tracker)
	if err == nil {
		t.Fatal("expected error for unsupported schema version")
	}
	var cfgErr *ConfigInvalidError
	if !asConfigInvalid(err, &cfgErr) {
		t.Fatalf("expected ConfigInvalidError, got %T: %v", err, err)
	}
}

func TestLoadRejectsUnknownClass(t *testing.T) {
	grid, tracker := newGridAndTracker()
	doc := `{"version":"1.0","entry":"x","states":[{"id":"x","class":"doesNotExist"}]}`
	_, err := Load([]byte(doc), grid, tracker)
	if err == nil {
		t.Fatal("expected error for unknown class")
	}
}

func TestLoadRejectsDanglingTransitionTarget(t *testing.T) {
	grid, tracker := newGridAndTracker()
	doc := `{"version":"1.0","entry":"scan","states":[
		{"id":"scan","class":"haltScan","params":{"sensorDirNumber":1},
		 "transitions":{"timeout":{"to":"missing"}}}
	]}`
	_, err := Load([]byte(doc), grid, tracker)
	if err == nil {
		t.Fatal("expected error for dangling transition target")
	}
}

const avoidingDoc = `{
  "version": "1.0",
  "entry": "avoiding",
  "states": [
    {
      "id": "avoiding",
      "class": "avoiding",
      "params": {"speed": 0.3, "safeDistance": 0.4, "timeout": 1000},
      "transitions": {
        "completed": {"to": "avoiding"},
        "notFound": {"to": "clearMap"}
      }
    },
    {
      "id": "clearMap",
      "class": "clearMap",
      "transitions": {
        "completed": {"to": "avoiding"}
      }
    }
  ]
}`

// TestAvoidingRoutesToClearMapOnStall checks that being blocked on both
// sides without the safe distance ever being restored routes, via notFound,
// to clearMap.
func TestAvoidingRoutesToClearMapOnStall(t *testing.T) {
	grid, tracker := newGridAndTracker()
	flow, err := Load([]byte(avoidingDoc), grid, tracker)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	interp := agent.NewInterpreter(flow, blackboard.NewBoard())
	ctx := agent.Context{
		Now:   0,
		Board: blackboard.NewBoard(),
		Model: world.Model{Predicates: polar.Predicates{FrontBlocked: true, RearBlocked: true}},
	}
	if err := interp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// First tick starts the stall timer; it must not fire notFound yet.
	ctx.Now = 0
	if _, err := interp.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if interp.Current() != "avoiding" {
		t.Fatalf("expected to remain in avoiding before the stall timeout, got %q", interp.Current())
	}

	ctx.Now = 1000
	if _, err := interp.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if interp.Current() != "clearMap" {
		t.Fatalf("expected transition to clearMap after the stall timeout, got %q", interp.Current())
	}
}

func asConfigInvalid(err error, target **ConfigInvalidError) bool {
	for err != nil {
		if ce, ok := err.(*ConfigInvalidError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
