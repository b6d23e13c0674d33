package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/markers"
	"wheelly/internal/radar"
)

// ClearMap purges the radar grid and tracked markers, emitting completed on
// the tick after entry (so the purge itself is visible for one tick before
// the flow moves on).
type ClearMap struct {
	grid    *radar.Grid
	tracker *markers.Tracker

	purged bool
}

// NewClearMap constructs the ClearMap state over the shared grid and marker
// tracker owned by the world modeller.
func NewClearMap(grid *radar.Grid, tracker *markers.Tracker) *ClearMap {
	return &ClearMap{grid: grid, tracker: tracker}
}

func (s *ClearMap) Name() string { return "clearMap" }

func (s *ClearMap) Init(agent.Context) {}

func (s *ClearMap) Entry(agent.Context) { s.purged = false }

func (s *ClearMap) Step(agent.Context) agent.StepResult {
	if !s.purged {
		s.grid.Reset()
		s.tracker.Clear()
		s.purged = true
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}}
	}
	return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventCompleted}
}

func (s *ClearMap) Exit(agent.Context) {}
