package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/clock"
)

// AvoidingConfig bundles the Avoiding state's tunables.
type AvoidingConfig struct {
	Speed        float64
	SafeDistance float64
	Timeout      clock.Time // ms stuck blocked both ways before giving up
}

// Avoiding backs the robot away from whichever side (front or rear) is
// blocked until the corresponding safe distance is restored. If both sides
// are blocked it holds position and starts a stall timer; if neither side
// clears within Timeout it emits notFound so the flow can replan (seed
// scenario 6: blocked both sides -> Avoid -> ClearMap loop).
type Avoiding struct {
	cfg AvoidingConfig

	stuckSinceTs clock.Time
}

// NewAvoiding constructs the Avoiding state.
func NewAvoiding(cfg AvoidingConfig) *Avoiding {
	return &Avoiding{cfg: cfg}
}

func (s *Avoiding) Name() string { return "avoiding" }

func (s *Avoiding) Init(agent.Context) {}

func (s *Avoiding) Entry(agent.Context) {
	s.stuckSinceTs = clock.Never
}

func (s *Avoiding) Step(ctx agent.Context) agent.StepResult {
	preds := ctx.Model.Predicates
	switch {
	case preds.FrontBlocked && !preds.RearBlocked:
		s.stuckSinceTs = clock.Never
		return agent.StepResult{Commands: []agent.Command{{Kind: "move", Left: -s.cfg.Speed, Right: -s.cfg.Speed}}}
	case preds.RearBlocked && !preds.FrontBlocked:
		s.stuckSinceTs = clock.Never
		return agent.StepResult{Commands: []agent.Command{{Kind: "move", Left: s.cfg.Speed, Right: s.cfg.Speed}}}
	case !preds.FrontBlocked && !preds.RearBlocked:
		s.stuckSinceTs = clock.Never
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventCompleted}
	default:
		// Blocked both ways: hold position and start (or check) the stall
		// timer. Nowhere left to retreat, so the flow must route notFound
		// to a replanning state rather than wait here forever.
		if !s.stuckSinceTs.Set() {
			s.stuckSinceTs = ctx.Now
		}
		if s.cfg.Timeout > 0 && elapsedSince(s.stuckSinceTs, ctx.Now, int64(s.cfg.Timeout)) {
			return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventNotFound}
		}
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}}
	}
}

func (s *Avoiding) Exit(agent.Context) {}
