package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/clock"
	"wheelly/internal/polar"
)

// MappingConfig bundles the Mapping state's tunables.
type MappingConfig struct {
	RotateSpeed float64
	Timeout     clock.Time // ms
}

// Mapping rotates the robot in place until every polar sector has received
// at least one non-unknown observation, or the timeout elapses.
type Mapping struct {
	cfg MappingConfig

	startTs clock.Time
	seen    []bool
}

// NewMapping constructs the Mapping state.
func NewMapping(cfg MappingConfig) *Mapping {
	return &Mapping{cfg: cfg}
}

func (s *Mapping) Name() string { return "mapping" }

func (s *Mapping) Init(agent.Context) {}

func (s *Mapping) Entry(ctx agent.Context) {
	s.startTs = ctx.Now
	s.seen = make([]bool, len(ctx.Model.Polar.Sectors))
}

func (s *Mapping) Step(ctx agent.Context) agent.StepResult {
	if len(s.seen) != len(ctx.Model.Polar.Sectors) {
		s.seen = make([]bool, len(ctx.Model.Polar.Sectors))
	}
	complete := true
	for i, sec := range ctx.Model.Polar.Sectors {
		if sec.State != polar.SUnknown {
			s.seen[i] = true
		}
		if !s.seen[i] {
			complete = false
		}
	}

	if complete {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventCompleted}
	}
	if elapsedSince(s.startTs, ctx.Now, int64(s.cfg.Timeout)) {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventTimeout}
	}
	return agent.StepResult{Commands: []agent.Command{{
		Kind: "move", Left: -s.cfg.RotateSpeed, Right: s.cfg.RotateSpeed,
	}}}
}

func (s *Mapping) Exit(agent.Context) {}
