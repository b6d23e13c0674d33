package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/clock"
)

// LabelStuckConfig bundles the LabelStuck state's tunables.
type LabelStuckConfig struct {
	StallWindow   clock.Time // ms without meaningful progress before notFound
	MinProgress   float64    // metres closer to target required within the window
	CheckInterval clock.Time // ms between progress samples
}

// LabelStuck watches distance-to-target over a sliding window and emits
// notFound when the robot has stalled, forcing the flow to replan.
type LabelStuck struct {
	cfg LabelStuckConfig

	windowStartTs clock.Time
	windowDist    float64
	lastSampleTs  clock.Time
}

// NewLabelStuck constructs the LabelStuck watchdog state.
func NewLabelStuck(cfg LabelStuckConfig) *LabelStuck {
	return &LabelStuck{cfg: cfg}
}

func (s *LabelStuck) Name() string { return "labelStuck" }

func (s *LabelStuck) Init(agent.Context) {}

func (s *LabelStuck) Entry(ctx agent.Context) {
	s.windowStartTs = ctx.Now
	s.lastSampleTs = clock.Never
	s.windowDist = s.currentDistance(ctx)
}

func (s *LabelStuck) Step(ctx agent.Context) agent.StepResult {
	if !elapsedSince(s.lastSampleTs, ctx.Now, int64(s.cfg.CheckInterval)) && s.lastSampleTs.Set() {
		return agent.StepResult{}
	}
	s.lastSampleTs = ctx.Now

	if elapsedSince(s.windowStartTs, ctx.Now, int64(s.cfg.StallWindow)) {
		distNow := s.currentDistance(ctx)
		progress := s.windowDist - distNow
		s.windowStartTs = ctx.Now
		s.windowDist = distNow
		if progress < s.cfg.MinProgress {
			return agent.StepResult{Event: EventNotFound}
		}
	}
	return agent.StepResult{}
}

func (s *LabelStuck) Exit(agent.Context) {}

func (s *LabelStuck) currentDistance(ctx agent.Context) float64 {
	targetVal, ok := ctx.Board.Get(KeyTarget)
	if !ok || targetVal.Tag != blackboard.TagPoint {
		return 0
	}
	return ctx.Model.Status.Pose.Position.Distance(targetVal.Point)
}
