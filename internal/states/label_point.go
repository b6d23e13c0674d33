package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/markers"
)

// LabelPointConfig bundles the LabelPoint state's tunables.
type LabelPointConfig struct {
	SafeDistance float64
	MaxDistance  float64
}

// LabelPoint chooses the nearest known marker within [SafeDistance,
// MaxDistance] of the robot and writes its position and bearing to the
// blackboard as target/direction.
type LabelPoint struct {
	cfg     LabelPointConfig
	tracker *markers.Tracker
}

// NewLabelPoint constructs the LabelPoint state over the shared marker
// tracker owned by the world modeller.
func NewLabelPoint(cfg LabelPointConfig, tracker *markers.Tracker) *LabelPoint {
	return &LabelPoint{cfg: cfg, tracker: tracker}
}

func (s *LabelPoint) Name() string { return "labelPoint" }

func (s *LabelPoint) Init(agent.Context) {}

func (s *LabelPoint) Entry(agent.Context) {}

func (s *LabelPoint) Step(ctx agent.Context) agent.StepResult {
	pose := ctx.Model.Status.Pose
	marker, ok := s.tracker.Nearest(pose.Position, s.cfg.SafeDistance, s.cfg.MaxDistance, ctx.Now)
	if !ok {
		return agent.StepResult{Event: EventNotFound}
	}
	bearing := pose.RelativeBearing(marker.Position)
	ctx.Board.Put(KeyTarget, blackboard.Pt(marker.Position))
	ctx.Board.Put(KeyDirection, blackboard.Bear(bearing))
	return agent.StepResult{Event: EventCompleted}
}

func (s *LabelPoint) Exit(agent.Context) {}
