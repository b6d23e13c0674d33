package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
)

// MoveToConfig bundles the MoveTo state's tunables.
type MoveToConfig struct {
	Speed        float64
	StopDistance float64
}

// MoveTo drives toward the blackboard's target point using proportional
// heading control, completing once within StopDistance and deferring to
// the blocked predicates otherwise.
type MoveTo struct {
	cfg MoveToConfig
}

// NewMoveTo constructs the MoveTo state.
func NewMoveTo(cfg MoveToConfig) *MoveTo {
	return &MoveTo{cfg: cfg}
}

func (s *MoveTo) Name() string { return "moveTo" }

func (s *MoveTo) Init(agent.Context) {}

func (s *MoveTo) Entry(agent.Context) {}

func (s *MoveTo) Step(ctx agent.Context) agent.StepResult {
	targetVal, ok := ctx.Board.Get(KeyTarget)
	if !ok || targetVal.Tag != blackboard.TagPoint {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventNotFound}
	}
	target := targetVal.Point
	pose := ctx.Model.Status.Pose

	distance := pose.Position.Distance(target)
	if distance <= s.cfg.StopDistance {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventCompleted}
	}
	if ctx.Model.Predicates.FrontBlocked {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventFrontBlocked}
	}

	left, right := headingControl(pose, target, s.cfg.Speed)
	return agent.StepResult{Commands: []agent.Command{{Kind: "move", Left: left, Right: right}}}
}

func (s *MoveTo) Exit(agent.Context) {}
