package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
)

// MovePathConfig bundles the MovePath state's tunables.
type MovePathConfig struct {
	Speed        float64
	StopDistance float64
}

// MovePath follows the blackboard's path waypoints sequentially, emitting
// completed once the last waypoint is reached.
type MovePath struct {
	cfg   MovePathConfig
	index int
}

// NewMovePath constructs the MovePath state.
func NewMovePath(cfg MovePathConfig) *MovePath {
	return &MovePath{cfg: cfg}
}

func (s *MovePath) Name() string { return "movePath" }

func (s *MovePath) Init(agent.Context) {}

func (s *MovePath) Entry(agent.Context) { s.index = 0 }

func (s *MovePath) Step(ctx agent.Context) agent.StepResult {
	pathVal, ok := ctx.Board.Get(KeyPath)
	if !ok || pathVal.Tag != blackboard.TagPath || len(pathVal.Path) == 0 {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventNotFound}
	}
	if s.index >= len(pathVal.Path) {
		s.index = len(pathVal.Path) - 1
	}
	target := pathVal.Path[s.index]
	pose := ctx.Model.Status.Pose

	if pose.Position.Distance(target) <= s.cfg.StopDistance {
		s.index++
		if s.index >= len(pathVal.Path) {
			return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventCompleted}
		}
		target = pathVal.Path[s.index]
	}
	if ctx.Model.Predicates.FrontBlocked {
		return agent.StepResult{Commands: []agent.Command{{Kind: "halt"}}, Event: EventFrontBlocked}
	}

	left, right := headingControl(pose, target, s.cfg.Speed)
	return agent.StepResult{Commands: []agent.Command{{Kind: "move", Left: left, Right: right}}}
}

func (s *MovePath) Exit(agent.Context) {}
