package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/geom"
	"wheelly/internal/polar"
)

// ExploringPointConfig bundles the ExploringPoint state's tunables.
type ExploringPointConfig struct {
	SafeDistance float64
	MaxDistance  float64
}

// ExploringPoint picks the next waypoint as the centre of the largest
// contiguous run of empty/unknown sectors whose minimum radius falls in
// [SafeDistance, MaxDistance], and writes it to the blackboard as target.
type ExploringPoint struct {
	cfg ExploringPointConfig
}

// NewExploringPoint constructs the ExploringPoint state.
func NewExploringPoint(cfg ExploringPointConfig) *ExploringPoint {
	return &ExploringPoint{cfg: cfg}
}

func (s *ExploringPoint) Name() string { return "exploringPoint" }

func (s *ExploringPoint) Init(agent.Context) {}

func (s *ExploringPoint) Entry(agent.Context) {}

func (s *ExploringPoint) Step(ctx agent.Context) agent.StepResult {
	centreIdx, ok := largestOpenRun(ctx.Model.Polar, s.cfg.SafeDistance, s.cfg.MaxDistance)
	if !ok {
		return agent.StepResult{Event: EventNotFound}
	}
	n := len(ctx.Model.Polar.Sectors)
	bearing := geom.SectorCentre(centreIdx, n)
	waypoint := ctx.Model.Status.Pose.Position.Translate(
		ctx.Model.Status.Pose.Heading.Compose(bearing), s.cfg.MaxDistance*0.5,
	)
	ctx.Board.Put(KeyTarget, blackboard.Pt(waypoint))
	return agent.StepResult{Event: EventCompleted}
}

func (s *ExploringPoint) Exit(agent.Context) {}

// largestOpenRun finds the centre sector index of the longest contiguous
// run of empty/unknown sectors whose distance (when set) lies within
// [minRadius, maxRadius], treating unknown sectors (distance unset) as
// always eligible. The run wraps around the sector ring.
func largestOpenRun(m polar.Map, minRadius, maxRadius float64) (int, bool) {
	n := len(m.Sectors)
	if n == 0 {
		return 0, false
	}
	open := make([]bool, n)
	anyOpen := false
	for i, sec := range m.Sectors {
		switch sec.State {
		case polar.SUnknown:
			open[i] = true
		case polar.SEmpty:
			open[i] = sec.Distance >= minRadius && sec.Distance <= maxRadius
		default:
			open[i] = false
		}
		anyOpen = anyOpen || open[i]
	}
	if !anyOpen {
		return 0, false
	}

	bestStart, bestLen := -1, 0
	i := 0
	for i < n {
		if !open[i] {
			i++
			continue
		}
		start := i
		length := 0
		for length < n && open[(start+length)%n] {
			length++
		}
		if length > bestLen {
			bestStart, bestLen = start, length
		}
		if length == n {
			break
		}
		i = start + length
	}
	if bestStart < 0 {
		return 0, false
	}
	return (bestStart + bestLen/2) % n, true
}
