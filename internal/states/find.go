package states

import (
	"sort"

	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/clock"
	"wheelly/internal/geom"
	"wheelly/internal/markers"
	"wheelly/internal/radar"
)

// FindKind selects which goal predicate a Find state searches for.
type FindKind int

const (
	FindUnknown FindKind = iota
	FindLabel
	FindRefresh
)

// FindConfig bundles the Find{Label,Unknown,Refresh} states' tunables.
type FindConfig struct {
	Kind          FindKind
	MaxSearchTime clock.Time // ms
	MinGoals      int
	SearchRadius  float64
	TargetLabel   string // used only when Kind == FindLabel; empty means any label
}

// Find performs a bounded search over the radar grid (and, for FindLabel,
// the marker tracker) for cells matching its configured goal predicate,
// requiring at least MinGoals candidates before committing to the nearest
// one as a single-waypoint path.
type Find struct {
	cfg     FindConfig
	grid    *radar.Grid
	tracker *markers.Tracker

	startTs clock.Time
}

// NewFind constructs a Find state over the shared grid and marker tracker.
func NewFind(cfg FindConfig, grid *radar.Grid, tracker *markers.Tracker) *Find {
	if cfg.MinGoals < 1 {
		cfg.MinGoals = 1
	}
	return &Find{cfg: cfg, grid: grid, tracker: tracker}
}

func (s *Find) Name() string {
	switch s.cfg.Kind {
	case FindLabel:
		return "findLabel"
	case FindRefresh:
		return "findRefresh"
	default:
		return "findUnknown"
	}
}

func (s *Find) Init(agent.Context) {}

func (s *Find) Entry(ctx agent.Context) { s.startTs = ctx.Now }

func (s *Find) Step(ctx agent.Context) agent.StepResult {
	pose := ctx.Model.Status.Pose
	candidates := s.candidates(pose, ctx)

	if len(candidates) < s.cfg.MinGoals {
		if elapsedSince(s.startTs, ctx.Now, int64(s.cfg.MaxSearchTime)) {
			return agent.StepResult{Event: EventNotFound}
		}
		return agent.StepResult{}
	}

	sort.Slice(candidates, func(i, j int) bool {
		di, dj := pose.Position.Distance(candidates[i]), pose.Position.Distance(candidates[j])
		if di != dj {
			return di < dj
		}
		return s.cellIndexLess(candidates[i], candidates[j])
	})
	goal := candidates[0]
	ctx.Board.Put(KeyPath, blackboard.PathVal([]geom.Point{goal}))
	ctx.Board.Put(KeyTarget, blackboard.Pt(goal))
	return agent.StepResult{Event: EventCompleted}
}

func (s *Find) Exit(agent.Context) {}

// cellIndexLess breaks a distance tie between two candidates by the grid
// cell index (i,j) in row-major order, so that FindUnknown/FindRefresh/
// FindLabel commit to the same goal given the same candidate set regardless
// of the order the candidates happened to be collected in (in particular,
// FindLabel's candidates come from the marker tracker's snapshot, which is
// sorted by label rather than by grid position).
func (s *Find) cellIndexLess(a, b geom.Point) bool {
	if s.grid == nil {
		return false
	}
	ai, aj := s.grid.CellOf(a)
	bi, bj := s.grid.CellOf(b)
	if ai != bi {
		return ai < bi
	}
	return aj < bj
}

func (s *Find) candidates(pose geom.Pose, ctx agent.Context) []geom.Point {
	switch s.cfg.Kind {
	case FindLabel:
		return s.labelCandidates(pose, ctx)
	case FindRefresh:
		return s.gridCandidates(pose, ctx, radar.Empty)
	default:
		return s.gridCandidates(pose, ctx, radar.Unknown)
	}
}

// gridCandidates collects cell centres within the search radius classified
// as want, used by FindUnknown (frontier cells) and FindRefresh (known-empty
// cells worth re-scanning before their data decays).
func (s *Find) gridCandidates(pose geom.Pose, ctx agent.Context, want radar.CellState) []geom.Point {
	if s.grid == nil {
		return nil
	}
	var out []geom.Point
	for _, ref := range s.grid.CellsWithin(pose.Position, 0, s.cfg.SearchRadius) {
		if s.grid.StateOf(ref.I, ref.J, ctx.Now) == want {
			out = append(out, ref.Center)
		}
	}
	return out
}

// labelCandidates collects tracked marker positions matching TargetLabel
// (or any label, if unset) within the search radius.
func (s *Find) labelCandidates(pose geom.Pose, ctx agent.Context) []geom.Point {
	if s.tracker == nil {
		return nil
	}
	var out []geom.Point
	for _, m := range s.tracker.Snapshot() {
		if s.cfg.TargetLabel != "" && m.Label != s.cfg.TargetLabel {
			continue
		}
		if !s.tracker.Active(m.Label, ctx.Now) {
			continue
		}
		if pose.Position.Distance(m.Position) > s.cfg.SearchRadius {
			continue
		}
		out = append(out, m.Position)
	}
	return out
}
