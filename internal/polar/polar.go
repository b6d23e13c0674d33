// Package polar derives the N-sector polar view (component C4) from the
// radar grid around the robot's current pose, and the reactive safety
// predicates built on top of it.
package polar

import (
	"wheelly/internal/clock"
	"wheelly/internal/geom"
	"wheelly/internal/radar"
)

// SectorState mirrors radar.CellState with the addition of Labelled, which
// the radar grid itself has no notion of — it is supplied by the marker
// tracker in the world modeller.
type SectorState int

const (
	SUnknown SectorState = iota
	SEmpty
	SHindered
	SLabelled
	SContact
)

// priority ranks classifications from "worst" (wins ties, smallest radius
// favoured) to "best": contact < hindered < labelled < empty < unknown.
func priority(s SectorState) int {
	switch s {
	case SContact:
		return 0
	case SHindered:
		return 1
	case SLabelled:
		return 2
	case SEmpty:
		return 3
	default:
		return 4
	}
}

// Sector is one angular wedge of the polar map.
type Sector struct {
	State    SectorState
	Distance float64 // valid for Hindered/Labelled/Contact
}

// Map is the N-sector polar view, sector 0 pointing robot-forward.
type Map struct {
	Sectors []Sector
}

// LabelHint lets the caller fold marker observations into sector
// classification alongside the radar grid, since markers are tracked
// outside the radar package.
type LabelHint struct {
	Bearing  geom.Angle
	Distance float64
}

// Params controls how the map is derived from the grid.
type Params struct {
	Sectors   int
	MinRadius float64
	MaxRadius float64
}

// Derive recomputes the polar map from the grid around pose: for
// each sector, scan cells whose centre lies in [MinRadius, MaxRadius] and
// inside the sector, and pick the classification with the smallest radius
// under the stated priority order.
func Derive(grid *radar.Grid, pose geom.Pose, now clock.Time, params Params, labels []LabelHint) Map {
	n := params.Sectors
	if n <= 0 {
		n = 1
	}
	best := make([]Sector, n)
	bestDist := make([]float64, n)
	for i := range best {
		best[i] = Sector{State: SUnknown}
		bestDist[i] = params.MaxRadius + 1
	}

	if grid != nil {
		for _, ref := range grid.CellsWithin(pose.Position, params.MinRadius, params.MaxRadius) {
			bearing := pose.RelativeBearing(ref.Center)
			sectorIdx := bearing.Sector(n)
			state := fromCellState(grid.StateOf(ref.I, ref.J, now))
			considerLocked(best, bestDist, sectorIdx, state, ref.Distance)
		}
	}
	for _, label := range labels {
		sectorIdx := label.Bearing.Sub(pose.Heading).Sector(n)
		if label.Distance < params.MinRadius || label.Distance > params.MaxRadius {
			continue
		}
		considerLocked(best, bestDist, sectorIdx, SLabelled, label.Distance)
	}

	return Map{Sectors: best}
}

func considerLocked(best []Sector, bestDist []float64, idx int, state SectorState, dist float64) {
	if idx < 0 || idx >= len(best) {
		return
	}
	current := best[idx]
	if shouldReplace(current, bestDist[idx], state, dist) {
		best[idx] = Sector{State: state, Distance: dist}
		bestDist[idx] = dist
	}
}

// shouldReplace implements the priority+smallest-radius tie-break: a worse
// (lower priority number) classification always wins; among equal priority
// the smaller radius wins.
func shouldReplace(current Sector, currentDist float64, candidate SectorState, candidateDist float64) bool {
	if current.State == SUnknown {
		return candidate != SUnknown || candidateDist < currentDist
	}
	cp, candp := priority(current.State), priority(candidate)
	if candp != cp {
		return candp < cp
	}
	return candidateDist < currentDist
}

func fromCellState(s radar.CellState) SectorState {
	switch s {
	case radar.Empty:
		return SEmpty
	case radar.Hindered:
		return SHindered
	case radar.Contact:
		return SContact
	default:
		return SUnknown
	}
}

// Predicates are the derived booleans computed once per step from the
// polar map.
type Predicates struct {
	FrontBlocked    bool
	RearBlocked     bool
	Blocked         bool
	CanMoveForward  bool
	CanMoveBackward bool
}

// PredicateParams controls blocked-detection geometry.
type PredicateParams struct {
	FrontArc     float64 // degrees either side of forward counted as "front"
	RearArc      float64
	SafeDistance float64
}

// DerivePredicates computes frontBlocked/rearBlocked/blocked from the map,
// and canMove{Forward,Backward} from the latest contact reading and a
// predicted stop distance at the current speed.
func DerivePredicates(m Map, params PredicateParams, frontClear, rearClear bool, stopDistanceForward, stopDistanceBackward float64) Predicates {
	n := len(m.Sectors)
	front := sectorsBlocked(m, n, 0, params.FrontArc, params.SafeDistance)
	rear := sectorsBlocked(m, n, 180, params.RearArc, params.SafeDistance)
	return Predicates{
		FrontBlocked:    front,
		RearBlocked:     rear,
		Blocked:         front && rear,
		CanMoveForward:  frontClear && stopDistanceForward < params.SafeDistance,
		CanMoveBackward: rearClear && stopDistanceBackward < params.SafeDistance,
	}
}

func sectorsBlocked(m Map, n int, centreDeg, arc, safeDistance float64) bool {
	if n == 0 {
		return false
	}
	centre := geom.FromDegrees(centreDeg)
	for i, s := range m.Sectors {
		if s.State != SHindered && s.State != SContact {
			continue
		}
		sectorBearing := geom.SectorCentre(i, n)
		diff := sectorBearing.Sub(centre).Degrees()
		if diff < 0 {
			diff = -diff
		}
		if diff <= arc && s.Distance < safeDistance {
			return true
		}
	}
	return false
}
