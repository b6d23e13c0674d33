package world

import (
	"sort"

	"wheelly/internal/clock"
	"wheelly/internal/geom"
	"wheelly/internal/markers"
	"wheelly/internal/polar"
	"wheelly/internal/radar"
)

// Params bundles every tunable the modeller needs, independent of the robot
// spec constants (which travel with each Step call's Spec).
type Params struct {
	PolarSectors       int
	MinRadarDistance   float64
	FrontArc           float64
	RearArc            float64
	SafeDistance       float64
	RadarCleanInterval clock.Time // ms; 0 disables scheduled cleaning
	MarkerDecayMs      int64
	MarkerCleanDecayMs int64
	StaleAfterMs       int64 // SensorStale threshold, default 2x scanInterval by convention
}

// Modeller owns the radar grid and marker tracker and derives a fresh Model
// every Step.
type Modeller struct {
	grid    *radar.Grid
	markers *markers.Tracker
	params  Params

	status       Status
	lastCleanRan clock.Time
}

// NewModeller constructs a Modeller over the given grid configuration.
func NewModeller(gridCfg radar.Config, params Params) *Modeller {
	return &Modeller{
		grid:         radar.NewGrid(gridCfg),
		markers:      markers.NewTracker(params.MarkerDecayMs, params.MarkerCleanDecayMs),
		params:       params,
		lastCleanRan: clock.Never,
	}
}

// Grid exposes the underlying radar grid, e.g. for the ClearMap state.
func (m *Modeller) Grid() *radar.Grid { return m.grid }

// Markers exposes the underlying marker tracker, e.g. for the LabelPoint
// and ClearMap states.
func (m *Modeller) Markers() *markers.Tracker { return m.markers }

// Step applies every message in messagesSince (sorted into embedded-
// timestamp order, ties broken by arrival order) to the radar grid,
// pose and markers, runs the scheduled Clean pass, and returns the
// recomputed snapshot.
func (m *Modeller) Step(spec Spec, messagesSince []Message, now clock.Time) Model {
	ordered := make([]Message, len(messagesSince))
	copy(ordered, messagesSince)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].messageTime() < ordered[j].messageTime()
	})

	updateParams := radar.UpdateParams{
		MaxDistance:    spec.MaxRadarDistance,
		ReceptiveAngle: spec.ReceptiveAngle,
		ContactRadius:  spec.ContactRadius,
	}

	for _, msg := range ordered {
		switch v := msg.(type) {
		case MotionMessage:
			m.status.Pose = v.Pose
			m.status.LeftPps = v.LeftPps
			m.status.RightPps = v.RightPps
			m.status.Halted = v.Halt
		case ProximityMessage:
			pm := radar.ProximityMessage(v)
			m.grid.ApplyProximity(pm, updateParams)
			m.status.LastProximityTs = v.Time
		case ContactMessage:
			cm := radar.ContactMessage(v)
			m.grid.ApplyContact(cm, updateParams)
			m.status.FrontClear = v.FrontClear
			m.status.RearClear = v.RearClear
		case MarkerMessage:
			m.markers.Observe(markers.Observation(v))
		}
	}

	if m.params.RadarCleanInterval > 0 && (!m.lastCleanRan.Set() || now.Sub(m.lastCleanRan).Milliseconds() >= int64(m.params.RadarCleanInterval)) {
		m.grid.Clean(now)
		m.markers.Purge(now)
		m.lastCleanRan = now
	}

	return m.snapshot(spec, now)
}

// Snapshot recomputes the polar map/predicates without consuming new
// messages, used by states that need a fresh read mid-tick.
func (m *Modeller) Snapshot(spec Spec, now clock.Time) Model {
	return m.snapshot(spec, now)
}

func (m *Modeller) snapshot(spec Spec, now clock.Time) Model {
	stale := m.params.StaleAfterMs > 0 &&
		(!m.status.LastProximityTs.Set() || now.Sub(m.status.LastProximityTs).Milliseconds() > m.params.StaleAfterMs)

	var pm polar.Map
	var preds polar.Predicates
	if stale {
		//1.- SensorStale: treat every sector as unknown rather than trusting
		// aged proximity data (the SensorStale error kind).
		pm = polar.Map{Sectors: make([]polar.Sector, maxInt(m.params.PolarSectors, 1))}
	} else {
		labels := labelHints(m.markers.Snapshot(), now, m.params.MarkerDecayMs, m.status.Pose)
		pm = polar.Derive(m.grid, m.status.Pose, now, polar.Params{
			Sectors: m.params.PolarSectors, MinRadius: m.params.MinRadarDistance, MaxRadius: spec.MaxRadarDistance,
		}, labels)
	}

	stopForward, stopBackward := stopDistances(m.status.LeftPps, m.status.RightPps)
	preds = polar.DerivePredicates(pm, polar.PredicateParams{
		FrontArc: m.params.FrontArc, RearArc: m.params.RearArc, SafeDistance: m.params.SafeDistance,
	}, m.status.FrontClear, m.status.RearClear, stopForward, stopBackward)

	m.status.CanMoveForward = preds.CanMoveForward
	m.status.CanMoveBackward = preds.CanMoveBackward

	return Model{
		Spec:       spec,
		Status:     m.status,
		Markers:    m.markers.Snapshot(),
		Polar:      pm,
		Predicates: preds,
	}
}

func labelHints(ms []markers.Marker, now clock.Time, decayMs int64, pose geom.Pose) []polar.LabelHint {
	hints := make([]polar.LabelHint, 0, len(ms))
	for _, mk := range ms {
		if now.Sub(mk.LastSeenTs).Milliseconds() >= decayMs {
			continue
		}
		hints = append(hints, polar.LabelHint{
			Bearing:  pose.Position.BearingTo(mk.Position),
			Distance: pose.Position.Distance(mk.Position),
		})
	}
	return hints
}

// stopDistances predicts braking distance from current wheel speed using a
// simple proportional model: distance ~ speed * reactionInterval-equivalent
// constant. Kept intentionally simple since the firmware's true braking
// curve is outside this core's scope.
func stopDistances(leftPps, rightPps float64) (forward, backward float64) {
	const stopGain = 0.01
	speed := (leftPps + rightPps) / 2
	if speed > 0 {
		return speed * stopGain, 0
	}
	if speed < 0 {
		return 0, -speed * stopGain
	}
	return 0, 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
