package radar

import (
	"wheelly/internal/clock"
	"wheelly/internal/geom"
)

// ProximityMessage reports an ultrasonic echo (or its absence) observed by
// the sensor at the given pose and sensor-relative bearing.
type ProximityMessage struct {
	Time      clock.Time
	Pose      geom.Pose
	SensorDir geom.Angle // relative to the pose heading
	Distance  float64    // metres; equals MaxDistance when no echo returned
}

// ContactMessage reports a bumper/contact reading at the given pose.
type ContactMessage struct {
	Time       clock.Time
	Pose       geom.Pose
	FrontClear bool
	RearClear  bool
}

// UpdateParams bundle the robot-spec constants needed to interpret a
// message; these come from the immutable robot spec rather than the
// grid's own configuration, since they can vary by sensor.
type UpdateParams struct {
	MaxDistance    float64
	ReceptiveAngle float64 // full cone width, degrees
	ContactRadius  float64
}

// ApplyProximity marks grid cells from a proximity reading: the cell
// containing the echo point is marked hindered; every cell on the open ray
// up to (just before) that point is marked empty, within the sensor's
// receptive angular cone. When no echo returns (Distance == MaxDistance)
// the full cone up to MaxDistance is marked empty.
func (g *Grid) ApplyProximity(msg ProximityMessage, params UpdateParams) {
	if g == nil {
		return
	}
	global := msg.Pose.Heading.Compose(msg.SensorDir)
	halfWidth := params.ReceptiveAngle / 2
	hasEcho := msg.Distance < params.MaxDistance
	echoI, echoJ := g.CellOf(msg.Pose.Position.Translate(global, msg.Distance))

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, ref := range g.CellsWithin(msg.Pose.Position, 0, params.MaxDistance) {
		bearing := msg.Pose.Position.BearingTo(ref.Center).Sub(global)
		if absDeg(bearing.Degrees()) > halfWidth {
			continue
		}
		cell := &g.cells[g.index(ref.I, ref.J)]
		switch {
		case hasEcho && ref.Distance < msg.Distance && (ref.I != echoI || ref.J != echoJ):
			//1.- Cell lies strictly before the echo: the ray passed through empty space.
			setIfNewer(&cell.EmptyTs, msg.Time)
		case !hasEcho:
			//3.- No echo returned: the whole cone out to max range reads as empty.
			setIfNewer(&cell.EmptyTs, msg.Time)
		}
	}
	for r := 0.0; r < msg.Distance; r += g.cfg.CellSize / 4 { // cells the ray itself crosses
		if i, j := g.CellOf(msg.Pose.Position.Translate(global, r)); g.inBounds(i, j) && (!hasEcho || i != echoI || j != echoJ) {
			setIfNewer(&g.cells[g.index(i, j)].EmptyTs, msg.Time)
		}
	}
	if hasEcho && g.inBounds(echoI, echoJ) {
		//2.- The cell containing the echo point itself, even when its centre lies outside the cone.
		setIfNewer(&g.cells[g.index(echoI, echoJ)].EchoTs, msg.Time)
	}
}

// ApplyContact marks grid cells from a contact reading: cells within
// ContactRadius on the side reporting contact are marked as contact cells.
func (g *Grid) ApplyContact(msg ContactMessage, params UpdateParams) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if !msg.FrontClear {
		g.markContactLocked(msg.Pose, msg.Pose.Heading, params.ContactRadius, msg.Time)
	}
	if !msg.RearClear {
		g.markContactLocked(msg.Pose, msg.Pose.Heading.Compose(geom.FromDegrees(180)), params.ContactRadius, msg.Time)
	}
}

func (g *Grid) markContactLocked(pose geom.Pose, side geom.Angle, radius float64, now clock.Time) {
	for _, ref := range g.CellsWithin(pose.Position, 0, radius) {
		bearing := pose.Position.BearingTo(ref.Center).Sub(side)
		if absDeg(bearing.Degrees()) > 90 {
			continue
		}
		cell := &g.cells[g.index(ref.I, ref.J)]
		setIfNewer(&cell.ContactTs, now)
	}
}

// setIfNewer enforces that timestamps only ever move forward: a later
// timestamp always wins.
func setIfNewer(field *clock.Time, t clock.Time) {
	if !field.Set() || t > *field {
		*field = t
	}
}

func absDeg(d float64) float64 {
	if d < 0 {
		return -d
	}
	return d
}

// Clean zeroes fields whose age exceeds their persistence window, bounding
// memory pressure. Decay itself is a no-op: classify() already treats aged
// timestamps uniformly, so Clean exists purely for housekeeping and is run
// on the configured CleanInterval by the caller.
func (g *Grid) Clean(now clock.Time) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.cells {
		c := &g.cells[i]
		if c.EchoTs.Set() && now.Sub(c.EchoTs) > g.cfg.EchoPersistence {
			c.EchoTs = clock.Never
		}
		if c.EmptyTs.Set() && now.Sub(c.EmptyTs) > g.cfg.EchoPersistence {
			c.EmptyTs = clock.Never
		}
		if c.ContactTs.Set() && now.Sub(c.ContactTs) > g.cfg.ContactPersistence {
			c.ContactTs = clock.Never
		}
	}
	g.lastClean = now
}

// ShouldClean reports whether CleanInterval has elapsed since the last Clean.
func (g *Grid) ShouldClean(now clock.Time) bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.lastClean.Set() || now.Sub(g.lastClean) >= g.cfg.CleanInterval
}

// Reset clears every cell back to Unknown, used by the ClearMap state.
func (g *Grid) Reset() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.cells {
		g.cells[i] = Cell{EchoTs: clock.Never, EmptyTs: clock.Never, ContactTs: clock.Never}
	}
}
