// Package world implements the world modeller (component C5): it fuses
// motion, proximity, contact and marker messages into the radar grid and
// polar map, maintains labelled markers, and derives the canMove/blocked
// predicates consumed by the agent. Step applies queued sensor messages and
// returns a read-only snapshot valid for the duration of one tick.
package world

import (
	"wheelly/internal/clock"
	"wheelly/internal/geom"
	"wheelly/internal/markers"
	"wheelly/internal/polar"
	"wheelly/internal/radar"
)

// Spec captures the immutable robot constants.
type Spec struct {
	MaxRadarDistance float64
	ReceptiveAngle   float64
	ContactRadius    float64
}

// Status is the robot's latest known motion/contact state.
type Status struct {
	Pose            geom.Pose
	LeftPps         float64
	RightPps        float64
	Halted          bool
	FrontClear      bool
	RearClear       bool
	CanMoveForward  bool
	CanMoveBackward bool
	LastProximityTs clock.Time
}

// Model is the read-only snapshot passed to the agent for one step. It must
// not be retained by states across steps.
type Model struct {
	Spec       Spec
	Status     Status
	Markers    []markers.Marker
	Polar      polar.Map
	Predicates polar.Predicates
	Path       []geom.Point
}

// Message is any timestamped input accepted by Modeller.Step.
type Message interface {
	messageTime() clock.Time
}

// MotionMessage reports odometry/IMU telemetry.
type MotionMessage struct {
	Time     clock.Time
	Pose     geom.Pose
	LeftPps  float64
	RightPps float64
	Halt     bool
}

func (m MotionMessage) messageTime() clock.Time { return m.Time }

// ProximityMessage wraps radar.ProximityMessage so callers outside this
// package only need to import world.
type ProximityMessage radar.ProximityMessage

func (m ProximityMessage) messageTime() clock.Time { return m.Time }

// ContactMessage wraps radar.ContactMessage.
type ContactMessage radar.ContactMessage

func (m ContactMessage) messageTime() clock.Time { return m.Time }

// MarkerMessage wraps markers.Observation.
type MarkerMessage markers.Observation

func (m MarkerMessage) messageTime() clock.Time { return m.Time }

// ClockMessage is the robot's reply to a clock sync request: the remote
// receive/transmit timestamp pair used to estimate the robot→reactor clock
// offset. It carries no world-model update; the controller consumes it
// before telemetry reaches the modeller.
type ClockMessage struct {
	Token string
	T0    clock.Time
	T1    clock.Time
}

func (m ClockMessage) messageTime() clock.Time { return m.T1 }

// Shifted returns msg with its embedded timestamp moved by delta
// milliseconds, applied once a clock sync has established the robot's
// offset from the reactor clock.
func Shifted(msg Message, delta int64) Message {
	switch v := msg.(type) {
	case MotionMessage:
		v.Time += clock.Time(delta)
		return v
	case ProximityMessage:
		v.Time += clock.Time(delta)
		return v
	case ContactMessage:
		v.Time += clock.Time(delta)
		return v
	case MarkerMessage:
		v.Time += clock.Time(delta)
		return v
	default:
		return msg
	}
}
