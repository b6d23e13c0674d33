package link

import (
	"fmt"
	"strconv"
	"strings"

	"wheelly/internal/clock"
	"wheelly/internal/geom"
	"wheelly/internal/world"
)

// parseTelemetry decodes one source-tagged telemetry line into a
// world.Message. Recognised tags: mot (motion), prx (proximity), cnt
// (contact), cam (camera/marker), st (combined query-status reply). Unknown
// tags (e.g. sup supply, ack command acks) are reported via ok=false with a
// nil error, since they carry no world-model update.
func parseTelemetry(line string) (world.Message, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false, fmt.Errorf("%w: empty line", ErrProtocol)
	}
	switch fields[0] {
	case "mot":
		return parseMotion(fields[1:])
	case "prx":
		return parseProximity(fields[1:])
	case "cnt":
		return parseContact(fields[1:])
	case "cam":
		return parseMarker(fields[1:])
	case "st":
		return parseStatus(fields[1:])
	case "ck":
		return parseClock(fields[1:])
	default:
		return nil, false, nil
	}
}

func parseMotion(f []string) (world.Message, bool, error) {
	if len(f) != 6 {
		return nil, false, fmt.Errorf("%w: mot wants 6 fields, got %d", ErrProtocol, len(f))
	}
	t, x, y, heading, left, right, err := parsePoseFields(f[:4], f[4], f[5])
	if err != nil {
		return nil, false, err
	}
	return world.MotionMessage{
		Time:     t,
		Pose:     geom.Pose{Position: geom.Point{X: x, Y: y}, Heading: geom.FromDegrees(heading)},
		LeftPps:  left,
		RightPps: right,
	}, true, nil
}

// parsePoseFields is a small helper shared by the pose-bearing telemetry
// parsers: the first four fields are always <t> <x> <y> <headingDeg>.
func parsePoseFields(poseFields []string, extra1, extra2 string) (t clock.Time, x, y, heading, a, b float64, err error) {
	ti, err := strconv.ParseInt(poseFields[0], 10, 64)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: bad timestamp %q", ErrProtocol, poseFields[0])
	}
	x, err = strconv.ParseFloat(poseFields[1], 64)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: bad x %q", ErrProtocol, poseFields[1])
	}
	y, err = strconv.ParseFloat(poseFields[2], 64)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: bad y %q", ErrProtocol, poseFields[2])
	}
	heading, err = strconv.ParseFloat(poseFields[3], 64)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: bad heading %q", ErrProtocol, poseFields[3])
	}
	a, err = strconv.ParseFloat(extra1, 64)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: bad field %q", ErrProtocol, extra1)
	}
	b, err = strconv.ParseFloat(extra2, 64)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: bad field %q", ErrProtocol, extra2)
	}
	return clock.Time(ti), x, y, heading, a, b, nil
}

func parseProximity(f []string) (world.Message, bool, error) {
	if len(f) != 6 {
		return nil, false, fmt.Errorf("%w: prx wants 6 fields, got %d", ErrProtocol, len(f))
	}
	t, x, y, heading, sensorDir, distance, err := parsePoseFields(f[:4], f[4], f[5])
	if err != nil {
		return nil, false, err
	}
	return world.ProximityMessage{
		Time:      t,
		Pose:      geom.Pose{Position: geom.Point{X: x, Y: y}, Heading: geom.FromDegrees(heading)},
		SensorDir: geom.FromDegrees(sensorDir),
		Distance:  distance,
	}, true, nil
}

func parseContact(f []string) (world.Message, bool, error) {
	if len(f) != 6 {
		return nil, false, fmt.Errorf("%w: cnt wants 6 fields, got %d", ErrProtocol, len(f))
	}
	ti, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad timestamp %q", ErrProtocol, f[0])
	}
	x, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad x %q", ErrProtocol, f[1])
	}
	y, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad y %q", ErrProtocol, f[2])
	}
	heading, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad heading %q", ErrProtocol, f[3])
	}
	frontClear := f[4] == "1"
	rearClear := f[5] == "1"
	return world.ContactMessage{
		Time:       clock.Time(ti),
		Pose:       geom.Pose{Position: geom.Point{X: x, Y: y}, Heading: geom.FromDegrees(heading)},
		FrontClear: frontClear,
		RearClear:  rearClear,
	}, true, nil
}

func parseMarker(f []string) (world.Message, bool, error) {
	if len(f) != 7 {
		return nil, false, fmt.Errorf("%w: cam wants 7 fields, got %d", ErrProtocol, len(f))
	}
	ti, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad timestamp %q", ErrProtocol, f[0])
	}
	label := f[1]
	bearing, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad bearing %q", ErrProtocol, f[2])
	}
	distance, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad distance %q", ErrProtocol, f[3])
	}
	x, err := strconv.ParseFloat(f[4], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad x %q", ErrProtocol, f[4])
	}
	y, err := strconv.ParseFloat(f[5], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad y %q", ErrProtocol, f[5])
	}
	heading, err := strconv.ParseFloat(f[6], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad heading %q", ErrProtocol, f[6])
	}
	return world.MarkerMessage{
		Time:     clock.Time(ti),
		Label:    label,
		Bearing:  geom.FromDegrees(bearing),
		Distance: distance,
		Pose:     geom.Pose{Position: geom.Point{X: x, Y: y}, Heading: geom.FromDegrees(heading)},
	}, true, nil
}

// parseClock decodes the "ck <token> <t0> <t1>" reply to a clock sync
// request: t0 is the robot's receive time, t1 its transmit time.
func parseClock(f []string) (world.Message, bool, error) {
	if len(f) != 3 {
		return nil, false, fmt.Errorf("%w: ck wants 3 fields, got %d", ErrProtocol, len(f))
	}
	t0, err := strconv.ParseInt(f[1], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad t0 %q", ErrProtocol, f[1])
	}
	t1, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad t1 %q", ErrProtocol, f[2])
	}
	return world.ClockMessage{Token: f[0], T0: clock.Time(t0), T1: clock.Time(t1)}, true, nil
}

// parseStatus decodes the combined "st" reply to qs/sc/mt into a
// MotionMessage; proximity/contact data, when present, arrive on their own
// async tags rather than folded into the status line.
func parseStatus(f []string) (world.Message, bool, error) {
	if len(f) != 6 {
		return nil, false, fmt.Errorf("%w: st wants 6 fields, got %d", ErrProtocol, len(f))
	}
	ti, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad timestamp %q", ErrProtocol, f[0])
	}
	x, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad x %q", ErrProtocol, f[1])
	}
	y, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad y %q", ErrProtocol, f[2])
	}
	heading, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad heading %q", ErrProtocol, f[3])
	}
	left, err := strconv.ParseFloat(f[4], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad left pps %q", ErrProtocol, f[4])
	}
	right, err := strconv.ParseFloat(f[5], 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad right pps %q", ErrProtocol, f[5])
	}
	return world.MotionMessage{
		Time:     clock.Time(ti),
		Pose:     geom.Pose{Position: geom.Point{X: x, Y: y}, Heading: geom.FromDegrees(heading)},
		LeftPps:  left,
		RightPps: right,
	}, true, nil
}
