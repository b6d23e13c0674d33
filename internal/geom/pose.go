package geom

import "math"

// Point is a planar world coordinate expressed in metres.
type Point struct {
	X float64
	Y float64
}

// Add returns p+o.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns p-o.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Scale returns p scaled by k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Distance returns the Euclidean distance between p and o.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// BearingTo returns the compass bearing from p towards o, 0 = north.
func (p Point) BearingTo(o Point) Angle {
	d := o.Sub(p)
	if d.X == 0 && d.Y == 0 {
		return Zero
	}
	//1.- North is +Y, clockwise-positive, so swap the usual atan2 argument order.
	return FromRadians(math.Atan2(d.X, d.Y))
}

// Translate moves p by distance r along bearing a.
func (p Point) Translate(a Angle, r float64) Point {
	rad := a.Radians()
	return Point{X: p.X + r*math.Sin(rad), Y: p.Y + r*math.Cos(rad)}
}

// Pose is the robot's planar position and heading.
type Pose struct {
	Position Point
	Heading  Angle
}

// Project returns the point reached by moving distance r forward from the pose.
func (p Pose) Project(r float64) Point {
	return p.Position.Translate(p.Heading, r)
}

// RelativeBearing returns the bearing of point o as seen from this pose,
// i.e. 0 means o is straight ahead.
func (p Pose) RelativeBearing(o Point) Angle {
	return p.Position.BearingTo(o).Sub(p.Heading)
}
