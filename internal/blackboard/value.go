// Package blackboard implements the typed key-value store and the small
// stack-based command language used by transition hooks (component C6): a
// linear bytecode interpreter over a private operand stack, built from
// small, deterministic, side-effect-free value transforms.
package blackboard

import (
	"fmt"

	"wheelly/internal/geom"
)

// Tag identifies the dynamic type carried by a Value.
type Tag int

const (
	TagNone Tag = iota
	TagNumber
	TagInteger
	TagString
	TagPoint
	TagBearing
	TagPath
)

func (t Tag) String() string {
	switch t {
	case TagNumber:
		return "number"
	case TagInteger:
		return "integer"
	case TagString:
		return "string"
	case TagPoint:
		return "point"
	case TagBearing:
		return "bearing"
	case TagPath:
		return "path"
	default:
		return "none"
	}
}

// Value is a tagged union; stack entries and blackboard entries share this
// type. Only the field matching Tag is meaningful.
type Value struct {
	Tag     Tag
	Number  float64
	Integer int64
	Str     string
	Point   geom.Point
	Bearing geom.Angle
	Path    []geom.Point
}

// Num constructs a floating point Value.
func Num(v float64) Value { return Value{Tag: TagNumber, Number: v} }

// Int constructs an integer Value.
func Int(v int64) Value { return Value{Tag: TagInteger, Integer: v} }

// Str constructs a string Value.
func Str(v string) Value { return Value{Tag: TagString, Str: v} }

// Pt constructs a point Value.
func Pt(v geom.Point) Value { return Value{Tag: TagPoint, Point: v} }

// Bear constructs a bearing Value.
func Bear(v geom.Angle) Value { return Value{Tag: TagBearing, Bearing: v} }

// PathVal constructs a path Value.
func PathVal(v []geom.Point) Value { return Value{Tag: TagPath, Path: append([]geom.Point(nil), v...)} }

// asFloat coerces number/integer values to float64 for arithmetic.
func (v Value) asFloat() (float64, bool) {
	switch v.Tag {
	case TagNumber:
		return v.Number, true
	case TagInteger:
		return float64(v.Integer), true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Tag {
	case TagNumber:
		return fmt.Sprintf("%g", v.Number)
	case TagInteger:
		return fmt.Sprintf("%d", v.Integer)
	case TagString:
		return v.Str
	case TagPoint:
		return fmt.Sprintf("(%g,%g)", v.Point.X, v.Point.Y)
	case TagBearing:
		return fmt.Sprintf("%g°", v.Bearing.Degrees())
	case TagPath:
		return fmt.Sprintf("path[%d]", len(v.Path))
	default:
		return "none"
	}
}
