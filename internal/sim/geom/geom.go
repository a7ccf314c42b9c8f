// Package geom holds the integer grid math used by the drag engine:
// tile positions, the four compass directions, rays and the eight
// grid symmetries.
package geom

import "fmt"

// Pos is a tile position. X grows to the east, Y grows to the south.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Vec is a tile offset.
type Vec struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func P(x, y int) Pos { return Pos{X: x, Y: y} }

func (p Pos) Add(v Vec) Pos   { return Pos{X: p.X + v.X, Y: p.Y + v.Y} }
func (p Pos) Sub(v Vec) Pos   { return Pos{X: p.X - v.X, Y: p.Y - v.Y} }
func (p Pos) Diff(o Pos) Vec  { return Vec{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Pos) String() string  { return fmt.Sprintf("%d,%d", p.X, p.Y) }
func (v Vec) Add(o Vec) Vec   { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec   { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec) Scale(k int) Vec { return Vec{X: v.X * k, Y: v.Y * k} }
func (v Vec) Dot(o Vec) int   { return v.X*o.X + v.Y*o.Y }

// Less orders positions row-major (Y first, then X).
func (p Pos) Less(o Pos) bool {
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

// Direction is one of the four compass directions. The ordinals are
// clockwise starting at North.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists all directions in ordinal order.
var Directions = [4]Direction{North, East, South, West}

func (d Direction) Vec() Vec {
	switch d & 3 {
	case North:
		return Vec{X: 0, Y: -1}
	case East:
		return Vec{X: 1, Y: 0}
	case South:
		return Vec{X: 0, Y: 1}
	default:
		return Vec{X: -1, Y: 0}
	}
}

func (d Direction) Opposite() Direction  { return (d + 2) & 3 }
func (d Direction) RotateCW() Direction  { return (d + 1) & 3 }
func (d Direction) RotateCCW() Direction { return (d + 3) & 3 }

func (d Direction) Axis() Axis {
	if d == North || d == South {
		return AxisY
	}
	return AxisX
}

// Char returns the single-character arrow used by the grid text format.
func (d Direction) Char() byte {
	switch d {
	case North:
		return '^'
	case East:
		return '>'
	case South:
		return 'v'
	default:
		return '<'
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// DirectionFromChar parses an arrow character.
func DirectionFromChar(c byte) (Direction, bool) {
	switch c {
	case '^':
		return North, true
	case '>':
		return East, true
	case 'v':
		return South, true
	case '<':
		return West, true
	}
	return 0, false
}

type Axis uint8

const (
	AxisX Axis = iota
	AxisY
)

// Bounds is a half-open rectangle [Min, Max).
type Bounds struct {
	Min Pos
	Max Pos
}

func (b Bounds) Empty() bool { return b.Min.X >= b.Max.X || b.Min.Y >= b.Max.Y }

func (b Bounds) Contains(p Pos) bool {
	return p.X >= b.Min.X && p.X < b.Max.X && p.Y >= b.Min.Y && p.Y < b.Max.Y
}

func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Bounds{
		Min: Pos{X: min(b.Min.X, o.Min.X), Y: min(b.Min.Y, o.Min.Y)},
		Max: Pos{X: max(b.Max.X, o.Max.X), Y: max(b.Max.Y, o.Max.Y)},
	}
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
