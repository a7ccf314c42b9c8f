package geom

import "fmt"

// Transform is one of the eight symmetries of the square grid. It is applied
// as SwapXY first, then FlipX, then FlipY.
type Transform struct {
	FlipX  bool `json:"flip_x"`
	FlipY  bool `json:"flip_y"`
	SwapXY bool `json:"swap_xy"`
}

func (t Transform) Pos(p Pos) Pos {
	if t.SwapXY {
		p = Pos{X: p.Y, Y: p.X}
	}
	if t.FlipX {
		p.X = -p.X
	}
	if t.FlipY {
		p.Y = -p.Y
	}
	return p
}

var (
	swapDir  = [4]Direction{West, South, East, North}
	flipXDir = [4]Direction{North, West, South, East}
	flipYDir = [4]Direction{South, East, North, West}
)

func (t Transform) Direction(d Direction) Direction {
	d &= 3
	if t.SwapXY {
		d = swapDir[d]
	}
	if t.FlipX {
		d = flipXDir[d]
	}
	if t.FlipY {
		d = flipYDir[d]
	}
	return d
}

func (t Transform) String() string {
	return fmt.Sprintf("flipX=%t flipY=%t swapXY=%t", t.FlipX, t.FlipY, t.SwapXY)
}

// AllTransforms returns the eight distinct grid symmetries, identity first.
func AllTransforms() []Transform {
	return []Transform{
		{},
		{FlipX: true, SwapXY: true},
		{FlipX: true, FlipY: true},
		{FlipY: true, SwapXY: true},
		{FlipX: true},
		{FlipX: true, FlipY: true, SwapXY: true},
		{FlipY: true},
		{SwapXY: true},
	}
}
