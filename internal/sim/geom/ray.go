package geom

// Ray is a line of tiles starting at Origin and extending in Dir. Tiles on
// the ray are addressed by a signed index: 0 at the origin, growing in Dir.
type Ray struct {
	Origin Pos
	Dir    Direction
}

func NewRay(origin Pos, dir Direction) Ray { return Ray{Origin: origin, Dir: dir} }

// Index projects p onto the ray and returns its signed distance from the
// origin. Positions off the ray's line are projected perpendicularly.
func (r Ray) Index(p Pos) int {
	return p.Diff(r.Origin).Dot(r.Dir.Vec())
}

// At is the inverse of Index for positions on the ray's line.
func (r Ray) At(i int) Pos {
	return r.Origin.Add(r.Dir.Vec().Scale(i))
}

// Snap returns the position on the ray closest to p.
func (r Ray) Snap(p Pos) Pos { return r.At(r.Index(p)) }

// RelativeDirection reports on which side of the ray's line p lies. It
// returns false when p is on the line.
func (r Ray) RelativeDirection(p Pos) (Direction, bool) {
	off := p.Diff(r.Origin)
	switch r.Dir {
	case North, South:
		if off.X == 0 {
			return 0, false
		}
		if off.X > 0 {
			return East, true
		}
		return West, true
	default:
		if off.Y == 0 {
			return 0, false
		}
		if off.Y > 0 {
			return South, true
		}
		return North, true
	}
}
