package belts

import "smartbelt.ai/internal/sim/geom"

// OutputReader answers which way the entity at a tile emits items.
type OutputReader interface {
	OutputDirectionAt(p geom.Pos) (geom.Direction, bool)
}

// Connections is the input/output state of a tile at some moment.
type Connections struct {
	Input     geom.Direction `json:"input"`
	HasInput  bool           `json:"has_input"`
	Output    geom.Direction `json:"output"`
	HasOutput bool           `json:"has_output"`
}

func hasInputFrom(r OutputReader, p geom.Pos, d geom.Direction) bool {
	out, ok := r.OutputDirectionAt(p.Sub(d.Vec()))
	return ok && out == d
}

// CurvedInputDirection returns the effective input side of a belt facing
// facing at p. A feeder straight behind wins; otherwise exactly one side
// feeder curves the belt; anything else leaves it straight.
func CurvedInputDirection(r OutputReader, p geom.Pos, facing geom.Direction) geom.Direction {
	if hasInputFrom(r, p, facing) {
		return facing
	}
	cw, ccw := facing.RotateCW(), facing.RotateCCW()
	fromCW := hasInputFrom(r, p, cw)
	fromCCW := hasInputFrom(r, p, ccw)
	switch {
	case fromCW && !fromCCW:
		return cw
	case fromCCW && !fromCW:
		return ccw
	}
	return facing
}

// CurveDependencies lists the neighbour directions whose output decides the
// belt's curvature.
func CurveDependencies(r OutputReader, p geom.Pos, facing geom.Direction) []geom.Direction {
	if hasInputFrom(r, p, facing) {
		return []geom.Direction{facing}
	}
	var deps []geom.Direction
	if d := facing.RotateCW(); hasInputFrom(r, p, d) {
		deps = append(deps, d)
	}
	if d := facing.RotateCCW(); hasInputFrom(r, p, d) {
		deps = append(deps, d)
	}
	return deps
}

// IsCurved reports whether a belt facing dir with the given input is curved.
func IsCurved(input geom.Direction, hasInput bool, dir geom.Direction) bool {
	return hasInput && input.Axis() != dir.Axis()
}
