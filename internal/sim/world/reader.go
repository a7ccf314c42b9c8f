package world

import (
	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
)

// Reader is the read side of a belt world.
type Reader interface {
	Get(p geom.Pos) (belts.Entity, bool)
	OutputDirectionAt(p geom.Pos) (geom.Direction, bool)
	// InputDirectionAt applies belt curving for plain belts.
	InputDirectionAt(p geom.Pos) (geom.Direction, bool)
}

// World is the read-write side the drag engine mutates. Write methods
// report whether anything changed; they never panic on bad input.
type World interface {
	Reader
	CanPlaceOrFastReplace(p geom.Pos, beltDir geom.Direction, allowFastReplace bool) bool
	TryBuild(p geom.Pos, e belts.Entity) bool
	Mine(p geom.Pos) bool
	FlipUnderground(p geom.Pos) bool
	UpgradeUnderground(p geom.Pos, tier belts.Tier) bool
	UpgradeSplitter(p geom.Pos, tier belts.Tier) bool
}

// TileRecord is the connectivity a tile had before a drag changed it.
type TileRecord struct {
	Pos  geom.Pos          `json:"pos"`
	Conn belts.Connections `json:"conn"`
}

// UndergroundPair scans from p along the underground's shape for the
// matching end of the same tier. A same-facing underground found first
// blocks the pairing.
func UndergroundPair(r Reader, p geom.Pos, ug belts.Entity) (geom.Pos, belts.Entity, bool) {
	shape := ug.ShapeDirection()
	query := shape.Opposite()
	step := query.Vec()
	for i := 1; i <= ug.Tier.UndergroundDistance; i++ {
		q := p.Add(step.Scale(i))
		e, ok := r.Get(q)
		if !ok || e.Kind != belts.KindUnderground || e.Tier != ug.Tier {
			continue
		}
		switch e.ShapeDirection() {
		case query:
			return q, e, true
		case shape:
			return geom.Pos{}, belts.Entity{}, false
		}
	}
	return geom.Pos{}, belts.Entity{}, false
}

func ConnectionsAt(r Reader, p geom.Pos) belts.Connections {
	var c belts.Connections
	c.Input, c.HasInput = r.InputDirectionAt(p)
	c.Output, c.HasOutput = r.OutputDirectionAt(p)
	return c
}

// BeltIsCurvedAt reports whether the belt at p takes its input from the side.
func BeltIsCurvedAt(r Reader, p geom.Pos, belt belts.Entity) bool {
	in, ok := r.InputDirectionAt(p)
	return belts.IsCurved(in, ok, belt.Dir)
}

// PlaceBelt builds a belt and returns the tile's prior connectivity when the
// build changed the world.
func PlaceBelt(w World, p geom.Pos, dir geom.Direction, tier belts.Tier) (TileRecord, bool) {
	return place(w, p, belts.Belt(dir, tier))
}

// PlaceUnderground builds one end of an underground and returns the tile's
// prior connectivity when the build changed the world.
func PlaceUnderground(w World, p geom.Pos, dir geom.Direction, isInput bool, tier belts.Tier) (TileRecord, bool) {
	return place(w, p, belts.Underground(dir, isInput, tier))
}

func place(w World, p geom.Pos, e belts.Entity) (TileRecord, bool) {
	rec := TileRecord{Pos: p, Conn: ConnectionsAt(w, p)}
	if !w.TryBuild(p, e) {
		return TileRecord{}, false
	}
	return rec, true
}
