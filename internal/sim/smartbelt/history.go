package smartbelt

import (
	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/world"
)

// History holds the connectivity the drag's most recent placement replaced,
// plus the end-tile record carried over a rotation. Tiles placed earlier in
// the drag answer from the live world.
type History struct {
	latest     world.TileRecord
	hasLatest  bool
	carried    world.TileRecord
	hasCarried bool
}

// Record replaces the latest placement record.
func (h *History) Record(r world.TileRecord) {
	h.latest, h.hasLatest = r, true
}

// Carry sets the record kept from the previous leg of a rotated drag.
func (h *History) Carry(r world.TileRecord) {
	h.carried, h.hasCarried = r, true
}

func (h *History) Latest() (world.TileRecord, bool) {
	if h == nil {
		return world.TileRecord{}, false
	}
	return h.latest, h.hasLatest
}

// Lookup prefers the latest record over the carried one.
func (h *History) Lookup(p geom.Pos) (belts.Connections, bool) {
	if h == nil {
		return belts.Connections{}, false
	}
	if h.hasLatest && h.latest.Pos == p {
		return h.latest.Conn, true
	}
	if h.hasCarried && h.carried.Pos == p {
		return h.carried.Conn, true
	}
	return belts.Connections{}, false
}

func (h *History) Len() int { return len(h.Records()) }

// Records returns the latest record, then the carried one.
func (h *History) Records() []world.TileRecord {
	if h == nil {
		return nil
	}
	var out []world.TileRecord
	if h.hasLatest {
		out = append(out, h.latest)
	}
	if h.hasCarried {
		out = append(out, h.carried)
	}
	return out
}

// historyView answers connectivity queries from the drag's history first and
// falls back to the live world.
type historyView struct {
	w world.Reader
	h *History
}

func (v historyView) Get(p geom.Pos) (belts.Entity, bool) { return v.w.Get(p) }

func (v historyView) OutputDirectionAt(p geom.Pos) (geom.Direction, bool) {
	if c, ok := v.h.Lookup(p); ok {
		return c.Output, c.HasOutput
	}
	return v.w.OutputDirectionAt(p)
}

func (v historyView) InputDirectionAt(p geom.Pos) (geom.Direction, bool) {
	if c, ok := v.h.Lookup(p); ok {
		return c.Input, c.HasInput
	}
	e, ok := v.w.Get(p)
	if !ok {
		return 0, false
	}
	if e.Kind == belts.KindBelt {
		// Neighbour outputs come from this view so remembered tiles count.
		return belts.CurvedInputDirection(v, p, e.Dir), true
	}
	return e.PrimaryInputDirection()
}
