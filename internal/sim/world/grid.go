package world

import (
	"fmt"
	"sort"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
)

// Grid is an in-memory World. The zero value is not usable; use NewGrid.
type Grid struct {
	tiles map[geom.Pos]belts.Entity
}

func NewGrid() *Grid {
	return &Grid{tiles: map[geom.Pos]belts.Entity{}}
}

// Placed is one occupied tile.
type Placed struct {
	Pos    geom.Pos     `json:"pos"`
	Entity belts.Entity `json:"entity"`
}

func (g *Grid) Len() int { return len(g.tiles) }

func (g *Grid) Get(p geom.Pos) (belts.Entity, bool) {
	e, ok := g.tiles[p]
	return e, ok
}

// Set stores e at p. An underground whose new pair has the same role is
// flipped so the pair stays input/output. Placing an underground that would
// steal one end of an existing pair is refused.
func (g *Grid) Set(p geom.Pos, e belts.Entity) error {
	if e.Kind == belts.KindNone {
		return fmt.Errorf("set %v: empty entity", p)
	}
	if e.Kind == belts.KindUnderground {
		if pairPos, pair, ok := UndergroundPair(g, p, e); ok {
			if pp, _, ok := UndergroundPair(g, pairPos, pair); ok && pp != p {
				return fmt.Errorf("set %v: would break underground pair %v-%v", p, pairPos, pp)
			}
			if pair.IsInput == e.IsInput {
				e = e.Flip()
			}
		}
	}
	g.tiles[p] = e
	return nil
}

// Put stores e at p as is, without the underground pairing rules of Set.
// It is meant for restoring a world that was already valid.
func (g *Grid) Put(p geom.Pos, e belts.Entity) {
	g.tiles[p] = e
}

// Entities returns all occupied tiles in row-major order.
func (g *Grid) Entities() []Placed {
	out := make([]Placed, 0, len(g.tiles))
	for p, e := range g.tiles {
		out = append(out, Placed{Pos: p, Entity: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

func (g *Grid) OutputDirectionAt(p geom.Pos) (geom.Direction, bool) {
	e, ok := g.tiles[p]
	if !ok {
		return 0, false
	}
	return e.OutputDirection()
}

func (g *Grid) InputDirectionAt(p geom.Pos) (geom.Direction, bool) {
	e, ok := g.tiles[p]
	if !ok {
		return 0, false
	}
	if e.Kind == belts.KindBelt {
		return belts.CurvedInputDirection(g, p, e.Dir), true
	}
	return e.PrimaryInputDirection()
}

func (g *Grid) CanPlaceOrFastReplace(p geom.Pos, beltDir geom.Direction, allowFastReplace bool) bool {
	e, ok := g.tiles[p]
	if !ok {
		return true
	}
	switch e.Kind {
	case belts.KindColliding:
		return false
	case belts.KindBelt:
		return allowFastReplace || e.Dir != beltDir.Opposite()
	}
	return allowFastReplace
}

func (g *Grid) TryBuild(p geom.Pos, e belts.Entity) bool {
	if cur, ok := g.tiles[p]; ok && cur.Connectable() && cur.Equal(e) {
		return false
	}
	return g.Set(p, e) == nil
}

func (g *Grid) Mine(p geom.Pos) bool {
	if _, ok := g.tiles[p]; !ok {
		return false
	}
	delete(g.tiles, p)
	return true
}

// FlipUnderground flips both ends of the pair at p.
func (g *Grid) FlipUnderground(p geom.Pos) bool {
	e, ok := g.tiles[p]
	if !ok || e.Kind != belts.KindUnderground {
		return false
	}
	pairPos, pair, ok := UndergroundPair(g, p, e)
	if !ok {
		return false
	}
	g.tiles[p] = e.Flip()
	g.tiles[pairPos] = pair.Flip()
	return true
}

// UpgradeUnderground retiers both ends of the pair at p. The change is
// rolled back if the ends no longer find each other afterwards.
func (g *Grid) UpgradeUnderground(p geom.Pos, tier belts.Tier) bool {
	e, ok := g.tiles[p]
	if !ok || e.Kind != belts.KindUnderground {
		return false
	}
	pairPos, pair, ok := UndergroundPair(g, p, e)
	if !ok {
		return false
	}
	ue, up := e, pair
	ue.Tier, up.Tier = tier, tier
	g.tiles[p], g.tiles[pairPos] = ue, up
	if back, _, ok := UndergroundPair(g, pairPos, up); !ok || back != p {
		g.tiles[p], g.tiles[pairPos] = e, pair
		return false
	}
	return true
}

func (g *Grid) UpgradeSplitter(p geom.Pos, tier belts.Tier) bool {
	e, ok := g.tiles[p]
	if !ok || e.Kind != belts.KindSplitter || e.Tier == tier {
		return false
	}
	e.Tier = tier
	g.tiles[p] = e
	return true
}

// Bounds covers every occupied tile. An empty grid has empty bounds.
func (g *Grid) Bounds() geom.Bounds {
	if len(g.tiles) == 0 {
		return geom.Bounds{}
	}
	first := true
	var b geom.Bounds
	for p := range g.tiles {
		if first {
			b = geom.Bounds{Min: p, Max: geom.P(p.X+1, p.Y+1)}
			first = false
			continue
		}
		b.Min.X, b.Min.Y = min(b.Min.X, p.X), min(b.Min.Y, p.Y)
		b.Max.X, b.Max.Y = max(b.Max.X, p.X+1), max(b.Max.Y, p.Y+1)
	}
	return b
}

func (g *Grid) Clone() *Grid {
	c := NewGrid()
	for p, e := range g.tiles {
		c.tiles[p] = e
	}
	return c
}

func (g *Grid) Equal(o *Grid) bool {
	if len(g.tiles) != len(o.tiles) {
		return false
	}
	for p, e := range g.tiles {
		oe, ok := o.tiles[p]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}

// Transform maps every entity through t.
func (g *Grid) Transform(t geom.Transform) *Grid {
	out := NewGrid()
	for _, pl := range g.Entities() {
		e := pl.Entity
		if e.Connectable() {
			e.Dir = t.Direction(e.Dir)
		}
		out.tiles[t.Pos(pl.Pos)] = e
	}
	return out
}

// FlipAll builds the world a reversed drag would produce: every belt points
// back the way its items came in and undergrounds and loaders swap roles.
func (g *Grid) FlipAll() *Grid {
	out := NewGrid()
	for _, pl := range g.Entities() {
		e := pl.Entity
		switch e.Kind {
		case belts.KindBelt:
			in, _ := g.InputDirectionAt(pl.Pos)
			e.Dir = in.Opposite()
		case belts.KindSplitter:
			e.Dir = e.Dir.Opposite()
		case belts.KindUnderground, belts.KindLoader:
			e = e.Flip()
		}
		out.tiles[pl.Pos] = e
	}
	return out
}
