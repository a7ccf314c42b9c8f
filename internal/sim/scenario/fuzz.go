package scenario

import (
	"fmt"
	"math/rand"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/world"
)

// FuzzConfig shapes random drag worlds. Entities go on row 1; rows 0 and 2
// only get belts feeding sideways into row-1 belts.
type FuzzConfig struct {
	Width   int
	Density float64
}

func DefaultFuzzConfig() FuzzConfig { return FuzzConfig{Width: 20, Density: 0.4} }

// FuzzCase is a random world plus the tier an eastward drag across row 1
// uses.
type FuzzCase struct {
	Seed  int64
	World *world.Grid
	Tier  belts.Tier
	MaxX  int
}

func (c FuzzCase) Start() geom.Pos { return geom.P(0, 1) }
func (c FuzzCase) End() geom.Pos   { return geom.P(c.MaxX+1, 1) }

// GenerateCase builds the case for seed. The same seed always yields the
// same case.
func GenerateCase(seed int64, cfg FuzzConfig, tiers []belts.Tier) FuzzCase {
	rng := rand.New(rand.NewSource(seed))
	g := world.NewGrid()
	for x := 1; x < cfg.Width; x++ {
		if rng.Float64() >= cfg.Density {
			continue
		}
		e := randomEntity(rng, tiers)
		// Undergrounds that would break an existing pair are skipped.
		_ = g.Set(geom.P(x, 1), e)
		if e.Kind != belts.KindBelt {
			continue
		}
		if rng.Float64() < 0.3 {
			_ = g.Set(geom.P(x, 0), belts.Belt(geom.South, randomTier(rng, tiers)))
		}
		if rng.Float64() < 0.3 {
			_ = g.Set(geom.P(x, 2), belts.Belt(geom.North, randomTier(rng, tiers)))
		}
	}
	return FuzzCase{Seed: seed, World: g, Tier: randomTier(rng, tiers), MaxX: cfg.Width - 1}
}

func randomEntity(rng *rand.Rand, tiers []belts.Tier) belts.Entity {
	kind := rng.Intn(6)
	dir := geom.Directions[rng.Intn(len(geom.Directions))]
	tier := randomTier(rng, tiers)
	switch kind {
	case 0:
		return belts.Belt(dir, tier)
	case 1:
		return belts.Underground(dir, rng.Intn(2) == 0, tier)
	case 2:
		return belts.Splitter(dir, tier)
	case 3:
		return belts.Loader(dir, rng.Intn(2) == 0, tier)
	case 4:
		return belts.Colliding("X")
	default:
		return belts.Impassable("#")
	}
}

func randomTier(rng *rand.Rand, tiers []belts.Tier) belts.Tier {
	return tiers[rng.Intn(len(tiers))]
}

// FuzzResult is the outcome of dragging across a FuzzCase.
type FuzzResult struct {
	Case              FuzzCase
	Before            *world.Grid
	After             *world.Grid
	Errors            []smartbelt.DragError
	FurthestPlacement int
	Record            smartbelt.Record

	// Worlds reached by replaying the same drag with jittery cursor paths.
	Wiggled     *world.Grid
	MegaWiggled *world.Grid
}

// RunFuzz drags east across row 1 of the case's world, directly and with the
// Wiggle and MegaWiggle cursor paths. A panic inside a drag is returned as an
// error together with the world it happened on.
func RunFuzz(c FuzzCase, opts ...smartbelt.Option) (res FuzzResult, err error) {
	res = FuzzResult{Case: c, Before: c.World, After: c.World.Clone()}
	defer func() {
		if r := recover(); r != nil {
			b := geom.Bounds{Max: geom.P(c.MaxX+1, 3)}
			err = fmt.Errorf("drag panicked: %v\nworld before:\n%s", r, PrintWorld(c.World, b, nil, belts.DefaultTiers()))
		}
	}()
	d := smartbelt.StartDrag(res.After, c.Tier, c.Start(), geom.East, opts...)
	d.InterpolateTo(c.End())
	res.Errors = d.Errors()
	res.FurthestPlacement = d.FurthestPlacement()
	res.Record = d.Record()

	ray := geom.NewRay(c.Start(), geom.East)
	end := ray.Index(c.End())
	res.Wiggled = c.World.Clone()
	drive(smartbelt.StartDrag(res.Wiggled, c.Tier, c.Start(), geom.East, opts...), ray, end, c.Start(), Wiggle)
	res.MegaWiggled = c.World.Clone()
	drive(smartbelt.StartDrag(res.MegaWiggled, c.Tier, c.Start(), geom.East, opts...), ray, end, c.Start(), MegaWiggle)
	return res, nil
}

// FuzzError is an invariant violation, optionally tied to a tile.
type FuzzError struct {
	Msg    string
	Pos    geom.Pos
	HasPos bool
}

func (e *FuzzError) Error() string {
	if e.HasPos {
		return fmt.Sprintf("%s (at %v)", e.Msg, e.Pos)
	}
	return e.Msg
}

// Check verifies the drag invariants on an eastward fuzz drag:
//   - the wiggled drags end in the same world as the direct one;
//   - a drag that reports no errors leaves one connected line that reaches
//     its furthest placement;
//   - every belt of that line has the drag tier;
//   - entities off the line are untouched and keep their curvature.
func (r FuzzResult) Check() error {
	if r.Wiggled != nil && !r.Wiggled.Equal(r.After) {
		return &FuzzError{Msg: "wiggle drag ended in a different world"}
	}
	if r.MegaWiggled != nil && !r.MegaWiggled.Equal(r.After) {
		return &FuzzError{Msg: "mega wiggle drag ended in a different world"}
	}
	for _, e := range r.Errors {
		if !smartbelt.IsKnownError(e.Err) {
			return &FuzzError{Msg: fmt.Sprintf("unknown error code %q", e.Err), Pos: e.Pos, HasPos: true}
		}
	}
	line := ScanBeltLine(r.After, r.Case.MaxX+2)
	if len(line) == 0 {
		if len(r.Errors) == 0 {
			return &FuzzError{Msg: "no belts placed and no errors reported"}
		}
		return nil
	}
	if len(r.Errors) != 0 {
		return nil
	}
	last := line[len(line)-1]
	if last.X != r.FurthestPlacement {
		return &FuzzError{Msg: fmt.Sprintf("no errors but belt line ends at x=%d instead of x=%d", last.X, r.FurthestPlacement), Pos: last, HasPos: true}
	}
	onLine := make(map[geom.Pos]bool, len(line))
	for _, p := range line {
		onLine[p] = true
		e, ok := r.After.Get(p)
		if ok && e.Kind != belts.KindLoader && e.Tier != r.Case.Tier {
			return &FuzzError{Msg: fmt.Sprintf("entity %v has tier %s, want %s", e, e.Tier.Belt, r.Case.Tier.Belt), Pos: p, HasPos: true}
		}
	}
	for _, pl := range r.Before.Entities() {
		if onLine[pl.Pos] {
			continue
		}
		after, ok := r.After.Get(pl.Pos)
		if !ok {
			// Replaced belts may be gone entirely.
			continue
		}
		if !after.Equal(pl.Entity) {
			return &FuzzError{Msg: fmt.Sprintf("entity changed: before %v after %v", pl.Entity, after), Pos: pl.Pos, HasPos: true}
		}
		if pl.Entity.Kind == belts.KindBelt {
			bin := belts.CurvedInputDirection(r.Before, pl.Pos, pl.Entity.Dir)
			ain := belts.CurvedInputDirection(r.After, pl.Pos, pl.Entity.Dir)
			if bin != ain {
				return &FuzzError{Msg: fmt.Sprintf("belt curvature changed: input %v became %v", bin, ain), Pos: pl.Pos, HasPos: true}
			}
		}
	}
	return nil
}

// ScanBeltLine follows the connected line east along row 1 from x=0,
// jumping through underground pairs. It stops at curved belts, loaders and
// breaks in the connection, and never visits more than limit tiles.
func ScanBeltLine(g *world.Grid, limit int) []geom.Pos {
	var out []geom.Pos
	p := geom.P(0, 1)
	for i := 0; i < limit; i++ {
		e, ok := g.Get(p)
		if !ok || !e.Connectable() {
			break
		}
		if p.X != 0 && !connectedEast(g, p) {
			break
		}
		switch e.Kind {
		case belts.KindBelt:
			if world.BeltIsCurvedAt(g, p, e) {
				return out
			}
			out = append(out, p)
		case belts.KindUnderground:
			out = append(out, p)
			pair, _, ok := world.UndergroundPair(g, p, e)
			if !ok {
				return out
			}
			out = append(out, pair)
			p = pair
		case belts.KindSplitter:
			out = append(out, p)
		default:
			return out
		}
		p = p.Add(geom.East.Vec())
	}
	return out
}

func connectedEast(g *world.Grid, cur geom.Pos) bool {
	last := cur.Sub(geom.East.Vec())
	if out, ok := g.OutputDirectionAt(last); ok && out == geom.East {
		if in, ok := g.InputDirectionAt(cur); ok && in == geom.East {
			return true
		}
	}
	out, ok := g.OutputDirectionAt(last)
	if !ok || out != geom.West {
		return false
	}
	in, ok := g.InputDirectionAt(cur)
	return ok && in == geom.West
}
