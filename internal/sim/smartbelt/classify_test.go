package smartbelt

import (
	"testing"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
)

func TestClassifyNext(t *testing.T) {
	in := 0
	cases := []struct {
		name     string
		tiles    map[geom.Pos]belts.Entity
		dir      DragDirection
		canEnter bool
		want     TileType
	}{
		{"empty", row(), Forward, true, TileUsable},
		{"colliding", row(none, obst), Forward, true, TileObstacle},
		{"same direction belt", row(none, east), Forward, true, TileUsable},
		{"perpendicular belt", row(none, belts.Belt(geom.North, yellow)), Forward, true, TileObstacle},
		{"splitter", row(none, belts.Splitter(geom.East, yellow)), Forward, true, TileIntegratedSplitter},
		{"splitter while traversing", row(none, belts.Splitter(geom.East, yellow)), Forward, false, TileObstacle},
		{"reversed splitter", row(none, belts.Splitter(geom.West, yellow)), Forward, true, TileObstacle},
		{"paired underground", row(none, belts.Underground(geom.East, true, yellow), belts.Underground(geom.East, false, yellow)), Forward, true, TileIntegratedUnderground},
		{"unpaired entrance", row(none, belts.Underground(geom.East, true, yellow)), Forward, true, TileUsable},
		{"loader feeding in", row(none, belts.Loader(geom.East, true, yellow)), Forward, true, TileImpassable},
		{"impassable", row(none, belts.Impassable("#")), Forward, true, TileObstacle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := gridOf(t, tc.tiles)
			before := g.Clone()
			ray := geom.NewRay(geom.P(0, 0), geom.East)
			first := ClassifyNext(g, ray, yellow, 0, tc.dir, tc.canEnter, &in)
			second := ClassifyNext(g, ray, yellow, 0, tc.dir, tc.canEnter, &in)
			if first != tc.want {
				t.Fatalf("got %v want %v", first, tc.want)
			}
			if first != second {
				t.Fatalf("not idempotent: %v then %v", first, second)
			}
			if !g.Equal(before) {
				t.Fatalf("classification changed the world")
			}
		})
	}
}

func TestCanBuildUndergroundScan(t *testing.T) {
	cases := []struct {
		name  string
		tiles map[geom.Pos]belts.Entity
		want  ActionError
	}{
		{"clear", row(none, obst, obst), ""},
		{"impassable tile", row(none, belts.Impassable("#"), obst), ErrCannotTraversePastTile},
		{"same tier underground", row(none, belts.Underground(geom.West, true, yellow), obst), ErrCannotTraversePastEntity},
		{"other tier underground", row(none, belts.Underground(geom.West, true, belts.Red), obst), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := &stepContext{
				world:   gridOf(t, tc.tiles),
				ray:     geom.NewRay(geom.P(0, 0), geom.East),
				tier:    yellow,
				lastPos: 2,
				dir:     Forward,
			}
			if got := canBuildUnderground(ctx, 0, 0, false); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
	far := &stepContext{ray: geom.NewRay(geom.P(0, 0), geom.East), tier: yellow, lastPos: 5, dir: Forward}
	if got := canBuildUnderground(far, 0, 0, false); got != ErrTooFarToConnect {
		t.Fatalf("far=%q", got)
	}
}
