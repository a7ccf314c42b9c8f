package belts

import (
	"testing"

	"smartbelt.ai/internal/sim/geom"
)

func TestEntityCapabilities(t *testing.T) {
	cases := []struct {
		name      string
		e         Entity
		output    bool
		backInput bool
		shape     geom.Direction
	}{
		{"belt", Belt(geom.East, Yellow), true, true, geom.East},
		{"ug input", Underground(geom.East, true, Yellow), false, true, geom.West},
		{"ug output", Underground(geom.East, false, Yellow), true, false, geom.East},
		{"splitter", Splitter(geom.North, Red), true, true, geom.North},
		{"loader input", Loader(geom.South, true, Blue), false, true, geom.North},
		{"loader output", Loader(geom.South, false, Blue), true, false, geom.South},
		{"colliding", Colliding("X"), false, false, geom.North},
		{"impassable", Impassable("#"), false, false, geom.North},
	}
	for _, c := range cases {
		if got := c.e.HasOutput(); got != c.output {
			t.Fatalf("%s: HasOutput=%v want %v", c.name, got, c.output)
		}
		if got := c.e.HasBackwardsInput(); got != c.backInput {
			t.Fatalf("%s: HasBackwardsInput=%v want %v", c.name, got, c.backInput)
		}
		if got := c.e.ShapeDirection(); got != c.shape {
			t.Fatalf("%s: ShapeDirection=%v want %v", c.name, got, c.shape)
		}
	}
}

func TestFlipKeepsShape(t *testing.T) {
	for _, d := range geom.Directions {
		for _, in := range []bool{true, false} {
			ug := Underground(d, in, Red)
			f := ug.Flip()
			if f.ShapeDirection() != ug.ShapeDirection() {
				t.Fatalf("flip changed shape of %v", ug)
			}
			if f.IsInput == ug.IsInput {
				t.Fatalf("flip kept role of %v", ug)
			}
			if !f.Flip().Equal(ug) {
				t.Fatalf("double flip of %v = %v", ug, f.Flip())
			}
		}
	}
	b := Belt(geom.East, Yellow)
	if !b.Flip().Equal(b) {
		t.Fatalf("flip of belt changed it")
	}
}

func TestEqual(t *testing.T) {
	if Belt(geom.East, Yellow).Equal(Belt(geom.East, Red)) {
		t.Fatalf("different tiers compare equal")
	}
	if Underground(geom.East, true, Yellow).Equal(Underground(geom.East, false, Yellow)) {
		t.Fatalf("different roles compare equal")
	}
	if !Colliding("X").Equal(Colliding("X")) {
		t.Fatalf("same obstacle differs")
	}
	if Belt(geom.East, Yellow).Equal(Splitter(geom.East, Yellow)) {
		t.Fatalf("different kinds compare equal")
	}
}

type outputs map[geom.Pos]geom.Direction

func (o outputs) OutputDirectionAt(p geom.Pos) (geom.Direction, bool) {
	d, ok := o[p]
	return d, ok
}

func TestCurvedInputDirection(t *testing.T) {
	at := geom.P(5, 5)
	cases := []struct {
		name string
		out  outputs
		want geom.Direction
		deps int
	}{
		{"no feeders", outputs{}, geom.East, 0},
		{"straight feeder", outputs{geom.P(4, 5): geom.East, geom.P(5, 4): geom.South}, geom.East, 1},
		{"from north", outputs{geom.P(5, 4): geom.South}, geom.South, 1},
		{"from south", outputs{geom.P(5, 6): geom.North}, geom.North, 1},
		{"both sides", outputs{geom.P(5, 4): geom.South, geom.P(5, 6): geom.North}, geom.East, 2},
		{"side not feeding", outputs{geom.P(5, 4): geom.East}, geom.East, 0},
	}
	for _, c := range cases {
		if got := CurvedInputDirection(c.out, at, geom.East); got != c.want {
			t.Fatalf("%s: input=%v want %v", c.name, got, c.want)
		}
		if got := CurveDependencies(c.out, at, geom.East); len(got) != c.deps {
			t.Fatalf("%s: deps=%v want %d", c.name, got, c.deps)
		}
	}
}

func TestIsCurved(t *testing.T) {
	if !IsCurved(geom.South, true, geom.East) {
		t.Fatalf("side input should be curved")
	}
	if IsCurved(geom.East, true, geom.East) || IsCurved(geom.South, false, geom.East) {
		t.Fatalf("straight or missing input reported curved")
	}
}

func TestTierIndex(t *testing.T) {
	tiers := DefaultTiers()
	if TierIndex(tiers, Red) != 1 || TierIndex(tiers, Tier{Belt: "x"}) != -1 {
		t.Fatalf("TierIndex mismatch")
	}
}
