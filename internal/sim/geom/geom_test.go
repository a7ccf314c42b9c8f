package geom

import "testing"

func TestRayIndexAtInverse(t *testing.T) {
	origins := []Pos{P(0, 0), P(3, -2), P(-7, 11)}
	for _, o := range origins {
		for _, d := range Directions {
			r := NewRay(o, d)
			for i := -6; i <= 6; i++ {
				p := r.At(i)
				if got := r.Index(p); got != i {
					t.Fatalf("ray %v %v: Index(At(%d))=%d", o, d, i, got)
				}
			}
		}
	}
}

func TestRayIndexProjects(t *testing.T) {
	r := NewRay(P(2, 2), East)
	if got := r.Index(P(5, 9)); got != 3 {
		t.Fatalf("Index=%d want 3", got)
	}
	if got := r.Snap(P(5, 9)); got != P(5, 2) {
		t.Fatalf("Snap=%v want 5,2", got)
	}
	r = NewRay(P(0, 0), North)
	if got := r.Index(P(0, -4)); got != 4 {
		t.Fatalf("north Index=%d want 4", got)
	}
}

func TestRelativeDirection(t *testing.T) {
	cases := []struct {
		ray  Ray
		p    Pos
		want Direction
		ok   bool
	}{
		{NewRay(P(0, 0), East), P(4, 0), 0, false},
		{NewRay(P(0, 0), East), P(4, 1), South, true},
		{NewRay(P(0, 0), West), P(-2, -3), North, true},
		{NewRay(P(1, 1), North), P(0, -5), West, true},
		{NewRay(P(1, 1), South), P(2, 5), East, true},
	}
	for _, c := range cases {
		got, ok := c.ray.RelativeDirection(c.p)
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("RelativeDirection(%v,%v)=(%v,%v) want (%v,%v)", c.ray, c.p, got, ok, c.want, c.ok)
		}
	}
}

func TestDirectionBasics(t *testing.T) {
	for _, d := range Directions {
		if d.Opposite().Opposite() != d {
			t.Fatalf("double opposite of %v", d)
		}
		if d.RotateCW().RotateCCW() != d {
			t.Fatalf("cw/ccw of %v", d)
		}
		v := d.Vec().Add(d.Opposite().Vec())
		if v != (Vec{}) {
			t.Fatalf("%v + opposite = %v", d, v)
		}
		got, ok := DirectionFromChar(d.Char())
		if !ok || got != d {
			t.Fatalf("char roundtrip %v -> %c -> %v", d, d.Char(), got)
		}
	}
	if East.Axis() != AxisX || North.Axis() != AxisY {
		t.Fatalf("axis mismatch")
	}
}

func TestTransformsAreDistinctAndConsistent(t *testing.T) {
	seen := map[[2]Pos]bool{}
	at := P(2, 1)
	for _, tr := range AllTransforms() {
		// Moving one step in d must equal moving one step in the transformed d.
		for _, d := range Directions {
			a := tr.Pos(at.Add(d.Vec()))
			b := tr.Pos(at).Add(tr.Direction(d).Vec())
			if a != b {
				t.Fatalf("%v: direction %v maps to %v, positions %v vs %v", tr, d, tr.Direction(d), a, b)
			}
		}
		key := [2]Pos{tr.Pos(P(1, 0)), tr.Pos(P(0, 1))}
		if seen[key] {
			t.Fatalf("duplicate transform %v", tr)
		}
		seen[key] = true
	}
	if len(seen) != 8 {
		t.Fatalf("transforms=%d want 8", len(seen))
	}
}

func TestBoundsUnion(t *testing.T) {
	a := Bounds{Min: P(0, 0), Max: P(2, 1)}
	b := Bounds{Min: P(-1, 3), Max: P(1, 4)}
	u := a.Union(b)
	if u.Min != P(-1, 0) || u.Max != P(2, 4) {
		t.Fatalf("union=%v", u)
	}
	if got := (Bounds{}).Union(a); got != a {
		t.Fatalf("empty union=%v", got)
	}
	if !u.Contains(P(0, 2)) || u.Contains(P(2, 0)) {
		t.Fatalf("contains mismatch")
	}
}
