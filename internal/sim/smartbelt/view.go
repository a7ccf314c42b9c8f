package smartbelt

import (
	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/world"
)

// dragView addresses the world by ray index for one step direction.
type dragView struct {
	hv  historyView
	ray geom.Ray
	dir DragDirection
}

func newDragView(w world.Reader, ray geom.Ray, h *History, dir DragDirection) dragView {
	return dragView{hv: historyView{w: w, h: h}, ray: ray, dir: dir}
}

// beltDirection is the way placed belts face.
func (v dragView) beltDirection() geom.Direction { return v.ray.Dir }

// rayDirection is the way the cursor is moving.
func (v dragView) rayDirection() geom.Direction {
	if v.dir == Forward {
		return v.ray.Dir
	}
	return v.ray.Dir.Opposite()
}

func (v dragView) entity(i int) (belts.Entity, bool) { return v.hv.Get(v.ray.At(i)) }

func (v dragView) beltEntity(i int) (belts.Entity, bool) {
	e, ok := v.entity(i)
	if !ok || !e.Connectable() {
		return belts.Entity{}, false
	}
	return e, true
}

func (v dragView) beltWasCurved(i int, belt belts.Entity) bool {
	return world.BeltIsCurvedAt(v.hv, v.ray.At(i), belt)
}

// connectedToPrevious reports whether the tile at next and the tile behind
// it (in step direction) already form a belt link along the ray, in either
// belt direction.
func (v dragView) connectedToPrevious(next int) bool {
	var last, cur geom.Pos
	if v.dir == Forward {
		last, cur = v.ray.At(next-1), v.ray.At(next)
	} else {
		last, cur = v.ray.At(next), v.ray.At(next+1)
	}
	bd := v.beltDirection()
	if out, ok := v.hv.OutputDirectionAt(last); ok && out == bd {
		if in, ok := v.hv.InputDirectionAt(cur); ok && in == bd {
			return true
		}
	}
	back := bd.Opposite()
	in, ok := v.hv.InputDirectionAt(last)
	if !ok || in != back {
		return false
	}
	out, ok := v.hv.OutputDirectionAt(cur)
	return ok && out == back
}

func (v dragView) ugPairIndex(i int, ug belts.Entity) (int, bool) {
	p, _, ok := world.UndergroundPair(v.hv, v.ray.At(i), ug)
	if !ok {
		return 0, false
	}
	return v.ray.Index(p), true
}
