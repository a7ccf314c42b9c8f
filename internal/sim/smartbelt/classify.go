package smartbelt

import (
	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/world"
)

// TileType is how the drag treats the next tile on its ray.
type TileType uint8

const (
	TileUsable TileType = iota
	TileObstacle
	TileIntegratedSplitter
	TileIntegratedUnderground
	TileImpassable
)

func (t TileType) String() string {
	switch t {
	case TileUsable:
		return "usable"
	case TileObstacle:
		return "obstacle"
	case TileIntegratedSplitter:
		return "integrated_splitter"
	case TileIntegratedUnderground:
		return "integrated_underground"
	case TileImpassable:
		return "impassable"
	}
	return "unknown"
}

// classifier inspects the tile one step past lastPos.
type classifier struct {
	view    dragView
	tier    belts.Tier
	lastPos int

	canEnter bool
	// ugInput is the ray index an underground would start from, if any.
	ugInput    int
	hasUGInput bool
}

func (c *classifier) mult() int { return c.view.dir.Mult() }
func (c *classifier) next() int { return c.lastPos + c.mult() }

func (c *classifier) perpendicular(e belts.Entity) bool {
	return c.view.rayDirection().Axis() != e.Dir.Axis()
}

func (c *classifier) classify() TileType {
	e, ok := c.view.entity(c.next())
	if !ok {
		return TileUsable
	}
	switch e.Kind {
	case belts.KindBelt:
		return c.classifyBelt(e)
	case belts.KindUnderground:
		return c.classifyUnderground(e)
	case belts.KindSplitter:
		return c.classifySplitter(e)
	case belts.KindLoader:
		return c.classifyLoader(e)
	}
	return TileObstacle
}

func (c *classifier) classifyBelt(b belts.Entity) TileType {
	if c.view.beltWasCurved(c.next(), b) {
		if c.connectedIntegrated() {
			return TileImpassable
		}
		return TileObstacle
	}
	if c.perpendicular(b) || c.connectedAsObstacle() {
		return TileObstacle
	}
	if b.Dir == c.view.beltDirection() || c.connectedIntegrated() || c.segmentPassable(false, false) {
		return TileUsable
	}
	return TileObstacle
}

func (c *classifier) classifyUnderground(ug belts.Entity) TileType {
	if c.perpendicular(ug) || c.connectedAsObstacle() {
		return TileObstacle
	}
	enterable := c.view.rayDirection() == ug.ShapeDirection().Opposite()
	if _, paired := c.view.ugPairIndex(c.next(), ug); paired {
		if enterable && c.canEnter {
			return TileIntegratedUnderground
		}
		return TileObstacle
	}
	if enterable {
		return TileUsable
	}
	if ug.Tier == c.tier || c.segmentPassable(ug.Dir == c.view.beltDirection(), false) {
		return TileUsable
	}
	return TileObstacle
}

func (c *classifier) classifySplitter(s belts.Entity) TileType {
	matches := s.Dir == c.view.beltDirection()
	if c.connectedIntegrated() {
		if matches {
			return TileIntegratedSplitter
		}
		return TileImpassable
	}
	if !matches || !c.canEnter {
		return TileObstacle
	}
	if c.segmentPassable(true, true) {
		return TileIntegratedSplitter
	}
	return TileObstacle
}

func (c *classifier) classifyLoader(l belts.Entity) TileType {
	feedsIn := l.ShapeDirection() == c.view.rayDirection().Opposite()
	if feedsIn && l.IsInput == (c.view.dir == Forward) {
		return TileImpassable
	}
	return TileObstacle
}

func (c *classifier) connectedAsObstacle() bool {
	return !c.canEnter && c.view.connectedToPrevious(c.next())
}

func (c *classifier) connectedIntegrated() bool {
	return c.canEnter && c.view.connectedToPrevious(c.next())
}

// segmentPassable follows the existing belt run that starts past the next
// tile, up to the furthest tile an underground could reach, and decides
// whether the drag should weave into it instead of tunnelling under it.
// The scan index only moves forward and is capped, so the loop is bounded.
func (c *classifier) segmentPassable(directionMatches, skipSplitters bool) bool {
	if !c.hasUGInput {
		return true
	}
	m := c.mult()
	limit := c.ugInput + c.tier.UndergroundDistance*m
	scan := c.next() + m
	before := func(i int) bool { return i*m < limit*m }

	if skipSplitters {
		for before(scan) {
			e, ok := c.view.beltEntity(scan)
			if !ok || e.Kind != belts.KindSplitter || e.Dir != c.view.beltDirection() {
				break
			}
			scan += m
		}
	}

	for before(scan) {
		e, ok := c.view.beltEntity(scan)
		if !ok || !c.view.connectedToPrevious(scan) {
			break
		}
		switch e.Kind {
		case belts.KindBelt:
			if c.view.beltWasCurved(scan, e) {
				return false
			}
		case belts.KindUnderground:
			if e.Tier == c.tier {
				return true
			}
			pair, ok := c.view.ugPairIndex(scan, e)
			if !ok || pair*m <= scan*m {
				return true
			}
			scan = pair
		case belts.KindSplitter, belts.KindLoader:
			return directionMatches
		}
		scan += m
	}
	return true
}

// ClassifyNext classifies the tile after lastPos without any drag history.
// It is a pure function of the world and its arguments.
func ClassifyNext(w world.Reader, ray geom.Ray, tier belts.Tier, lastPos int, dir DragDirection, canEnter bool, ugInput *int) TileType {
	c := classifier{
		view:     newDragView(w, ray, nil, dir),
		tier:     tier,
		lastPos:  lastPos,
		canEnter: canEnter,
	}
	if ugInput != nil {
		c.ugInput, c.hasUGInput = *ugInput, true
	}
	return c.classify()
}
