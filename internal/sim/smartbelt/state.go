package smartbelt

import (
	"fmt"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/world"
)

type StateKind uint8

const (
	StateOverBelt StateKind = iota
	StateOverSplitter
	StateBuildingUnderground
	StatePassThrough
	StateOverImpassable
	StateErrorRecovery
)

func (k StateKind) String() string {
	switch k {
	case StateOverBelt:
		return "over_belt"
	case StateOverSplitter:
		return "over_splitter"
	case StateBuildingUnderground:
		return "building_underground"
	case StatePassThrough:
		return "pass_through"
	case StateOverImpassable:
		return "over_impassable"
	case StateErrorRecovery:
		return "error_recovery"
	}
	return "unknown"
}

// DragState is the state machine's position. Which fields are meaningful
// depends on Kind:
//
//	BuildingUnderground: InputPos, OutputPos (if HasOutput), Dir
//	PassThrough:         Left, Right
//	OverImpassable:      Dir
type DragState struct {
	Kind      StateKind
	InputPos  int
	OutputPos int
	HasOutput bool
	Dir       DragDirection
	Left      int
	Right     int
}

func overBelt() DragState      { return DragState{Kind: StateOverBelt} }
func overSplitter() DragState  { return DragState{Kind: StateOverSplitter} }
func errorRecovery() DragState { return DragState{Kind: StateErrorRecovery} }

func overImpassable(d DragDirection) DragState {
	return DragState{Kind: StateOverImpassable, Dir: d}
}

func passThrough(left, right int) DragState {
	return DragState{Kind: StatePassThrough, Left: left, Right: right}
}

func buildingUnderground(in int, out int, hasOut bool, d DragDirection) DragState {
	return DragState{Kind: StateBuildingUnderground, InputPos: in, OutputPos: out, HasOutput: hasOut, Dir: d}
}

func initialState(placed bool) DragState {
	if placed {
		return overBelt()
	}
	return errorRecovery()
}

func (s DragState) String() string {
	switch s.Kind {
	case StateBuildingUnderground:
		if s.HasOutput {
			return fmt.Sprintf("%s(%d,%d,%s)", s.Kind, s.InputPos, s.OutputPos, s.Dir)
		}
		return fmt.Sprintf("%s(%d,-,%s)", s.Kind, s.InputPos, s.Dir)
	case StatePassThrough:
		return fmt.Sprintf("%s(%d,%d)", s.Kind, s.Left, s.Right)
	case StateOverImpassable:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Dir)
	}
	return s.Kind.String()
}

type endKind uint8

const (
	endBelt endKind = iota
	endIntegratedOutput
	endExtendableUnderground
	endTraversingObstacle
	endError
)

// endShape is what the drag currently ends in, derived from the state and
// the direction of the next step.
type endShape struct {
	kind      endKind
	inputPos  int
	outputPos int
	hasOutput bool
}

// stepContext is everything one step reads.
type stepContext struct {
	world   world.Reader
	ray     geom.Ray
	tier    belts.Tier
	history *History
	lastPos int
	dir     DragDirection
	// furthestPlacement is the furthest ray index this drag has acted on in dir.
	furthestPlacement int
}

func (c *stepContext) next() int { return c.lastPos + c.dir.Mult() }

type stepResult struct {
	action Action
	next   DragState
	err    ActionError
}

// takeStep is the pure transition function of the drag state machine.
func takeStep(s DragState, ctx *stepContext) stepResult {
	end, ok := dragEnd(s, ctx.lastPos, ctx.dir)
	if !ok {
		return stepResult{action: noAction(), next: s}
	}

	view := newDragView(ctx.world, ctx.ray, ctx.history, ctx.dir)
	cl := classifier{
		view:     view,
		tier:     ctx.tier,
		lastPos:  ctx.lastPos,
		canEnter: end.kind != endTraversingObstacle,
	}
	cl.ugInput, cl.hasUGInput = undergroundInput(end, ctx.lastPos)

	switch cl.classify() {
	case TileUsable:
		if end.kind == endTraversingObstacle {
			return placeUnderground(ctx, end.inputPos, end.outputPos, end.hasOutput)
		}
		return stepResult{action: placeBelt(), next: overBelt()}
	case TileObstacle:
		return handleObstacle(end, ctx)
	case TileIntegratedSplitter:
		return stepResult{action: integrateSplitter(), next: overSplitter()}
	case TileImpassable:
		if end.kind == endError {
			return stepResult{action: noAction(), next: errorRecovery()}
		}
		return stepResult{action: noAction(), next: overImpassable(ctx.dir)}
	default:
		return integratePair(ctx, view)
	}
}

// deferredError is reported when a drag resumes in the direction that was
// blocked by an impassable entity.
func deferredError(s DragState, d DragDirection) (ActionError, bool) {
	if s.Kind == StateOverImpassable && s.Dir == d {
		return ErrCannotTraversePastEntity, true
	}
	return "", false
}

// dragEnd returns false when the step should leave the state untouched.
func dragEnd(s DragState, lastPos int, d DragDirection) (endShape, bool) {
	switch s.Kind {
	case StateOverBelt:
		return endShape{kind: endBelt}, true
	case StateOverSplitter:
		return endShape{kind: endIntegratedOutput}, true
	case StateOverImpassable, StateErrorRecovery:
		return endShape{kind: endError}, true
	case StateBuildingUnderground:
		if d != s.Dir {
			// Backing out of an underground only resolves at its start.
			if s.HasOutput {
				if lastPos == s.InputPos {
					return endShape{kind: endIntegratedOutput}, true
				}
				return endShape{}, false
			}
			if lastPos+d.Mult() == s.InputPos {
				return endShape{kind: endBelt}, true
			}
			return endShape{}, false
		}
		if s.HasOutput && s.OutputPos == lastPos {
			return endShape{kind: endExtendableUnderground, inputPos: s.InputPos}, true
		}
		return endShape{kind: endTraversingObstacle, inputPos: s.InputPos, outputPos: s.OutputPos, hasOutput: s.HasOutput}, true
	case StatePassThrough:
		var between bool
		if d == Forward {
			between = lastPos < s.Right
		} else {
			between = lastPos > s.Left
		}
		if between {
			return endShape{}, false
		}
		return endShape{kind: endIntegratedOutput}, true
	}
	return endShape{kind: endError}, true
}

func undergroundInput(end endShape, lastPos int) (int, bool) {
	switch end.kind {
	case endBelt:
		return lastPos, true
	case endExtendableUnderground, endTraversingObstacle:
		return end.inputPos, true
	}
	return 0, false
}

func handleObstacle(end endShape, ctx *stepContext) stepResult {
	r := stepResult{action: noAction()}
	switch end.kind {
	case endBelt:
		r.next = buildingUnderground(ctx.lastPos, 0, false, ctx.dir)
	case endExtendableUnderground:
		r.next = buildingUnderground(end.inputPos, ctx.lastPos, true, ctx.dir)
	case endTraversingObstacle:
		r.next = buildingUnderground(end.inputPos, end.outputPos, end.hasOutput, ctx.dir)
	case endIntegratedOutput:
		r.next = errorRecovery()
		r.err = ErrEntityInTheWay
	default:
		r.next = errorRecovery()
	}
	return r
}

func placeUnderground(ctx *stepContext, inputPos, lastOutput int, extending bool) stepResult {
	next := ctx.next()
	if err := canBuildUnderground(ctx, inputPos, lastOutput, extending); err != "" {
		return stepResult{action: placeBelt(), next: overBelt(), err: err}
	}
	a := createUnderground(inputPos, next)
	if extending {
		a = extendUnderground(lastOutput, next)
	}
	return stepResult{action: a, next: buildingUnderground(inputPos, next, true, ctx.dir)}
}

func integratePair(ctx *stepContext, view dragView) stepResult {
	next := ctx.next()
	ug, _ := view.entity(next)
	out, ok := view.ugPairIndex(next, ug)
	if !ok {
		// The classifier only reports paired undergrounds.
		return stepResult{action: noAction(), next: errorRecovery()}
	}

	r := stepResult{}
	needsUpgrade := ug.Tier != ctx.tier
	canUpgrade := !needsUpgrade || canUpgradeUnderground(ctx, next, out)
	r.action = integrateUndergroundPair(needsUpgrade && canUpgrade)
	if !canUpgrade {
		r.err = ErrCannotUpgradeUnderground
	}

	if out == ctx.furthestPlacement {
		// The pair ends where this drag last built: it is our own tunnel.
		r.next = buildingUnderground(next, out, true, ctx.dir)
		return r
	}
	left, right := swapIfBackwards(ctx.dir, next, out)
	r.next = passThrough(left, right)
	return r
}

func sameTierOnAxis(ctx *stepContext, e belts.Entity) bool {
	return e.Kind == belts.KindUnderground && e.Dir.Axis() == ctx.ray.Dir.Axis() && e.Tier == ctx.tier
}

// canBuildUnderground checks that an underground from inputPos can surface
// at the next tile. Only the tiles the new span adds are scanned: those past
// the current output when extending, otherwise everything past the input.
func canBuildUnderground(ctx *stepContext, inputPos, lastOutput int, extending bool) ActionError {
	next := ctx.next()
	if geom.AbsInt(next-inputPos) > ctx.tier.UndergroundDistance {
		return ErrTooFarToConnect
	}
	from := inputPos
	if extending {
		from = lastOutput
	}
	m := ctx.dir.Mult()
	for i := from + m; i*m < next*m; i += m {
		e, ok := ctx.world.Get(ctx.ray.At(i))
		switch {
		case !ok:
		case e.Kind == belts.KindImpassable:
			return ErrCannotTraversePastTile
		case sameTierOnAxis(ctx, e):
			return ErrCannotTraversePastEntity
		}
	}
	return ""
}

func canUpgradeUnderground(ctx *stepContext, inputPos, outputPos int) bool {
	if geom.AbsInt(outputPos-inputPos) > ctx.tier.UndergroundDistance {
		return false
	}
	lo, hi := min(inputPos, outputPos), max(inputPos, outputPos)
	for i := lo + 1; i <= hi-1; i++ {
		if e, ok := ctx.world.Get(ctx.ray.At(i)); ok && sameTierOnAxis(ctx, e) {
			return false
		}
	}
	return true
}
