package smartbelt

import (
	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/world"
)

// ErrorSink receives drag errors as they happen.
type ErrorSink interface {
	HandleError(p geom.Pos, err ActionError)
}

type Option func(*LineDrag)

// WithErrorSink forwards every error to s in addition to collecting it.
func WithErrorSink(s ErrorSink) Option {
	return func(d *LineDrag) { d.sink = s }
}

// WithMaxSteps caps how many ray steps a single InterpolateTo may take.
func WithMaxSteps(n int) Option {
	return func(d *LineDrag) {
		if n > 0 {
			d.maxSteps = n
		}
	}
}

// LineDrag drives one drag gesture along a single ray. It is not safe for
// concurrent use.
type LineDrag struct {
	w    world.World
	ray  geom.Ray
	tier belts.Tier

	state   DragState
	lastPos int
	history History

	maxPlacement, minPlacement int
	furthestPlacementDir       DragDirection
	maxPos, minPos             int
	pivotDir                   DragDirection

	errors   []DragError
	sink     ErrorSink
	maxSteps int

	origin    geom.Pos
	originDir geom.Direction
	cursor    []geom.Pos
	rotations []int
	steps     int
}

// StartDrag places the first belt at start facing dir. If the tile cannot
// take a belt the drag starts in error recovery and reports
// entity_in_the_way at start.
func StartDrag(w world.World, tier belts.Tier, start geom.Pos, dir geom.Direction, opts ...Option) *LineDrag {
	d := &LineDrag{w: w, tier: tier, origin: start, originDir: dir}
	for _, o := range opts {
		o(d)
	}
	d.begin(start, dir, dir, true, nil)
	return d
}

func (d *LineDrag) begin(start geom.Pos, beltDir, firstBeltDir geom.Direction, allowFastReplace bool, carried *world.TileRecord) {
	d.ray = geom.NewRay(start, beltDir)
	d.lastPos = 0
	d.maxPlacement, d.minPlacement = 0, 0
	d.maxPos, d.minPos = 0, 0
	d.furthestPlacementDir, d.pivotDir = Forward, Forward
	d.history = History{}
	if carried != nil {
		d.history.Carry(*carried)
	}

	ok := d.w.CanPlaceOrFastReplace(start, beltDir, allowFastReplace)
	if ok {
		d.history.Record(world.TileRecord{Pos: start, Conn: world.ConnectionsAt(d.w, start)})
		world.PlaceBelt(d.w, start, firstBeltDir, d.tier)
	} else {
		d.report(start, ErrEntityInTheWay)
	}
	d.state = initialState(ok)
}

func (d *LineDrag) Ray() geom.Ray               { return d.ray }
func (d *LineDrag) Tier() belts.Tier            { return d.tier }
func (d *LineDrag) State() DragState            { return d.state }
func (d *LineDrag) Position() int               { return d.lastPos }
func (d *LineDrag) History() []world.TileRecord { return d.history.Records() }

// Errors returns every error reported so far, in order.
func (d *LineDrag) Errors() []DragError {
	return append([]DragError(nil), d.errors...)
}

// InterpolateTo steps the drag one tile at a time until it reaches the
// projection of p onto the ray. It returns the number of steps taken.
func (d *LineDrag) InterpolateTo(p geom.Pos) int {
	d.cursor = append(d.cursor, p)
	target := d.ray.Index(p)
	steps := 0
	for d.lastPos < target && d.underBudget(steps) {
		d.step(Forward)
		steps++
	}
	for d.lastPos > target && d.underBudget(steps) {
		d.step(Backward)
		steps++
	}
	d.updateFurthestPosition(d.lastPos)
	d.steps += steps
	return steps
}

func (d *LineDrag) underBudget(steps int) bool {
	return d.maxSteps <= 0 || steps < d.maxSteps
}

func (d *LineDrag) step(dir DragDirection) {
	ctx := &stepContext{
		world:             d.w,
		ray:               d.ray,
		tier:              d.tier,
		history:           &d.history,
		lastPos:           d.lastPos,
		dir:               dir,
		furthestPlacement: d.maxPlacement,
	}
	if dir == Backward {
		ctx.furthestPlacement = d.minPlacement
	}
	r := takeStep(d.state, ctx)
	next := ctx.next()

	if r.action.Kind != ActionNone {
		d.updateFurthestPlacement(next, dir)
	}
	d.apply(r.action, next, dir)
	if err, ok := deferredError(d.state, dir); ok {
		d.report(d.ray.At(next), err)
	}
	if r.err != "" {
		d.report(d.ray.At(next), r.err)
	}
	d.state = r.next
	d.lastPos = next
}

func (d *LineDrag) updateFurthestPlacement(i int, dir DragDirection) {
	switch {
	case dir == Forward && i > d.maxPlacement:
		d.maxPlacement = i
	case dir == Backward && i < d.minPlacement:
		d.minPlacement = i
	default:
		return
	}
	d.furthestPlacementDir = dir
	p := d.ray.At(i)
	d.history.Record(world.TileRecord{Pos: p, Conn: world.ConnectionsAt(d.w, p)})
}

func (d *LineDrag) updateFurthestPosition(i int) {
	if i > d.maxPos {
		d.maxPos = i
		d.pivotDir = Forward
	}
	if i < d.minPos {
		d.minPos = i
		d.pivotDir = Backward
	}
}

func (d *LineDrag) apply(a Action, next int, dir DragDirection) {
	at := d.ray.At(next)
	switch a.Kind {
	case ActionPlaceBelt:
		if rec, ok := world.PlaceBelt(d.w, at, d.ray.Dir, d.tier); ok {
			d.history.Record(rec)
		}
	case ActionCreateUnderground:
		world.PlaceUnderground(d.w, d.ray.At(a.InputPos), d.ray.Dir, dir == Forward, d.tier)
		if rec, ok := world.PlaceUnderground(d.w, d.ray.At(a.OutputPos), d.ray.Dir, dir == Backward, d.tier); ok {
			d.history.Record(rec)
		}
	case ActionExtendUnderground:
		d.w.Mine(d.ray.At(a.LastOutputPos))
		if rec, ok := world.PlaceUnderground(d.w, d.ray.At(a.NewOutputPos), d.ray.Dir, dir == Backward, d.tier); ok {
			d.history.Record(rec)
		}
	case ActionIntegrateUndergroundPair:
		ug, ok := d.w.Get(at)
		if !ok || ug.Kind != belts.KindUnderground {
			return
		}
		if ug.IsInput != (dir == Forward) {
			d.w.FlipUnderground(at)
		}
		if a.DoUpgrade && ug.Tier != d.tier {
			d.w.UpgradeUnderground(at, d.tier)
		}
	case ActionIntegrateSplitter:
		if s, ok := d.w.Get(at); ok && s.Kind == belts.KindSplitter && s.Tier != d.tier {
			d.w.UpgradeSplitter(at, d.tier)
		}
	}
}

func (d *LineDrag) report(p geom.Pos, err ActionError) {
	d.errors = append(d.errors, DragError{Pos: p, Err: err})
	if d.sink != nil {
		d.sink.HandleError(p, err)
	}
}

// RotationPivot is the furthest tile the cursor has reached, and whether it
// was reached moving backward.
func (d *LineDrag) RotationPivot() (geom.Pos, bool) {
	if d.pivotDir == Backward {
		return d.ray.At(d.minPos), true
	}
	return d.ray.At(d.maxPos), false
}

// FurthestPlacement is the ray index of the last tile the drag built on in
// the direction it most recently advanced.
func (d *LineDrag) FurthestPlacement() int { return d.furthestPlacementPos() }

func (d *LineDrag) furthestPlacementPos() int {
	if d.furthestPlacementDir == Backward {
		return d.minPlacement
	}
	return d.maxPlacement
}

// Rotate turns the drag toward a cursor that has left the ray. The drag
// restarts at its rotation pivot facing the cursor's side and continues to
// the cursor. It returns false, doing nothing, when the cursor is on the ray.
func (d *LineDrag) Rotate(cursor geom.Pos) bool {
	turn, ok := d.ray.RelativeDirection(cursor)
	if !ok {
		return false
	}
	pivot, backward := d.RotationPivot()
	oldDir := d.ray.Dir
	newDir, firstDir := turn, turn
	if backward {
		newDir, firstDir = turn.Opposite(), oldDir
	}

	var carried *world.TileRecord
	if rec, ok := d.history.Latest(); ok && d.furthestPlacementPos() == d.lastPos {
		carried = &rec
	}
	d.begin(pivot, newDir, firstDir, false, carried)
	d.rotations = append(d.rotations, len(d.cursor))
	d.InterpolateTo(cursor)
	return true
}

// Record summarises a drag for logs and indexes.
type Record struct {
	Start  geom.Pos       `json:"start"`
	Dir    geom.Direction `json:"dir"`
	Tier   string         `json:"tier"`
	Cursor []geom.Pos     `json:"cursor"`

	// Rotations indexes the Cursor entries that were passed to Rotate.
	Rotations []int `json:"rotations,omitempty"`

	Steps  int         `json:"steps"`
	Errors []DragError `json:"errors,omitempty"`
}

// Record returns where the drag began, every cursor position it was sent
// to and what it reported.
func (d *LineDrag) Record() Record {
	return Record{
		Start:     d.origin,
		Dir:       d.originDir,
		Tier:      d.tier.Belt,
		Cursor:    append([]geom.Pos(nil), d.cursor...),
		Rotations: append([]int(nil), d.rotations...),
		Steps:     d.steps,
		Errors:    d.Errors(),
	}
}

// ReplayRecord runs the drag rec describes against w with the given tier.
// Cursor entries listed in rec.Rotations are replayed through Rotate.
func ReplayRecord(w world.World, tier belts.Tier, rec Record, opts ...Option) *LineDrag {
	d := StartDrag(w, tier, rec.Start, rec.Dir, opts...)
	rotate := make(map[int]bool, len(rec.Rotations))
	for _, i := range rec.Rotations {
		rotate[i] = true
	}
	for i, p := range rec.Cursor {
		if rotate[i] {
			d.Rotate(p)
			continue
		}
		d.InterpolateTo(p)
	}
	return d
}
