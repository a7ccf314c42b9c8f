// Package smartbelt turns a belt drag across a line of tiles into belt,
// underground and splitter placements.
package smartbelt

import (
	"fmt"

	"smartbelt.ai/internal/sim/geom"
)

// ActionError is a tile-scoped problem reported during a drag. The drag
// always continues after one.
type ActionError string

const (
	ErrTooFarToConnect          ActionError = "too_far_to_connect"
	ErrEntityInTheWay           ActionError = "entity_in_the_way"
	ErrCannotUpgradeUnderground ActionError = "cannot_upgrade_underground"
	ErrCannotTraversePastEntity ActionError = "cannot_traverse_past_entity"
	ErrCannotTraversePastTile   ActionError = "cannot_traverse_past_tile"
)

var knownErrors = map[ActionError]struct{}{
	ErrTooFarToConnect:          {},
	ErrEntityInTheWay:           {},
	ErrCannotUpgradeUnderground: {},
	ErrCannotTraversePastEntity: {},
	ErrCannotTraversePastTile:   {},
}

func IsKnownError(e ActionError) bool {
	_, ok := knownErrors[e]
	return ok
}

// DragError is an ActionError attached to the tile it was detected at.
type DragError struct {
	Pos geom.Pos    `json:"pos"`
	Err ActionError `json:"err"`
}

// String renders the error as "x,y:code".
func (e DragError) String() string { return fmt.Sprintf("%d,%d:%s", e.Pos.X, e.Pos.Y, e.Err) }

// DragDirection is the way one step moves along the ray.
type DragDirection int8

const (
	Forward  DragDirection = 1
	Backward DragDirection = -1
)

func (d DragDirection) Mult() int { return int(d) }

func (d DragDirection) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

func swapIfBackwards(d DragDirection, a, b int) (int, int) {
	if d == Backward {
		return b, a
	}
	return a, b
}

type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionPlaceBelt
	ActionCreateUnderground
	ActionExtendUnderground
	ActionIntegrateUndergroundPair
	ActionIntegrateSplitter
)

func (k ActionKind) String() string {
	switch k {
	case ActionPlaceBelt:
		return "place_belt"
	case ActionCreateUnderground:
		return "create_underground"
	case ActionExtendUnderground:
		return "extend_underground"
	case ActionIntegrateUndergroundPair:
		return "integrate_underground_pair"
	case ActionIntegrateSplitter:
		return "integrate_splitter"
	default:
		return "none"
	}
}

// Action is what one step asks the world to do. Positions are ray indices.
type Action struct {
	Kind ActionKind

	// CreateUnderground.
	InputPos, OutputPos int
	// ExtendUnderground.
	LastOutputPos, NewOutputPos int
	// IntegrateUndergroundPair.
	DoUpgrade bool
}

func placeBelt() Action         { return Action{Kind: ActionPlaceBelt} }
func noAction() Action          { return Action{} }
func integrateSplitter() Action { return Action{Kind: ActionIntegrateSplitter} }

func createUnderground(in, out int) Action {
	return Action{Kind: ActionCreateUnderground, InputPos: in, OutputPos: out}
}

func extendUnderground(last, next int) Action {
	return Action{Kind: ActionExtendUnderground, LastOutputPos: last, NewOutputPos: next}
}

func integrateUndergroundPair(doUpgrade bool) Action {
	return Action{Kind: ActionIntegrateUndergroundPair, DoUpgrade: doUpgrade}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionCreateUnderground:
		return fmt.Sprintf("%s(%d,%d)", a.Kind, a.InputPos, a.OutputPos)
	case ActionExtendUnderground:
		return fmt.Sprintf("%s(%d,%d)", a.Kind, a.LastOutputPos, a.NewOutputPos)
	case ActionIntegrateUndergroundPair:
		return fmt.Sprintf("%s(upgrade=%t)", a.Kind, a.DoUpgrade)
	default:
		return a.Kind.String()
	}
}
