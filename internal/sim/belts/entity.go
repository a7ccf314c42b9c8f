// Package belts models the entities a belt drag interacts with and how they
// connect to their neighbours.
package belts

import (
	"fmt"

	"smartbelt.ai/internal/sim/geom"
)

// Tier is a belt family. Tiers compare by value.
type Tier struct {
	Belt                string `json:"belt"`
	Underground         string `json:"underground"`
	Splitter            string `json:"splitter"`
	Loader              string `json:"loader"`
	UndergroundDistance int    `json:"underground_distance"`
}

var (
	Yellow = Tier{Belt: "transport-belt", Underground: "underground-belt", Splitter: "splitter", Loader: "loader", UndergroundDistance: 5}
	Red    = Tier{Belt: "fast-transport-belt", Underground: "fast-underground-belt", Splitter: "fast-splitter", Loader: "fast-loader", UndergroundDistance: 7}
	Blue   = Tier{Belt: "express-transport-belt", Underground: "express-underground-belt", Splitter: "express-splitter", Loader: "express-loader", UndergroundDistance: 9}
)

func DefaultTiers() []Tier { return []Tier{Yellow, Red, Blue} }

// TierIndex returns the position of t in tiers, or -1.
func TierIndex(tiers []Tier, t Tier) int {
	for i := range tiers {
		if tiers[i] == t {
			return i
		}
	}
	return -1
}

type Kind uint8

const (
	KindNone Kind = iota
	KindBelt
	KindUnderground
	KindSplitter
	KindLoader
	KindColliding
	KindImpassable
)

func (k Kind) String() string {
	switch k {
	case KindBelt:
		return "belt"
	case KindUnderground:
		return "underground"
	case KindSplitter:
		return "splitter"
	case KindLoader:
		return "loader"
	case KindColliding:
		return "colliding"
	case KindImpassable:
		return "impassable"
	default:
		return "none"
	}
}

// Entity is the closed set of things that can occupy a tile. Only the
// fields relevant to Kind are meaningful: IsInput for undergrounds and
// loaders, Name for obstacles.
type Entity struct {
	Kind    Kind           `json:"kind"`
	Dir     geom.Direction `json:"dir"`
	IsInput bool           `json:"is_input,omitempty"`
	Tier    Tier           `json:"tier"`
	Name    string         `json:"name,omitempty"`
}

func Belt(dir geom.Direction, tier Tier) Entity {
	return Entity{Kind: KindBelt, Dir: dir, Tier: tier}
}

func Underground(dir geom.Direction, isInput bool, tier Tier) Entity {
	return Entity{Kind: KindUnderground, Dir: dir, IsInput: isInput, Tier: tier}
}

func Splitter(dir geom.Direction, tier Tier) Entity {
	return Entity{Kind: KindSplitter, Dir: dir, Tier: tier}
}

func Loader(dir geom.Direction, isInput bool, tier Tier) Entity {
	return Entity{Kind: KindLoader, Dir: dir, IsInput: isInput, Tier: tier}
}

// Colliding is an entity belts cannot be built on.
func Colliding(name string) Entity { return Entity{Kind: KindColliding, Name: name} }

// Impassable is a tile that undergrounds cannot cross.
func Impassable(name string) Entity { return Entity{Kind: KindImpassable, Name: name} }

// Connectable reports whether the entity takes part in belt connections.
func (e Entity) Connectable() bool {
	switch e.Kind {
	case KindBelt, KindUnderground, KindSplitter, KindLoader:
		return true
	}
	return false
}

func (e Entity) HasOutput() bool {
	switch e.Kind {
	case KindBelt, KindSplitter:
		return true
	case KindUnderground, KindLoader:
		return !e.IsInput
	}
	return false
}

func (e Entity) HasBackwardsInput() bool {
	switch e.Kind {
	case KindBelt, KindSplitter:
		return true
	case KindUnderground, KindLoader:
		return e.IsInput
	}
	return false
}

func (e Entity) OutputDirection() (geom.Direction, bool) {
	if e.HasOutput() {
		return e.Dir, true
	}
	return 0, false
}

// PrimaryInputDirection is the input direction ignoring belt curving.
func (e Entity) PrimaryInputDirection() (geom.Direction, bool) {
	if e.HasBackwardsInput() {
		return e.Dir, true
	}
	return 0, false
}

// ShapeDirection is the way an underground or loader visually points,
// independent of its input/output role.
func (e Entity) ShapeDirection() geom.Direction {
	if (e.Kind == KindUnderground || e.Kind == KindLoader) && e.IsInput {
		return e.Dir.Opposite()
	}
	return e.Dir
}

// Flip swaps the role of an underground or loader while keeping its shape.
func (e Entity) Flip() Entity {
	if e.Kind != KindUnderground && e.Kind != KindLoader {
		return e
	}
	e.Dir = e.Dir.Opposite()
	e.IsInput = !e.IsInput
	return e
}

// Equal compares only the fields meaningful for the entity's kind.
func (e Entity) Equal(o Entity) bool {
	if e.Kind != o.Kind {
		return false
	}
	switch e.Kind {
	case KindBelt, KindSplitter:
		return e.Dir == o.Dir && e.Tier == o.Tier
	case KindUnderground, KindLoader:
		return e.Dir == o.Dir && e.IsInput == o.IsInput && e.Tier == o.Tier
	case KindColliding, KindImpassable:
		return e.Name == o.Name
	}
	return true
}

func (e Entity) String() string {
	switch e.Kind {
	case KindBelt, KindSplitter:
		return fmt.Sprintf("%s(%v,%s)", e.Kind, e.Dir, e.Tier.Belt)
	case KindUnderground, KindLoader:
		role := "out"
		if e.IsInput {
			role = "in"
		}
		return fmt.Sprintf("%s(%v,%s,%s)", e.Kind, e.Dir, role, e.Tier.Belt)
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Name)
	}
}
