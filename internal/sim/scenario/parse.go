// Package scenario reads and runs text-grid drag scenarios.
//
// A grid is written one row per line with whitespace-separated words. The
// word index is x and the line index is y. Each word is one of:
//
//	_     empty tile
//	X     colliding entity
//	#     impassable tile
//	[n]d[t]
//
// where n is an optional 1-based tier, d is one of ^ > v < and t is empty or
// b (belt), i/o (underground input/output), s (splitter) or I/O (loader
// input/output). Any number of leading * mark the tile.
package scenario

import (
	"fmt"
	"strings"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/world"
)

// ParseWorld builds a grid from its text form and returns the marked tiles
// in reading order.
func ParseWorld(input string, tiers []belts.Tier) (*world.Grid, []geom.Pos, error) {
	g := world.NewGrid()
	var markers []geom.Pos
	for y, line := range strings.Split(input, "\n") {
		for x, word := range strings.Fields(line) {
			p := geom.P(x, y)
			for strings.HasPrefix(word, "*") {
				markers = append(markers, p)
				word = word[1:]
			}
			e, ok, err := parseWord(word, tiers)
			if err != nil {
				return nil, nil, fmt.Errorf("tile %v: %w", p, err)
			}
			if !ok {
				continue
			}
			if err := g.Set(p, e); err != nil {
				return nil, nil, err
			}
		}
	}
	return g, markers, nil
}

func parseWord(word string, tiers []belts.Tier) (belts.Entity, bool, error) {
	switch word {
	case "", "_":
		return belts.Entity{}, false, nil
	case "X":
		return belts.Colliding("X"), true, nil
	case "#":
		return belts.Impassable("#"), true, nil
	}

	i, n := 0, 1
	if word[0] >= '1' && word[0] <= '9' {
		n = int(word[0] - '0')
		i++
	}
	if n > len(tiers) {
		return belts.Entity{}, false, fmt.Errorf("invalid tier %d in %q", n, word)
	}
	tier := tiers[n-1]

	if i >= len(word) {
		return belts.Entity{}, false, fmt.Errorf("missing direction in %q", word)
	}
	dir, ok := geom.DirectionFromChar(word[i])
	if !ok {
		return belts.Entity{}, false, fmt.Errorf("invalid direction %q in %q", word[i], word)
	}
	i++

	kind := ""
	if i < len(word) {
		kind = word[i:]
	}
	switch kind {
	case "", "b":
		return belts.Belt(dir, tier), true, nil
	case "i", "o":
		return belts.Underground(dir, kind == "i", tier), true, nil
	case "s":
		return belts.Splitter(dir, tier), true, nil
	case "I", "O":
		return belts.Loader(dir, kind == "I", tier), true, nil
	}
	return belts.Entity{}, false, fmt.Errorf("invalid entity type %q in %q", kind, word)
}

// PrintWorld renders the tiles inside b. Marked tiles get a leading *.
func PrintWorld(g *world.Grid, b geom.Bounds, markers []geom.Pos, tiers []belts.Tier) string {
	if b.Empty() {
		return "<Empty>"
	}
	marked := make(map[geom.Pos]bool, len(markers))
	for _, m := range markers {
		marked[m] = true
	}
	lines := make([]string, 0, b.Max.Y-b.Min.Y)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		var sb strings.Builder
		for x := b.Min.X; x < b.Max.X; x++ {
			p := geom.P(x, y)
			word := "_"
			if e, ok := g.Get(p); ok {
				word = formatEntity(e, tiers)
				if marked[p] {
					word = "*" + word
				}
			}
			fmt.Fprintf(&sb, "%-4s", word)
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return strings.Join(lines, "\n")
}

func formatEntity(e belts.Entity, tiers []belts.Tier) string {
	var suffix string
	switch e.Kind {
	case belts.KindColliding:
		return "X"
	case belts.KindImpassable:
		return "#"
	case belts.KindBelt:
	case belts.KindUnderground:
		suffix = "o"
		if e.IsInput {
			suffix = "i"
		}
	case belts.KindSplitter:
		suffix = "s"
	case belts.KindLoader:
		suffix = "O"
		if e.IsInput {
			suffix = "I"
		}
	default:
		return "?"
	}
	word := string(e.Dir.Char()) + suffix
	if n := belts.TierIndex(tiers, e.Tier) + 1; n > 1 {
		word = fmt.Sprint(n) + word
	}
	return word
}
