package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/world"
)

//go:embed cases.schema.json
var casesSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func casesSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("cases.schema.json", casesSchemaJSON)
	})
	return schema, schemaErr
}

// Serialized is one scenario as written in a cases file.
type Serialized struct {
	Name            string   `yaml:"name,omitempty"`
	Before          string   `yaml:"before"`
	After           string   `yaml:"after"`
	AfterForReverse string   `yaml:"after_for_reverse,omitempty"`
	ExpectedErrors  []string `yaml:"expected_errors,omitempty"`
	NotReversible   bool     `yaml:"not_reversible,omitempty"`
	ForwardBack     bool     `yaml:"forward_back,omitempty"`
}

type casesFile struct {
	Cases []Serialized `yaml:"cases"`
}

// Setup is a fully resolved drag: the world before, the expected world
// after, and where the drag starts and ends.
type Setup struct {
	Before   *world.Grid
	After    *world.Grid
	Leftmost geom.Pos
	Start    geom.Pos
	End      geom.Pos
	Dir      geom.Direction
	Tier     belts.Tier
	// ExpectedErrors holds "x,y:code" keys.
	ExpectedErrors map[string]struct{}
}

// Case is a parsed scenario.
type Case struct {
	Name            string
	Setup           Setup
	AfterForReverse *world.Grid
	NotReversible   bool
	ForwardBack     bool
}

// LoadFile reads a cases file, validates it against the schema and parses
// every case in it.
func LoadFile(path string, tiers []belts.Tier) ([]Case, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cases, err := ParseCases(b, tiers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cases, nil
}

// LoadDir loads every *.yaml file in dir, in name order.
func LoadDir(dir string, tiers []belts.Tier) (map[string][]Case, []string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)
	out := make(map[string][]Case, len(paths))
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		cs, err := LoadFile(p, tiers)
		if err != nil {
			return nil, nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), ".yaml")
		out[name] = cs
		names = append(names, name)
	}
	return out, names, nil
}

// ParseCases validates and parses the YAML content of a cases file.
func ParseCases(b []byte, tiers []belts.Tier) ([]Case, error) {
	if err := validateCases(b); err != nil {
		return nil, err
	}
	var f casesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	out := make([]Case, 0, len(f.Cases))
	for i, s := range f.Cases {
		c, err := s.Parse(tiers)
		if err != nil {
			return nil, fmt.Errorf("case %d (%s): %w", i, s.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func validateCases(b []byte) error {
	sch, err := casesSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	// Round-trip through JSON so the validator sees plain JSON values.
	j, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(j, &v); err != nil {
		return err
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Parse resolves a serialized case into a runnable one.
func (s Serialized) Parse(tiers []belts.Tier) (Case, error) {
	c := Case{Name: s.Name, NotReversible: s.NotReversible, ForwardBack: s.ForwardBack}
	if c.Name == "" {
		c.Name = "Unnamed"
	}
	setup, err := s.setup(tiers)
	if err != nil {
		return Case{}, err
	}
	c.Setup = setup
	if s.AfterForReverse != "" {
		g, _, err := ParseWorld(s.AfterForReverse, tiers)
		if err != nil {
			return Case{}, fmt.Errorf("after_for_reverse: %w", err)
		}
		c.AfterForReverse = g
	}
	return c, nil
}

func (s Serialized) setup(tiers []belts.Tier) (Setup, error) {
	before, beforeMarkers, err := ParseWorld(s.Before, tiers)
	if err != nil {
		return Setup{}, fmt.Errorf("before: %w", err)
	}
	after, afterMarkers, err := ParseWorld(s.After, tiers)
	if err != nil {
		return Setup{}, fmt.Errorf("after: %w", err)
	}
	if len(afterMarkers) != len(s.ExpectedErrors) {
		return Setup{}, fmt.Errorf("%d markers but %d expected errors", len(afterMarkers), len(s.ExpectedErrors))
	}
	expected := make(map[string]struct{}, len(afterMarkers))
	for i, p := range afterMarkers {
		expected[errorKey(p, smartbelt.ActionError(s.ExpectedErrors[i]))] = struct{}{}
	}

	afterEntities := after.Entities()
	var start geom.Pos
	switch len(beforeMarkers) {
	case 0:
		found := false
		for _, pl := range afterEntities {
			if pl.Pos.X == 0 {
				start, found = pl.Pos, true
				break
			}
		}
		if !found {
			return Setup{}, fmt.Errorf("no entity at x=0 to start from")
		}
	case 1:
		start = beforeMarkers[0]
	default:
		return Setup{}, fmt.Errorf("expected one start marker, got %d", len(beforeMarkers))
	}

	var first *belts.Entity
	for i := range afterEntities {
		pl := afterEntities[i]
		if pl.Pos.Y == start.Y && pl.Pos.X >= start.X && pl.Entity.Connectable() {
			first = &afterEntities[i].Entity
			break
		}
	}
	if first == nil {
		return Setup{}, fmt.Errorf("no belt in drag row %d", start.Y)
	}

	maxX := 0
	for _, pl := range append(before.Entities(), afterEntities...) {
		maxX = max(maxX, pl.Pos.X)
	}

	return Setup{
		Before:         before,
		After:          after,
		Leftmost:       geom.P(0, start.Y),
		Start:          start,
		End:            geom.P(maxX, start.Y),
		Dir:            first.Dir,
		Tier:           first.Tier,
		ExpectedErrors: expected,
	}, nil
}

func errorKey(p geom.Pos, err smartbelt.ActionError) string {
	return smartbelt.DragError{Pos: p, Err: err}.String()
}

func parseErrorKey(k string) (geom.Pos, smartbelt.ActionError, bool) {
	posPart, code, ok := strings.Cut(k, ":")
	if !ok {
		return geom.Pos{}, "", false
	}
	var p geom.Pos
	if _, err := fmt.Sscanf(posPart, "%d,%d", &p.X, &p.Y); err != nil {
		return geom.Pos{}, "", false
	}
	return p, smartbelt.ActionError(code), true
}

// Transform maps the whole setup through t.
func (s Setup) Transform(t geom.Transform) Setup {
	out := Setup{
		Before:         s.Before.Transform(t),
		After:          s.After.Transform(t),
		Leftmost:       t.Pos(s.Leftmost),
		Start:          t.Pos(s.Start),
		End:            t.Pos(s.End),
		Dir:            t.Direction(s.Dir),
		Tier:           s.Tier,
		ExpectedErrors: make(map[string]struct{}, len(s.ExpectedErrors)),
	}
	for k := range s.ExpectedErrors {
		p, code, ok := parseErrorKey(k)
		if !ok {
			continue
		}
		out.ExpectedErrors[errorKey(t.Pos(p), code)] = struct{}{}
	}
	return out
}

// Flip turns the setup into the same drag made in the opposite belt
// direction. afterForReverse, when set, replaces the expected world before
// it is flipped.
func (s Setup) Flip(afterForReverse *world.Grid) Setup {
	after := s.After
	if afterForReverse != nil {
		after = afterForReverse
	}
	out := s
	out.Before = s.Before.FlipAll()
	out.After = after.FlipAll()
	out.Dir = s.Dir.Opposite()
	return out
}
