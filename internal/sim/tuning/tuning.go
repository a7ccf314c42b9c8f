package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"smartbelt.ai/internal/sim/belts"
)

type Tuning struct {
	BeltTiers   []TierSpec `yaml:"belt_tiers"`
	DefaultTier string     `yaml:"default_tier"`

	// MaxDragSteps caps the ray steps a single interpolation may take.
	MaxDragSteps int `yaml:"max_drag_steps"`
}

type TierSpec struct {
	Belt                string `yaml:"belt"`
	Underground         string `yaml:"underground"`
	Splitter            string `yaml:"splitter"`
	Loader              string `yaml:"loader"`
	UndergroundDistance int    `yaml:"underground_distance"`
}

// Load reads a tuning file. An empty path returns the built-in defaults.
func Load(path string) (Tuning, error) {
	t := defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	t = Tuning{}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Default() Tuning { return defaults() }

func defaults() Tuning {
	t := Tuning{MaxDragSteps: 4096}
	for _, b := range belts.DefaultTiers() {
		t.BeltTiers = append(t.BeltTiers, TierSpec(b))
	}
	t.DefaultTier = t.BeltTiers[0].Belt
	return t
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.MaxDragSteps == 0 {
		t.MaxDragSteps = 4096
	}
	for i := range t.BeltTiers {
		s := &t.BeltTiers[i]
		s.Belt = strings.TrimSpace(s.Belt)
		if s.Underground == "" && s.Belt != "" {
			s.Underground = strings.TrimSuffix(s.Belt, "transport-belt") + "underground-belt"
		}
	}
	if strings.TrimSpace(t.DefaultTier) == "" && len(t.BeltTiers) > 0 {
		t.DefaultTier = t.BeltTiers[0].Belt
	}
}

func (t Tuning) Validate() error {
	if len(t.BeltTiers) == 0 {
		return fmt.Errorf("belt_tiers must not be empty")
	}
	seen := map[string]bool{}
	for i, s := range t.BeltTiers {
		if s.Belt == "" {
			return fmt.Errorf("belt_tiers[%d] belt must not be empty", i)
		}
		if seen[s.Belt] {
			return fmt.Errorf("duplicate belt tier: %s", s.Belt)
		}
		seen[s.Belt] = true
		if s.UndergroundDistance < 1 {
			return fmt.Errorf("belt tier %s underground_distance must be >= 1", s.Belt)
		}
	}
	if t.MaxDragSteps < 1 {
		return fmt.Errorf("max_drag_steps must be >= 1")
	}
	if !seen[t.DefaultTier] {
		return fmt.Errorf("default_tier %q not found in belt_tiers", t.DefaultTier)
	}
	return nil
}

// Tiers converts the configured tiers in file order.
func (t Tuning) Tiers() []belts.Tier {
	out := make([]belts.Tier, 0, len(t.BeltTiers))
	for _, s := range t.BeltTiers {
		out = append(out, belts.Tier(s))
	}
	return out
}

// Tier looks a tier up by its belt name.
func (t Tuning) Tier(name string) (belts.Tier, bool) {
	for _, s := range t.BeltTiers {
		if s.Belt == name {
			return belts.Tier(s), true
		}
	}
	return belts.Tier{}, false
}
