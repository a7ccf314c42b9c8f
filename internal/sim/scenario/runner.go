package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/world"
)

// Variant is the cursor path a scenario is replayed with.
type Variant uint8

const (
	Normal Variant = iota
	// Wiggle moves two tiles ahead, then one back, until the end.
	Wiggle
	// MegaWiggle reaches ever further from the start and returns to it each time.
	MegaWiggle
	// ForwardBack drags to the end, then back to the leftmost tile of the row.
	ForwardBack
)

func (v Variant) String() string {
	switch v {
	case Wiggle:
		return "wiggle"
	case MegaWiggle:
		return "mega_wiggle"
	case ForwardBack:
		return "forward_back"
	default:
		return "normal"
	}
}

// errorSet collects drag errors as "x,y:code" keys.
type errorSet map[string]struct{}

func (s errorSet) HandleError(p geom.Pos, err smartbelt.ActionError) {
	s[errorKey(p, err)] = struct{}{}
}

// Run replays the setup's drag with the given cursor path on a copy of the
// before world.
func Run(s Setup, v Variant, opts ...smartbelt.Option) (*world.Grid, map[string]struct{}, error) {
	ray := geom.NewRay(s.Start, s.Dir)
	end := ray.Index(s.End)
	if ray.At(end) != s.End {
		return nil, nil, fmt.Errorf("end %v is not on the drag ray from %v facing %v", s.End, s.Start, s.Dir)
	}

	result := s.Before.Clone()
	errs := errorSet{}
	opts = append(opts, smartbelt.WithErrorSink(errs))
	d := smartbelt.StartDrag(result, s.Tier, s.Start, s.Dir, opts...)
	drive(d, ray, end, s.Leftmost, v)
	return result, errs, nil
}

// drive moves the cursor of d from ray position 0 to end along the path v
// describes. leftmost is only used by ForwardBack.
func drive(d *smartbelt.LineDrag, ray geom.Ray, end int, leftmost geom.Pos, v Variant) {
	switch v {
	case Wiggle:
		cur := 0
		for cur+2 < end {
			d.InterpolateTo(ray.At(cur + 2))
			d.InterpolateTo(ray.At(cur + 1))
			cur++
		}
		if cur != end {
			d.InterpolateTo(ray.At(end))
		}
	case MegaWiggle:
		for n := 1; n < end; n++ {
			d.InterpolateTo(ray.At(n))
			d.InterpolateTo(ray.At(0))
		}
		d.InterpolateTo(ray.At(end))
	case ForwardBack:
		d.InterpolateTo(ray.At(end))
		d.InterpolateTo(leftmost)
	default:
		d.InterpolateTo(ray.At(end))
	}
}

// Check runs the setup and compares the outcome with its expectations. The
// wiggle variants only require the expected errors to be among the reported
// ones, and no errors at all when none are expected.
func Check(s Setup, v Variant, tiers []belts.Tier) error {
	got, errs, err := Run(s, v)
	if err != nil {
		return err
	}
	var errorsMatch bool
	if v == Wiggle || v == MegaWiggle {
		if len(s.ExpectedErrors) == 0 {
			errorsMatch = len(errs) == 0
		} else {
			errorsMatch = isSubset(s.ExpectedErrors, errs)
		}
	} else {
		errorsMatch = len(errs) == len(s.ExpectedErrors) && isSubset(s.ExpectedErrors, errs)
	}
	if got.Equal(s.After) && errorsMatch {
		return nil
	}

	b := s.Before.Bounds().Union(s.After.Bounds())
	var sb strings.Builder
	sb.WriteString("\nBefore:\n\n")
	sb.WriteString(PrintWorld(s.Before, b, nil, tiers))
	sb.WriteString("\n\nExpected:\n\n")
	sb.WriteString(PrintWorld(s.After, b, errorPositions(s.ExpectedErrors), tiers))
	sb.WriteString("\n\nGot:\n\n")
	sb.WriteString(PrintWorld(got, b, errorPositions(errs), tiers))
	if !errorsMatch {
		fmt.Fprintf(&sb, "\n\nExpected errors:\n%v\n\nGot errors:\n%v", sortedKeys(s.ExpectedErrors), sortedKeys(errs))
	}
	return errors.New(sb.String())
}

// CheckAllTransforms checks the case under all eight grid symmetries,
// optionally reversed, stopping at the first failure.
func CheckAllTransforms(c Case, reverse bool, v Variant, tiers []belts.Tier) error {
	for i, t := range geom.AllTransforms() {
		s := c.Setup.Transform(t)
		if reverse {
			var afterForReverse *world.Grid
			if c.AfterForReverse != nil {
				afterForReverse = c.AfterForReverse.Transform(t)
			}
			s = s.Flip(afterForReverse)
		}
		if err := Check(s, v, tiers); err != nil {
			label := fmt.Sprintf("[transform %d]", i)
			if reverse {
				label += " [flip]"
			}
			if v != Normal {
				label += " [" + v.String() + "]"
			}
			return fmt.Errorf("%s\n%w", label, err)
		}
	}
	return nil
}

// Replay is one way of checking a case.
type Replay struct {
	Reverse bool
	Variant Variant
}

func (r Replay) String() string {
	s := r.Variant.String()
	if r.Reverse {
		s += "_reverse"
	}
	return s
}

// Replays lists the ways a case is checked.
func (c Case) Replays() []Replay {
	base := []Variant{Normal, Wiggle, MegaWiggle}
	if c.ForwardBack {
		base = []Variant{ForwardBack}
	}
	out := make([]Replay, 0, 2*len(base))
	for _, v := range base {
		out = append(out, Replay{Variant: v})
		if !c.NotReversible {
			out = append(out, Replay{Reverse: true, Variant: v})
		}
	}
	return out
}

// CheckCase checks every replay of c.
func CheckCase(c Case, tiers []belts.Tier) error {
	for _, r := range c.Replays() {
		if err := CheckAllTransforms(c, r.Reverse, r.Variant, tiers); err != nil {
			return fmt.Errorf("%s: %s: %w", c.Name, r, err)
		}
	}
	return nil
}

func isSubset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func errorPositions(m map[string]struct{}) []geom.Pos {
	out := make([]geom.Pos, 0, len(m))
	for k := range m {
		if p, _, ok := parseErrorKey(k); ok {
			out = append(out, p)
		}
	}
	return out
}
