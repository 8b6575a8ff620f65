package match

import (
	"fmt"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
)

// Kind classifies how well a transform satisfies a sample list.
type Kind int

const (
	// Reject means the first sample already mismatched.
	Reject Kind = iota
	// Partial means a non-empty prefix of the samples matched.
	Partial
	// Full means every sample matched.
	Full
)

func (k Kind) String() string {
	switch k {
	case Full:
		return "full"
	case Partial:
		return "partial"
	default:
		return "reject"
	}
}

// MarshalText lets Kind appear as a string in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the form written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "reject":
		*k = Reject
	case "partial":
		*k = Partial
	case "full":
		*k = Full
	default:
		return fmt.Errorf("unknown match kind %q", text)
	}
	return nil
}

// Outcome is the result of evaluating one transform against an ordered sample list.
type Outcome struct {
	Kind Kind

	// Matched is the length of the matching prefix.
	Matched int

	// Mismatch is the transformed input color of the first failing sample.
	// It is only meaningful when Kind is not Full.
	Mismatch imaging.RGBColor
}

// Matches reports whether t maps the sample's input color exactly onto its
// expected color.
func Matches(s Sample, t Transform) bool {
	return t.Apply(s.Input) == s.Expected
}

// Evaluate tests t against samples in order and stops at the first mismatch.
//
// An empty sample list is a vacuous full match; callers that need at least one
// constraint must check that themselves.
func Evaluate(t Transform, samples []Sample) Outcome {
	for i, s := range samples {
		got := t.Apply(s.Input)
		if got == s.Expected {
			continue
		}
		if i == 0 {
			return Outcome{Kind: Reject, Mismatch: got}
		}
		return Outcome{Kind: Partial, Matched: i, Mismatch: got}
	}
	return Outcome{Kind: Full, Matched: len(samples)}
}

// Distance is the CIEDE2000 difference between two colors, treating channel values
// as sRGB. It is a diagnostic for near misses and plays no part in matching.
func Distance(a, b imaging.RGBColor) float64 {
	return a.Colorful().DistanceCIEDE2000(b.Colorful())
}
