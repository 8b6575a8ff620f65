// Package match implements the linear color transform and the region-sample matching
// rule used by the search engine.
//
// A Transform is a 3x3 matrix of float32 coefficients applied to an (R,G,B) column
// vector. Results are converted back to 8-bit channels with Trim, which clamps to
// [0,255] and truncates toward zero. Matching compares the trimmed result with the
// expected color byte for byte, so Trim decides whether a candidate is accepted.
package match

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
)

// Transform is a 3x3 linear color map, indexed [row][col].
//
// Row r produces output channel r (0=R, 1=G, 2=B) from the input vector (R,G,B).
type Transform [3][3]float32

// Identity is the transform that leaves every color unchanged.
var Identity = Transform{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Trim converts a channel value to a byte: negative values (and NaN) become 0, values
// above 255 become 255, everything else is truncated toward zero.
func Trim(f float32) uint8 {
	switch {
	case math.IsNaN(float64(f)), f < 0:
		return 0
	case f > 255:
		return 255
	}
	return uint8(f)
}

// row computes one output channel. Each product is rounded to float32 on its own so
// the result does not depend on whether the compiler fuses multiply-adds.
func (t *Transform) row(i int, r, g, b float32) float32 {
	m := &t[i]
	return float32(m[0]*r) + float32(m[1]*g) + float32(m[2]*b)
}

// Apply transforms a single color.
func (t Transform) Apply(c imaging.RGBColor) imaging.RGBColor {
	r, g, b := float32(c.R), float32(c.G), float32(c.B)
	return imaging.RGBColor{
		R: Trim(t.row(0, r, g, b)),
		G: Trim(t.row(1, r, g, b)),
		B: Trim(t.row(2, r, g, b)),
	}
}

// ApplyToBuffer transforms every pixel of src into a newly allocated buffer of the same
// size. Output pixels are always fully opaque; src is only read.
func (t Transform) ApplyToBuffer(src *imaging.Buffer) *imaging.Buffer {
	dst := imaging.NewBuffer(src.Width(), src.Height())
	in := src.Pixels()
	out := dst.Pixels()
	for i, v := range in {
		r, g, b := float32(uint8(v>>16)), float32(uint8(v>>8)), float32(uint8(v))
		out[i] = 0xFF000000 |
			uint32(Trim(t.row(0, r, g, b)))<<16 |
			uint32(Trim(t.row(1, r, g, b)))<<8 |
			uint32(Trim(t.row(2, r, g, b)))
	}
	return dst
}

// Coefficients returns the nine coefficients in row-major order.
func (t Transform) Coefficients() [9]float32 {
	var c [9]float32
	for i := 0; i < 9; i++ {
		c[i] = t[i/3][i%3]
	}
	return c
}

// FromCoefficients builds a transform from nine row-major coefficients.
func FromCoefficients(c [9]float32) Transform {
	var t Transform
	for i := 0; i < 9; i++ {
		t[i/3][i%3] = c[i]
	}
	return t
}

// FormatCoefficient renders a coefficient with the shortest representation that
// parses back to the same float32.
func FormatCoefficient(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// ParseCoefficient is the inverse of FormatCoefficient.
func ParseCoefficient(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

// String renders the matrix as "[a b c; d e f; g h i]".
func (t Transform) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for r := 0; r < 3; r++ {
		if r > 0 {
			sb.WriteString("; ")
		}
		for c := 0; c < 3; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(FormatCoefficient(t[r][c]))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// Validate rejects transforms containing NaN or infinite coefficients.
func (t Transform) Validate() error {
	for i, c := range t.Coefficients() {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return fmt.Errorf("coefficient m%d%d is not finite", i/3, i%3)
		}
	}
	return nil
}
