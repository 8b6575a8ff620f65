package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/colormatch-mcp/internal/match"
)

// ErrInvalidGrid is wrapped by every grid validation error.
var ErrInvalidGrid = errors.New("invalid grid")

// maxAxisValues bounds a single axis so a typo in a step cannot allocate gigabytes.
const maxAxisValues = 1 << 20

// Axis is one swept parameter: values Lower, Lower+Step, ... strictly below Upper.
type Axis struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
	Step  float64 `yaml:"step" json:"step"`
}

// Count returns the number of values on the axis.
func (a Axis) Count() int {
	if !(a.Step > 0) || !(a.Upper > a.Lower) {
		return 0
	}
	// The epsilon absorbs representation error in (Upper-Lower)/Step so that an
	// upper bound sitting exactly on the grid stays excluded.
	n := math.Ceil((a.Upper-a.Lower)/a.Step - 1e-9)
	if n > maxAxisValues {
		return maxAxisValues + 1
	}
	return int(n)
}

// Value returns the i-th axis value. Each value is computed from Lower directly, not
// by accumulating Step, and rounded to 1e-9 to keep decimal grids clean.
func (a Axis) Value(i int) float32 {
	v := a.Lower + float64(i)*a.Step
	return float32(math.Round(v*1e9) / 1e9)
}

// Values returns every axis value in ascending order.
func (a Axis) Values() []float32 {
	n := a.Count()
	vs := make([]float32, n)
	for i := range vs {
		vs[i] = a.Value(i)
	}
	return vs
}

func (a Axis) validate() error {
	for _, f := range []float64{a.Lower, a.Upper, a.Step} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: axis bounds must be finite", ErrInvalidGrid)
		}
	}
	if a.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %g", ErrInvalidGrid, a.Step)
	}
	if a.Upper <= a.Lower {
		return fmt.Errorf("%w: upper bound %g must exceed lower bound %g", ErrInvalidGrid, a.Upper, a.Lower)
	}
	if a.Count() > maxAxisValues {
		return fmt.Errorf("%w: axis [%g,%g) step %g has more than %d values", ErrInvalidGrid, a.Lower, a.Upper, a.Step, maxAxisValues)
	}
	return nil
}

// GridSpec describes the Cartesian product of candidate transforms.
//
// Diagonal holds either one axis, pinning m00, m11 and m22 to a shared scalar, or
// three axes sweeping them independently. OffDiagonal holds exactly six axes, for
// m01, m02, m10, m12, m20 and m21 in that order.
type GridSpec struct {
	Diagonal    []Axis `yaml:"diagonal" json:"diagonal"`
	OffDiagonal []Axis `yaml:"off_diagonal" json:"off_diagonal"`
}

// offDiagonalCells lists the matrix cells driven by GridSpec.OffDiagonal.
var offDiagonalCells = [6][2]int{{0, 1}, {0, 2}, {1, 0}, {1, 2}, {2, 0}, {2, 1}}

// DefaultGrid is the classic near-identity sweep: a shared diagonal in [0.9, 1.1)
// stepping by 0.01 and six off-diagonal terms in [-0.2, 0.2) stepping by 0.025.
func DefaultGrid() GridSpec {
	off := Axis{Lower: -0.2, Upper: 0.2, Step: 0.025}
	return GridSpec{
		Diagonal:    []Axis{{Lower: 0.9, Upper: 1.1, Step: 0.01}},
		OffDiagonal: []Axis{off, off, off, off, off, off},
	}
}

// SharedDiagonal reports whether the three diagonal entries move together.
func (g GridSpec) SharedDiagonal() bool { return len(g.Diagonal) == 1 }

// Validate checks axis counts and bounds.
func (g GridSpec) Validate() error {
	if len(g.Diagonal) != 1 && len(g.Diagonal) != 3 {
		return fmt.Errorf("%w: need 1 or 3 diagonal axes, got %d", ErrInvalidGrid, len(g.Diagonal))
	}
	if len(g.OffDiagonal) != 6 {
		return fmt.Errorf("%w: need 6 off-diagonal axes, got %d", ErrInvalidGrid, len(g.OffDiagonal))
	}
	for i, a := range g.axes() {
		if err := a.validate(); err != nil {
			return fmt.Errorf("axis %d: %w", i, err)
		}
	}
	return nil
}

// Size returns the number of candidates, saturating at math.MaxUint64.
func (g GridSpec) Size() uint64 {
	axes := g.axes()
	if len(axes) == 0 {
		return 0
	}
	total := uint64(1)
	for _, a := range axes {
		n := uint64(a.Count())
		if n == 0 {
			return 0
		}
		if total > math.MaxUint64/n {
			return math.MaxUint64
		}
		total *= n
	}
	return total
}

func (g GridSpec) axes() []Axis {
	axes := make([]Axis, 0, len(g.Diagonal)+len(g.OffDiagonal))
	axes = append(axes, g.Diagonal...)
	return append(axes, g.OffDiagonal...)
}

// Enumerate calls fn once per grid point, last axis varying fastest. It stops early
// when fn returns an error or ctx is done, returning that error.
func (g GridSpec) Enumerate(ctx context.Context, fn func(match.Transform) error) error {
	if err := g.Validate(); err != nil {
		return err
	}

	axes := g.axes()
	values := make([][]float32, len(axes))
	for i, a := range axes {
		values[i] = a.Values()
	}
	nd := len(g.Diagonal)
	idx := make([]int, len(axes))

	for step := 0; ; step++ {
		if step&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		var t match.Transform
		if nd == 1 {
			d := values[0][idx[0]]
			t[0][0], t[1][1], t[2][2] = d, d, d
		} else {
			t[0][0] = values[0][idx[0]]
			t[1][1] = values[1][idx[1]]
			t[2][2] = values[2][idx[2]]
		}
		for k, cell := range offDiagonalCells {
			t[cell[0]][cell[1]] = values[nd+k][idx[nd+k]]
		}

		if err := fn(t); err != nil {
			return err
		}

		// Odometer increment.
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(values[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// ParseGrid decodes a YAML grid document and validates it.
//
//	diagonal:
//	  - {lower: 0.9, upper: 1.1, step: 0.01}
//	off_diagonal:
//	  - {lower: -0.2, upper: 0.2, step: 0.025}
//	  # ... six entries in total
func ParseGrid(data []byte) (GridSpec, error) {
	var g GridSpec
	if err := yaml.Unmarshal(data, &g); err != nil {
		return GridSpec{}, fmt.Errorf("failed to parse grid: %w", err)
	}
	if err := g.Validate(); err != nil {
		return GridSpec{}, err
	}
	return g, nil
}

// LoadGrid reads and parses a YAML grid file.
func LoadGrid(path string) (GridSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GridSpec{}, fmt.Errorf("failed to read grid file: %w", err)
	}
	return ParseGrid(data)
}
