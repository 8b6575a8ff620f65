package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
	"github.com/ironsheep/colormatch-mcp/internal/match"
)

// Emitter receives every published result. Emit is called from worker goroutines
// and must be safe for concurrent use.
type Emitter interface {
	Emit(r *Result) error
}

// FileEmitter writes result images as PNG files into a directory.
//
// File names encode the outcome, see ResultName.
type FileEmitter struct {
	dir string
}

// NewFileEmitter creates dir if needed and returns an emitter writing into it.
func NewFileEmitter(dir string) (*FileEmitter, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileEmitter{dir: dir}, nil
}

// Dir returns the output directory.
func (f *FileEmitter) Dir() string { return f.dir }

// Emit writes r.Image to Dir()/ResultName(r).
func (f *FileEmitter) Emit(r *Result) error {
	if r.Image == nil {
		return fmt.Errorf("result %d has no image", r.Seq)
	}
	path := filepath.Join(f.dir, ResultName(r))
	if err := imgio.Save(path, r.Image.ToImage(), imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// ResultName builds the output file name for a result:
//
//	full_<m00>_<m01>_..._<m22>.png
//	partial_<R>_<G>_<B>_<m00>_..._<m22>.png
//
// For partial results R, G, B is the expected color of the last matched sample.
// Coefficients use the shortest decimal form that round-trips to float32.
func ResultName(r *Result) string {
	parts := make([]string, 0, 13)
	parts = append(parts, r.Kind.String())
	if r.Kind == match.Partial && r.LastMatched != nil {
		c := r.LastMatched.Expected
		parts = append(parts, strconv.Itoa(int(c.R)), strconv.Itoa(int(c.G)), strconv.Itoa(int(c.B)))
	}
	for _, c := range r.Transform.Coefficients() {
		parts = append(parts, match.FormatCoefficient(c))
	}
	return strings.Join(parts, "_") + ".png"
}

// ResultNameInfo is the content recovered from a result file name.
type ResultNameInfo struct {
	Kind      match.Kind
	Expected  imaging.RGBColor // partial results only
	Transform match.Transform
}

// ParseResultName is the inverse of ResultName. A directory prefix is ignored.
func ParseResultName(name string) (ResultNameInfo, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".png")
	fields := strings.Split(base, "_")

	var info ResultNameInfo
	switch {
	case len(fields) == 10 && fields[0] == "full":
		info.Kind = match.Full
		fields = fields[1:]
	case len(fields) == 13 && fields[0] == "partial":
		info.Kind = match.Partial
		var rgb [3]uint8
		for i := range rgb {
			v, err := strconv.ParseUint(fields[1+i], 10, 8)
			if err != nil {
				return ResultNameInfo{}, fmt.Errorf("invalid color channel %q: %w", fields[1+i], err)
			}
			rgb[i] = uint8(v)
		}
		info.Expected = imaging.RGBColor{R: rgb[0], G: rgb[1], B: rgb[2]}
		fields = fields[4:]
	default:
		return ResultNameInfo{}, fmt.Errorf("not a result file name: %q", name)
	}

	var coeffs [9]float32
	for i, f := range fields {
		c, err := match.ParseCoefficient(f)
		if err != nil {
			return ResultNameInfo{}, fmt.Errorf("invalid coefficient %q: %w", f, err)
		}
		coeffs[i] = c
	}
	info.Transform = match.FromCoefficients(coeffs)
	return info, nil
}
