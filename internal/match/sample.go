package match

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
)

// ErrEmptySample is returned when a sample rectangle covers no pixel of the buffer.
var ErrEmptySample = errors.New("sample region contains no in-bounds pixels")

// Rect is an image-space rectangle given as origin and size.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Bounds converts r to an image.Rectangle. A rect with non-positive size yields an
// empty rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.X, r.Y), Max: image.Pt(r.X+r.Width, r.Y+r.Height)}
}

// RectFromCorners builds a rectangle from two opposite corners in any order.
func RectFromCorners(x1, y1, x2, y2 int) Rect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Sample is a region of interest with its measured average color and the color the
// user wants it to become. Samples are immutable once created.
type Sample struct {
	Rect     Rect             `json:"rect"`
	Input    imaging.RGBColor `json:"input"`
	Expected imaging.RGBColor `json:"expected"`
}

// NewSample measures the average color of rect in buf and pairs it with expected.
//
// The average is taken independently per channel over the pixels of rect that lie
// inside buf, using integer division. Pixels outside the buffer are ignored.
//
// # Errors
//
// Returns an error wrapping ErrEmptySample when no pixel of rect lies inside buf.
func NewSample(buf *imaging.Buffer, rect Rect, expected imaging.RGBColor) (Sample, error) {
	avg, err := AverageColor(buf, rect)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Rect: rect, Input: avg, Expected: expected}, nil
}

// AverageColor returns the per-channel integer mean over the in-bounds pixels of rect.
// Only the part of rect that overlaps buf is scanned.
func AverageColor(buf *imaging.Buffer, rect Rect) (imaging.RGBColor, error) {
	r := rect.Bounds().Intersect(buf.Bounds())
	if r.Empty() {
		return imaging.RGBColor{}, fmt.Errorf("rect %s: %w", rect, ErrEmptySample)
	}

	var red, green, blue int64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := buf.Pixel(x, y)
			red += int64(uint8(v >> 16))
			green += int64(uint8(v >> 8))
			blue += int64(uint8(v))
		}
	}
	count := int64(r.Dx()) * int64(r.Dy())
	return imaging.RGBColor{
		R: uint8(red / count),
		G: uint8(green / count),
		B: uint8(blue / count),
	}, nil
}
