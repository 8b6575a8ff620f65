package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
)

// OverlayResult is a PNG of the source with sample rectangles drawn on top.
type OverlayResult struct {
	*EncodedImage
	Regions int `json:"regions"`
}

// SampleOverlay draws the outline of each rectangle on a copy of img and labels it
// with its index, so a set of region samples can be checked at a glance.
//
// Rectangles are clipped to the image. A rectangle lying completely outside is
// skipped but keeps its index, so labels always match sample indices.
func SampleOverlay(img image.Image, rects []image.Rectangle, outline RGBColor) (*OverlayResult, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("cannot draw on an empty image")
	}

	// imaging.Clone always yields an NRGBA starting at (0,0).
	canvas := imaging.Clone(img)
	offset := img.Bounds().Min
	line := color.NRGBA{R: outline.R, G: outline.G, B: outline.B, A: 255}

	drawn := 0
	for i, r := range rects {
		r = r.Sub(offset).Intersect(canvas.Bounds())
		if r.Empty() {
			continue
		}
		strokeRect(canvas, r, line)
		drawDigits(canvas, r.Min.X+2, r.Min.Y+2, strconv.Itoa(i), color.NRGBA{255, 255, 255, 255}, color.NRGBA{0, 0, 0, 200})
		drawn++
	}

	enc, err := EncodePNG(canvas)
	if err != nil {
		return nil, err
	}
	return &OverlayResult{EncodedImage: enc, Regions: drawn}, nil
}

func strokeRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, c)
		img.SetNRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, c)
		img.SetNRGBA(r.Max.X-1, y, c)
	}
}

// 3x5 bitmap digits.
var digitGlyphs = [10][5]string{
	{"111", "101", "101", "101", "111"},
	{"010", "110", "010", "010", "111"},
	{"111", "001", "111", "100", "111"},
	{"111", "001", "111", "001", "111"},
	{"101", "101", "111", "001", "001"},
	{"111", "100", "111", "001", "111"},
	{"111", "100", "111", "101", "111"},
	{"111", "001", "001", "001", "001"},
	{"111", "101", "111", "101", "111"},
	{"111", "101", "111", "001", "111"},
}

// drawDigits writes a decimal label with its top-left corner at (x, y) on a filled
// background. Anything falling outside img is dropped.
func drawDigits(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	const advance = 4
	bounds := img.Bounds()
	set := func(px, py int, c color.NRGBA) {
		if (image.Point{px, py}).In(bounds) {
			img.SetNRGBA(px, py, c)
		}
	}

	for dy := -1; dy < 6; dy++ {
		for dx := -1; dx < len(text)*advance; dx++ {
			set(x+dx, y+dy, bg)
		}
	}

	for n, ch := range text {
		if ch < '0' || ch > '9' {
			continue
		}
		for row, bits := range digitGlyphs[ch-'0'] {
			for col, bit := range bits {
				if bit == '1' {
					set(x+n*advance+col, y+row, fg)
				}
			}
		}
	}
}
