package imaging

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Buffer is a rectangular image stored as packed ARGB pixels in row-major order.
//
// The zero value is an empty 0x0 buffer. len(Pixels()) is always Width()*Height().
type Buffer struct {
	width  int
	height int
	pix    []uint32
}

// NewBuffer creates a zero-filled (transparent black) buffer.
//
// Negative dimensions are a programming error and panic.
func NewBuffer(width, height int) *Buffer {
	if width < 0 || height < 0 {
		panic("imaging: negative buffer dimensions")
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]uint32, width*height),
	}
}

// FromImage converts any decoded image into a Buffer.
//
// The source is first normalized to 8-bit non-premultiplied RGBA (re-encoding paletted,
// YCbCr, 16-bit and premultiplied sources), then packed. The returned buffer always
// starts at (0,0) even if the source bounds do not.
//
// # Errors
//
// Returns a *DecodeError if img is nil or has an empty bounding rectangle, since such
// a source cannot be rasterized.
func FromImage(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, &DecodeError{Err: errors.New("nil image")}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{Err: errors.New("image has no pixels")}
	}

	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	b := NewBuffer(w, h)

	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		dst := b.pix[y*w : (y+1)*w]
		for x := range dst {
			p := row[x*4 : x*4+4 : x*4+4]
			dst[x] = Pack(p[3], p[0], p[1], p[2])
		}
	}
	return b, nil
}

// ToImage re-encodes the buffer as an *image.NRGBA suitable for display or encoding.
// The output is always fully opaque; the stored alpha is dropped.
func (b *Buffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	for i, v := range b.pix {
		_, r, g, bl := Unpack(v)
		o := i * 4
		img.Pix[o+0] = r
		img.Pix[o+1] = g
		img.Pix[o+2] = bl
		img.Pix[o+3] = 0xFF
	}
	return img
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// Pixels returns the backing pixel slice. It aliases the buffer's storage.
func (b *Buffer) Pixels() []uint32 { return b.pix }

// Pixel returns the packed pixel at (x, y) without bounds checking.
//
// The caller must guarantee 0 <= x < Width() and 0 <= y < Height().
func (b *Buffer) Pixel(x, y int) uint32 {
	return b.pix[y*b.width+x]
}

// SetPixel stores a packed pixel at (x, y) without bounds checking.
//
// The caller must guarantee 0 <= x < Width() and 0 <= y < Height().
func (b *Buffer) SetPixel(x, y int, v uint32) {
	b.pix[y*b.width+x] = v
}

// TryPixel returns the packed pixel at (x, y) and true, or 0 and false when the
// coordinates fall outside the buffer.
func (b *Buffer) TryPixel(x, y int) (uint32, bool) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return 0, false
	}
	return b.pix[y*b.width+x], true
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{width: b.width, height: b.height, pix: make([]uint32, len(b.pix))}
	copy(c.pix, b.pix)
	return c
}

// Equal reports whether both buffers have the same dimensions and pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.width != o.width || b.height != o.height {
		return false
	}
	for i, v := range b.pix {
		if o.pix[i] != v {
			return false
		}
	}
	return true
}

// ColorModel implements image.Image.
func (b *Buffer) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// At implements image.Image. Coordinates outside the buffer yield transparent black.
func (b *Buffer) At(x, y int) color.Color {
	v, ok := b.TryPixel(x, y)
	if !ok {
		return color.NRGBA{}
	}
	a, r, g, bl := Unpack(v)
	return color.NRGBA{R: r, G: g, B: bl, A: a}
}

// Pack combines 8-bit channels into a 0xAARRGGBB pixel.
func Pack(a, r, g, b uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Unpack splits a 0xAARRGGBB pixel into its 8-bit channels.
func Unpack(v uint32) (a, r, g, b uint8) {
	return uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// PackRGB packs an RGB color as a fully opaque pixel.
func PackRGB(c RGBColor) uint32 {
	return Pack(0xFF, c.R, c.G, c.B)
}

// RGBOf extracts the color channels of a packed pixel, dropping alpha.
func RGBOf(v uint32) RGBColor {
	return RGBColor{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}
