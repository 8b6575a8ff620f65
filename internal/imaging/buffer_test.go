package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	v := Pack(0x80, 0x12, 0x34, 0x56)
	require.Equal(t, uint32(0x80123456), v)

	a, r, g, b := Unpack(v)
	assert.Equal(t, [4]uint8{0x80, 0x12, 0x34, 0x56}, [4]uint8{a, r, g, b})

	c := RGBColor{R: 200, G: 100, B: 50}
	assert.Equal(t, uint32(0xFFC86432), PackRGB(c))
	assert.Equal(t, c, RGBOf(0x00C86432))
}

func TestNewBuffer(t *testing.T) {
	b := NewBuffer(3, 2)
	require.Equal(t, 3, b.Width())
	require.Equal(t, 2, b.Height())
	require.Len(t, b.Pixels(), 6)
	for i, v := range b.Pixels() {
		assert.Zero(t, v, "pixel %d", i)
	}

	assert.Empty(t, NewBuffer(0, 0).Pixels())
}

func TestNewBuffer_NegativePanics(t *testing.T) {
	assert.Panics(t, func() { NewBuffer(-1, 1) })
}

func TestBuffer_SetPixelRowMajor(t *testing.T) {
	b := NewBuffer(3, 2)
	b.SetPixel(2, 1, 0xFF010203)

	assert.Equal(t, uint32(0xFF010203), b.Pixels()[1*3+2], "pixel (2,1) should be stored at index y*width+x")
	assert.Equal(t, uint32(0xFF010203), b.Pixel(2, 1))
}

func TestBuffer_TryPixel(t *testing.T) {
	b := NewBuffer(2, 2)
	b.SetPixel(1, 1, 0xFFABCDEF)

	tests := []struct {
		name   string
		x, y   int
		want   uint32
		wantOK bool
	}{
		{"inside", 1, 1, 0xFFABCDEF, true},
		{"origin", 0, 0, 0, true},
		{"negative x", -1, 0, 0, false},
		{"negative y", 0, -1, 0, false},
		{"x at width", 2, 0, 0, false},
		{"y at height", 0, 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := b.TryPixel(tt.x, tt.y)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestBuffer_CloneIsIndependent(t *testing.T) {
	b := NewBuffer(2, 2)
	b.SetPixel(0, 0, 0xFF112233)

	c := b.Clone()
	require.True(t, b.Equal(c), "clone should equal the original")

	c.SetPixel(0, 0, 0xFF000000)
	assert.Equal(t, uint32(0xFF112233), b.Pixel(0, 0), "modifying the clone changed the original")
	assert.False(t, b.Equal(c), "buffers with different pixels should not be equal")
	assert.False(t, b.Equal(NewBuffer(4, 1)), "buffers with different dimensions should not be equal")
}

func TestFromImage_RoundTripNormalizesAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	src.SetNRGBA(1, 0, color.NRGBA{10, 20, 30, 128})
	src.SetNRGBA(2, 1, color.NRGBA{10, 20, 30, 40})

	b, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFF0000), b.Pixel(0, 0))
	// The buffer keeps the decoded alpha so transparency can still be reported.
	assert.Equal(t, Pack(40, 10, 20, 30), b.Pixel(2, 1))

	out := b.ToImage()
	require.Equal(t, src.Bounds(), out.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			want := src.NRGBAAt(x, y)
			want.A = 0xFF
			assert.Equal(t, want, out.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestFromImage_OffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(6, 5, color.RGBA{0, 0, 255, 255})

	b, err := FromImage(src)
	require.NoError(t, err)
	require.Equal(t, 2, b.Width())
	require.Equal(t, 1, b.Height())
	assert.Equal(t, uint32(0xFF0000FF), b.Pixel(1, 0))
}

func TestFromImage_Empty(t *testing.T) {
	for name, img := range map[string]image.Image{
		"nil":   nil,
		"empty": image.NewRGBA(image.Rect(0, 0, 0, 0)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromImage(img)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestBuffer_ImplementsImage(t *testing.T) {
	b := NewBuffer(2, 1)
	b.SetPixel(1, 0, 0xFF804020)

	var img image.Image = b
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	got := color.NRGBAModel.Convert(img.At(1, 0)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{0x80, 0x40, 0x20, 0xFF}, got)
}
