package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeEncoded turns an EncodedImage back into an image.
func decodeEncoded(t *testing.T, enc *EncodedImage) image.Image {
	t.Helper()

	data, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	require.NoError(t, err, "failed to decode base64")
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err, "failed to decode PNG")
	return img
}

func TestEncodePNG(t *testing.T) {
	b := NewBuffer(3, 2)
	b.SetPixel(1, 1, 0xFF102030)

	enc, err := EncodePNG(b.ToImage())
	require.NoError(t, err)
	assert.Equal(t, 3, enc.Width)
	assert.Equal(t, 2, enc.Height)
	assert.Equal(t, "image/png", enc.MimeType)

	img := decodeEncoded(t, enc)
	got := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{0x10, 0x20, 0x30, 0xFF}, got)
}

func TestPreviewRegion(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := PreviewRegion(img, 0, 0, 50, 50, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Width)
	assert.Equal(t, 50, result.Height)

	// Top-left quadrant is red
	got := nrgbaAt(decodeEncoded(t, result), 25, 25)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, got)
}

func TestPreviewRegion_Scale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name         string
		width        int
		scale        float64
		wantW, wantH int
	}{
		{"unscaled", 40, 1.0, 40, 40},
		{"enlarge", 10, 4.0, 40, 40},
		{"shrink", 100, 0.5, 50, 50},
		{"tiny", 2, 0.1, 1, 1},
		{"non-positive scale ignored", 20, 0, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := PreviewRegion(img, 0, 0, tt.width, tt.width, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, result.Width)
			assert.Equal(t, tt.wantH, result.Height)
		})
	}
}

func TestPreviewRegion_Clipped(t *testing.T) {
	b, err := FromImage(createPatternImage(10, 10))
	require.NoError(t, err)

	// Only the 3x2 corner at (7,8) lies inside.
	result, err := PreviewRegion(b, 7, 8, 10, 10, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Width)
	assert.Equal(t, 2, result.Height)
}

func TestPreviewRegion_Invalid(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name                string
		x, y, width, height int
	}{
		{"zero width", 0, 0, 0, 10},
		{"negative height", 0, 0, 10, -5},
		{"right of image", 100, 0, 10, 10},
		{"above image", 0, -20, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PreviewRegion(img, tt.x, tt.y, tt.width, tt.height, 1.0)
			assert.Error(t, err)
		})
	}
}
