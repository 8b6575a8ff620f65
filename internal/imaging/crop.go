package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// EncodedImage is a PNG rendering of an image, base64-encoded for JSON transport.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG renders img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// PreviewRegion extracts the part of a rectangle that lies inside img and returns it
// as a base64 PNG, optionally scaled.
//
// The rectangle is given as origin plus size and may extend past the image edges;
// only the intersection is rendered. This mirrors how region samples are averaged.
//
// # Errors
//
// Returns an error if the rectangle does not intersect the image.
func PreviewRegion(img image.Image, x, y, width, height int, scale float64) (*EncodedImage, error) {
	r := image.Rect(x, y, x+width, y+height)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid region: width and height must be positive")
	}
	clipped := r.Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("region (%d,%d)-(%d,%d) outside image bounds", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	}

	cropped := imaging.Crop(img, clipped)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 {
			newWidth = 1
		}
		if newHeight < 1 {
			newHeight = 1
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.NearestNeighbor)
	}

	return EncodePNG(cropped)
}

// nrgbaAt reads a pixel as non-premultiplied 8-bit color.
func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}
