// Package imaging provides the pixel storage and image I/O used by the color matcher.
//
// The central type is Buffer, a flat row-major store of packed ARGB pixels. A Buffer
// is created from any decoded image.Image (or straight from a file) and converted back
// to an *image.NRGBA for display or file output. Buffer also implements image.Image,
// so the standard library and github.com/disintegration/imaging can read it directly.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Buffers always start at (0,0); Bounds() is (0,0)-(Width,Height)
//
// # Pixel Format
//
// A packed pixel is a uint32 laid out as 0xAARRGGBB. Pack and Unpack convert between
// the packed form and 8-bit channels. Channels are raw values: no gamma, no color
// space conversion and no premultiplication.
//
// # Accessors
//
// Buffer has two distinct read paths:
//   - Pixel / SetPixel: unchecked, for hot loops. Out-of-range coordinates are a caller
//     contract violation; they either panic or address a neighbouring row.
//   - TryPixel: bounds-checked, returns found=false and a zero pixel outside the buffer.
//     Any scan over a user-supplied region must use this one.
//
// # Thread Safety
//
// A Buffer has no internal locking. Concurrent reads are safe; writes must not overlap
// with any other access. The Cache type is safe for concurrent use.
//
// # Error Handling
//
// Decoding failures are reported as *DecodeError, which matches ErrDecode with
// errors.Is and unwraps to the underlying I/O or format error.
package imaging
