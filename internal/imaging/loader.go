package imaging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrDecode matches every *DecodeError via errors.Is.
var ErrDecode = errors.New("image cannot be decoded")

// DecodeError reports that a source image could not be read or rasterized.
type DecodeError struct {
	// Source names the file being decoded. Empty for in-memory sources.
	Source string

	// Err is the underlying I/O or format error.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to decode image: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode image %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// LoadSource opens and decodes an image file into a Buffer.
//
// Supported formats are those registered with github.com/disintegration/imaging
// (PNG, JPEG, GIF, TIFF, BMP). EXIF orientation is applied so that the buffer matches
// what a viewer would display.
//
// # Errors
//
// Every failure, including a missing file, is returned as a *DecodeError. The
// underlying error stays reachable, so errors.Is(err, fs.ErrNotExist) still works.
func LoadSource(path string) (*Buffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	b, err := FromImage(img)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}
	return b, nil
}

// DecodeSource decodes an image stream into a Buffer.
func DecodeSource(r io.Reader) (*Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return FromImage(img)
}

// Cache provides thread-safe caching of decoded source buffers keyed by file path.
//
// Buffers handed out by the cache are shared between callers and must be treated as
// read-only. Clone a buffer before modifying it.
type Cache struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		buffers: make(map[string]*Buffer),
	}
}

// Load returns the cached buffer for path, decoding the file on first use.
//
// The path string is the cache key as given; different spellings of the same file
// produce separate entries.
func (c *Cache) Load(path string) (*Buffer, error) {
	c.mu.RLock()
	if b, ok := c.buffers[path]; ok {
		c.mu.RUnlock()
		return b, nil
	}
	c.mu.RUnlock()

	b, err := LoadSource(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.buffers[path] = b
	c.mu.Unlock()

	return b, nil
}

// Evict drops the entry for path, if any, so the next Load decodes the file again.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.buffers, path)
	c.mu.Unlock()
}

// Len returns the number of cached buffers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}

// SourceInfo describes a loaded source image.
type SourceInfo struct {
	// Path is the file the buffer was loaded from.
	Path string `json:"path"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif", "tiff", "bmp" or "unknown", from the file extension.
	Format string `json:"format"`

	// HasTransparency is true when at least one pixel is not fully opaque.
	HasTransparency bool `json:"has_transparency"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// DescribeSource loads path through the cache and returns its metadata along with
// the buffer itself.
func DescribeSource(cache *Cache, path string) (*SourceInfo, *Buffer, error) {
	b, err := cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".tif", ".tiff":
		format = "tiff"
	case ".bmp":
		format = "bmp"
	}

	transparent := false
	for _, v := range b.Pixels() {
		if v>>24 != 0xFF {
			transparent = true
			break
		}
	}

	return &SourceInfo{
		Path:            path,
		Width:           b.Width(),
		Height:          b.Height(),
		Format:          format,
		HasTransparency: transparent,
		FileSizeBytes:   stat.Size(),
	}, b, nil
}
