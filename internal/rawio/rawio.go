// Package rawio reads and writes headerless RGBA8 pixel buffers and converts
// between them and encoded images.
package rawio

import (
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// Defaults for generated inputs.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
	DefaultSeed   = 35
)

// SizeError reports a raw file whose length does not match its dimensions.
type SizeError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("raw file %s: expected %d bytes, got %d", e.Path, e.Expected, e.Actual)
}

// Generate returns a width x height buffer of pseudo-random bytes. The same
// seed always yields the same buffer.
func Generate(width, height int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, BytesPerPixel*width*height)
	for i := range buf {
		buf[i] = uint8(rng.Intn(256))
	}
	return buf
}

// WriteFile writes buf to path through a temp file and rename.
func WriteFile(path string, buf []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename raw file: %w", err)
	}

	slog.Debug("Raw buffer written", "path", path, "bytes", len(buf))
	return nil
}

// ReadFile reads a raw width x height buffer. The file must hold exactly
// 4*width*height bytes.
func ReadFile(path string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat raw file: %w", err)
	}

	expected := int64(BytesPerPixel) * int64(width) * int64(height)
	if info.Size() != expected {
		return nil, &SizeError{Path: path, Expected: expected, Actual: info.Size()}
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw file: %w", err)
	}

	slog.Debug("Raw buffer loaded", "path", path, "width", width, "height", height)
	return buf, nil
}

// IsRaw reports whether path names a headerless buffer rather than an
// encoded image.
func IsRaw(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".raw", ".rgba":
		return true
	}
	return false
}

// Load reads path as a raw buffer when IsRaw, otherwise decodes it as an
// image. width and height are required for raw files and ignored otherwise;
// the actual dimensions are returned.
func Load(path string, width, height int) ([]byte, int, int, error) {
	if IsRaw(path) {
		buf, err := ReadFile(path, width, height)
		return buf, width, height, err
	}
	return LoadImage(path)
}

// LoadImage decodes any format imaging supports and flattens it to packed
// non-premultiplied RGBA8.
func LoadImage(path string) ([]byte, int, int, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()

	slog.Debug("Image loaded", "path", path, "width", bounds.Dx(), "height", bounds.Dy())
	return nrgba.Pix, bounds.Dx(), bounds.Dy(), nil
}

// SaveImage encodes a packed RGBA8 buffer. The format follows the file
// extension.
func SaveImage(path string, buf []byte, width, height int) error {
	if len(buf) != BytesPerPixel*width*height {
		return fmt.Errorf("buffer holds %d bytes, expected %d for %dx%d", len(buf), BytesPerPixel*width*height, width, height)
	}

	img := &image.NRGBA{
		Pix:    buf,
		Stride: BytesPerPixel * width,
		Rect:   image.Rect(0, 0, width, height),
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
