package server

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/disintegration/imaging"
)

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// previewImage wraps a packed RGBA8 buffer as an image, scaled down to fit
// maxWidth when maxWidth is positive and smaller than width.
func previewImage(pix []byte, width, height, maxWidth int) (image.Image, error) {
	if len(pix) != blur.Channels*width*height {
		return nil, fmt.Errorf("buffer is %d bytes, expected %d for %dx%d", len(pix), blur.Channels*width*height, width, height)
	}

	img := blur.NewNRGBA(pix, width, height)
	if maxWidth > 0 && maxWidth < width {
		return imaging.Resize(img, maxWidth, 0, imaging.Box), nil
	}
	return img, nil
}

// encodePNG writes a PNG preview of a packed RGBA8 buffer
func encodePNG(w io.Writer, pix []byte, width, height, maxWidth int) error {
	img, err := previewImage(pix, width, height, maxWidth)
	if err != nil {
		return err
	}
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
