package blur

import (
	"image"
)

// BlurNRGBA filters src and returns a new (width-K) x height image. Rows of
// src are copied into a packed buffer when its stride has padding.
func BlurNRGBA(src *image.NRGBA, opts Options) (*image.NRGBA, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	pix := PackedPix(src)
	dst := image.NewNRGBA(image.Rect(0, 0, max(OutputWidth(width), 0), height))
	if err := BlurWithOptions(pix, width, height, dst.Pix, opts); err != nil {
		return nil, err
	}
	return dst, nil
}

// PackedPix returns src's pixels as a tightly packed row-major buffer. It
// returns src.Pix itself when no repacking is needed.
func PackedPix(src *image.NRGBA) []byte {
	bounds := src.Bounds()
	rowBytes := Channels * bounds.Dx()
	size := rowBytes * bounds.Dy()

	if src.Stride == rowBytes && len(src.Pix) == size {
		return src.Pix
	}

	pix := make([]byte, size)
	for y := 0; y < bounds.Dy(); y++ {
		off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(pix[y*rowBytes:(y+1)*rowBytes], src.Pix[off:off+rowBytes])
	}
	return pix
}

// NewNRGBA wraps a packed buffer as an image without copying.
func NewNRGBA(pix []byte, width, height int) *image.NRGBA {
	return &image.NRGBA{
		Pix:    pix,
		Stride: Channels * width,
		Rect:   image.Rect(0, 0, width, height),
	}
}
