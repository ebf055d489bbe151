package blur

// Scalar writes output rows [startRow, startRow+rows) with a per-channel
// running sum. After the first window of a row each column costs one add and
// one subtract per channel.
//
// A full window sums to at most K*255 = 32640. Intermediate differences may
// wrap in uint32; the running sum is exact modulo 2^32.
func Scalar(img []byte, width, startRow, rows int, result []byte) error {
	if err := checkRows(img, width, startRow, rows, result); err != nil {
		return err
	}
	scalarRows(img, width, startRow, rows, result)
	return nil
}

func scalarRows(img []byte, width, startRow, rows int, result []byte) {
	outWidth := OutputWidth(width)

	for i := startRow; i < startRow+rows; i++ {
		src := img[Channels*i*width : Channels*(i+1)*width]
		dst := result[Channels*i*outWidth : Channels*(i+1)*outWidth]

		var w window
		w.fill(src)
		w.store(dst[0:4])

		for j := 1; j < outWidth; j++ {
			// Window j gains pixel j+K-1 and loses pixel j-1.
			w.slide(src[Channels*j+rowLookahead:], src[Channels*(j-1):])
			w.store(dst[Channels*j:])
		}
	}
}

// window is the running per-channel sum of K consecutive pixels.
type window struct {
	r, g, b, a uint32
}

// fill sums the first K pixels of row.
func (w *window) fill(row []byte) {
	_ = row[Channels*K-1]
	*w = window{}
	for k := 0; k < K; k++ {
		p := row[Channels*k : Channels*k+4 : Channels*k+4]
		w.r += uint32(p[0])
		w.g += uint32(p[1])
		w.b += uint32(p[2])
		w.a += uint32(p[3])
	}
}

// slide adds the pixel at in[0:4] and removes the pixel at out[0:4].
func (w *window) slide(in, out []byte) {
	in = in[:4:4]
	out = out[:4:4]
	w.r += uint32(in[0]) - uint32(out[0])
	w.g += uint32(in[1]) - uint32(out[1])
	w.b += uint32(in[2]) - uint32(out[2])
	w.a += uint32(in[3]) - uint32(out[3])
}

// store writes the window mean to dst[0:4].
func (w *window) store(dst []byte) {
	dst = dst[:4:4]
	dst[0] = uint8(w.r >> Shift)
	dst[1] = uint8(w.g >> Shift)
	dst[2] = uint8(w.b >> Shift)
	dst[3] = uint8(w.a >> Shift)
}
