package blur

// Vector writes output rows [startRow, startRow+rows) using the lane kernel.
//
// Lane slot 0 tracks window j and slot 1 tracks window j+1. Each step slides
// both slots twice and emits two output pixels with one 8-byte store, so a row
// of n output pixels takes about n/2 steps after the first window.
//
// When a single column is left at the end of a row the final step stores only
// 4 bytes. No store ever reaches past the end of its row.
func Vector(img []byte, width, startRow, rows int, result []byte) error {
	if err := checkRows(img, width, startRow, rows, result); err != nil {
		return err
	}
	vectorRows(img, width, startRow, rows, result)
	return nil
}

func vectorRows(img []byte, width, startRow, rows int, result []byte) {
	for i := startRow; i < startRow+rows; i++ {
		processRow(img, width, i, result)
	}
}

func processRow(img []byte, width, i int, result []byte) {
	outWidth := OutputWidth(width)
	src := img[Channels*i*width : Channels*(i+1)*width]
	dst := result[Channels*i*outWidth : Channels*(i+1)*outWidth]

	// Pixel pairs (k, k+1) for k in [0, K): slot 0 = window 0, slot 1 = window 1.
	// The last pair reads pixel K, which exists because width > K.
	var totals lanes
	for k := 0; k < K; k++ {
		totals.widen(src[Channels*k:])
	}
	if outWidth >= 2 {
		streamStore64(dst, totals.narrow())
	} else {
		streamStore32(dst, totals.narrow())
	}

	j := 1
	for ; j+2 < outWidth; j += 2 {
		processCols(src, dst, j, &totals, false)
	}
	if j+1 == outWidth-1 {
		processCols(src, dst, j, &totals, true)
	}
}

// processCols advances both slots by two columns and stores windows j+1 and
// j+2, or only j+1 when singleLastColumn is set. The highest pixel read is
// j+K+1, which is inside the row for every call processRow makes.
func processCols(src, dst []byte, j int, totals *lanes, singleLastColumn bool) {
	totals.slide(src[Channels*j+rowLookahead:], src[Channels*(j-1):])
	totals.slide(src[Channels*(j+1)+rowLookahead:], src[Channels*j:])

	packed := totals.narrow()
	if singleLastColumn {
		streamStore32(dst[Channels*(j+1):], packed)
	} else {
		streamStore64(dst[Channels*(j+1):], packed)
	}
}

// VectorSingle writes output rows [startRow, startRow+rows) with the lane
// arithmetic but one column per step and a 4-byte store per output pixel.
// Per-pixel stores let a caller scatter output pixels, for example into a
// transposed layout, without touching neighbouring pixels.
func VectorSingle(img []byte, width, startRow, rows int, result []byte) error {
	if err := checkRows(img, width, startRow, rows, result); err != nil {
		return err
	}
	vectorSingleRows(img, width, startRow, rows, result)
	return nil
}

func vectorSingleRows(img []byte, width, startRow, rows int, result []byte) {
	outWidth := OutputWidth(width)

	for i := startRow; i < startRow+rows; i++ {
		src := img[Channels*i*width : Channels*(i+1)*width]
		dst := result[Channels*i*outWidth : Channels*(i+1)*outWidth]

		var totals lanes
		for k := 0; k < K; k++ {
			totals.widen(src[Channels*k:])
		}
		streamStore32(dst, totals.narrow())

		// Only slot 0 is stored. Slot 1 runs one window ahead and reads at
		// most pixel j+K, the last pixel of the row.
		for j := 1; j < outWidth; j++ {
			totals.slide(src[Channels*j+rowLookahead:], src[Channels*(j-1):])
			streamStore32(dst[Channels*j:], totals.narrow())
		}
	}
}
