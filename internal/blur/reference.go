package blur

// Reference writes output rows [startRow, startRow+rows) by summing the full
// window for every column. It is O(width*K) per row and exists to check the
// other kernels.
func Reference(img []byte, width, startRow, rows int, result []byte) error {
	if err := checkRows(img, width, startRow, rows, result); err != nil {
		return err
	}
	referenceRows(img, width, startRow, rows, result)
	return nil
}

func referenceRows(img []byte, width, startRow, rows int, result []byte) {
	outWidth := OutputWidth(width)

	for i := startRow; i < startRow+rows; i++ {
		src := img[Channels*i*width : Channels*(i+1)*width]
		dst := result[Channels*i*outWidth : Channels*(i+1)*outWidth]

		for j := 0; j < outWidth; j++ {
			var totalR, totalG, totalB, totalA uint32
			for k := 0; k < K; k++ {
				p := src[Channels*(j+k) : Channels*(j+k)+4 : Channels*(j+k)+4]
				totalR += uint32(p[0])
				totalG += uint32(p[1])
				totalB += uint32(p[2])
				totalA += uint32(p[3])
			}

			o := dst[Channels*j : Channels*j+4 : Channels*j+4]
			o[0] = uint8(totalR >> Shift)
			o[1] = uint8(totalG >> Shift)
			o[2] = uint8(totalB >> Shift)
			o[3] = uint8(totalA >> Shift)
		}
	}
}
