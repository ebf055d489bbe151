package blur

import "encoding/binary"

// lanes holds two adjacent window sums as 8 uint16 values:
// [R0 G0 B0 A0 R1 G1 B1 A1]. Fixed-size arrays and plain loops keep the
// arithmetic in a shape the compiler can keep in registers.
type lanes [8]uint16

// widen adds two pixels (8 bytes) to the lanes, one byte per lane.
func (v *lanes) widen(p []byte) {
	p = p[:8:8]
	for i := range v {
		v[i] += uint16(p[i])
	}
}

// slide adds the two pixels at in[0:8] and subtracts the two at out[0:8].
// uint16 arithmetic wraps, and the true sum never exceeds K*255, so the
// result is exact.
func (v *lanes) slide(in, out []byte) {
	in = in[:8:8]
	out = out[:8:8]
	for i := range v {
		v[i] += uint16(in[i]) - uint16(out[i])
	}
}

// narrow shifts each lane down by Shift and packs the result into the low
// byte of each of 8 bytes, returned as a little-endian uint64.
func (v *lanes) narrow() uint64 {
	var packed uint64
	for i := range v {
		packed |= uint64(uint8(v[i]>>Shift)) << (8 * i)
	}
	return packed
}

// streamStore64 writes two output pixels. Output bytes are written once and
// never read back by the kernel.
func streamStore64(dst []byte, packed uint64) {
	binary.LittleEndian.PutUint64(dst[:8:8], packed)
}

// streamStore32 writes the low output pixel only.
func streamStore32(dst []byte, packed uint64) {
	binary.LittleEndian.PutUint32(dst[:4:4], uint32(packed))
}
