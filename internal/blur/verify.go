package blur

// Checksum returns the sum of all bytes in buf.
func Checksum(buf []byte) uint64 {
	var total uint64
	for _, b := range buf {
		total += uint64(b)
	}
	return total
}

// Disagreement is one byte where two outputs differ.
type Disagreement struct {
	Index int   `json:"index"`
	Want  uint8 `json:"want"`
	Got   uint8 `json:"got"`
}

// Comparison summarises the differences between two outputs.
type Comparison struct {
	// Count is the number of differing bytes, including any length mismatch.
	Count int `json:"count"`

	// First holds up to the requested number of differences, in index order.
	First []Disagreement `json:"first,omitempty"`

	// SumAbsDiff and MaxAbsDiff cover the overlapping bytes only.
	SumAbsDiff uint64 `json:"sumAbsDiff"`
	MaxAbsDiff uint8  `json:"maxAbsDiff"`
}

// Equal reports whether no byte differed.
func (c Comparison) Equal() bool {
	return c.Count == 0
}

// Compare walks want and got byte by byte. Bytes present in only one of the
// buffers count as differences. limit caps len(First); limit <= 0 records none.
func Compare(want, got []byte, limit int) Comparison {
	var c Comparison
	n := min(len(want), len(got))
	for i := 0; i < n; i++ {
		if want[i] == got[i] {
			continue
		}
		d := absDiff(want[i], got[i])
		c.Count++
		c.SumAbsDiff += uint64(d)
		c.MaxAbsDiff = max(c.MaxAbsDiff, d)
		if len(c.First) < limit {
			c.First = append(c.First, Disagreement{Index: i, Want: want[i], Got: got[i]})
		}
	}
	c.Count += max(len(want), len(got)) - n
	return c
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
