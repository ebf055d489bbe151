package blur

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sys/cpu"
)

// 128-pixel box blur over RGBA8 buffers.
//
// Every output pixel (i, j) is the truncating per-channel mean of the K input
// pixels starting at column j of row i:
//   out[i][j].c = (in[i][j].c + ... + in[i][j+K-1].c) >> Shift
//
// The output is width-K pixels wide. A K-wide window fits width-K+1 times in a
// row; the rightmost position is not produced.
//
// Kernels:
//   - reference.go: brute-force recomputation (correctness oracle)
//   - scalar.go:    running sum, one column per step
//   - vector.go:    running sum in 16-bit lanes, two columns per step
//   - dispatch.go:  row-range partitioning across goroutines

const (
	// K is the window width in pixels.
	K = 128

	// Shift divides a window sum by K.
	Shift = 7

	// Channels is the number of interleaved samples per pixel.
	Channels = 4

	// rowLookahead is the byte offset from a window's first pixel to its last.
	rowLookahead = Channels * (K - 1)
)

// Backend indicates which SIMD capability the lane kernel can map onto.
type Backend int

const (
	BackendGeneric Backend = iota
	BackendSSE41
	BackendAVX2
	BackendNEON
)

func (b Backend) String() string {
	switch b {
	case BackendAVX2:
		return "AVX2"
	case BackendSSE41:
		return "SSE4.1"
	case BackendNEON:
		return "NEON"
	case BackendGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// ActiveBackend reports the capability detected at init.
var ActiveBackend Backend

func init() {
	// The lane kernel needs 8x16-bit add/sub/shift and a byte widen.
	// That is SSE4.1 (PMOVZXBW) on x86 and plain ASIMD on arm64.
	switch {
	case cpu.X86.HasAVX2:
		ActiveBackend = BackendAVX2
	case cpu.X86.HasSSE41:
		ActiveBackend = BackendSSE41
	case cpu.ARM64.HasASIMD:
		ActiveBackend = BackendNEON
	default:
		ActiveBackend = BackendGeneric
	}
	slog.Debug("Box blur kernel initialized", "backend", ActiveBackend.String(), "auto_kernel", resolveAuto().String())
}

// Kernel selects the row filter run for each partition.
type Kernel int

const (
	KernelVector Kernel = iota
	KernelVectorSingle
	KernelScalar
	KernelReference
	KernelAuto
)

func (k Kernel) String() string {
	switch k {
	case KernelVector:
		return "vector"
	case KernelVectorSingle:
		return "vector-single"
	case KernelScalar:
		return "scalar"
	case KernelReference:
		return "reference"
	case KernelAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseKernel maps a kernel name to its Kernel. The empty string means auto.
func ParseKernel(name string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return KernelAuto, nil
	case "vector":
		return KernelVector, nil
	case "vector-single", "single":
		return KernelVectorSingle, nil
	case "scalar":
		return KernelScalar, nil
	case "reference", "ref":
		return KernelReference, nil
	default:
		return KernelAuto, fmt.Errorf("unknown kernel: %q", name)
	}
}

// Resolve turns KernelAuto into a concrete kernel for this CPU.
func (k Kernel) Resolve() Kernel {
	if k == KernelAuto {
		return resolveAuto()
	}
	return k
}

func resolveAuto() Kernel {
	if ActiveBackend == BackendGeneric {
		return KernelScalar
	}
	return KernelVector
}

// rowFilter writes output rows [startRow, startRow+rows). Arguments are
// already validated.
type rowFilter func(img []byte, width, startRow, rows int, result []byte)

func (k Kernel) filter() rowFilter {
	switch k.Resolve() {
	case KernelVectorSingle:
		return vectorSingleRows
	case KernelScalar:
		return scalarRows
	case KernelReference:
		return referenceRows
	default:
		return vectorRows
	}
}

// OutputWidth returns the number of output pixels per row.
func OutputWidth(width int) int {
	return width - K
}

// OutputSize returns the output buffer length in bytes.
func OutputSize(width, height int) int {
	return Channels * OutputWidth(width) * height
}

// Sentinel errors wrapped by PreconditionError.
var (
	ErrWidth      = errors.New("width must exceed the window size")
	ErrHeight     = errors.New("height must be positive")
	ErrInputSize  = errors.New("input buffer size mismatch")
	ErrOutputSize = errors.New("output buffer size mismatch")
	ErrRowRange   = errors.New("row range out of bounds")
)

// PreconditionError describes a rejected call before any buffer access.
type PreconditionError struct {
	Field  string
	Value  int
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("box blur: %s=%d: %s", e.Field, e.Value, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// checkImage validates a whole-image call.
func checkImage(img []byte, width, height int, result []byte) error {
	if width <= K {
		return &PreconditionError{Field: "width", Value: width, Reason: fmt.Sprintf("must be greater than %d", K), Err: ErrWidth}
	}
	if height < 1 {
		return &PreconditionError{Field: "height", Value: height, Reason: "must be at least 1", Err: ErrHeight}
	}
	if want := Channels * width * height; len(img) != want {
		return &PreconditionError{Field: "len(img)", Value: len(img), Reason: fmt.Sprintf("expected %d bytes", want), Err: ErrInputSize}
	}
	if want := OutputSize(width, height); len(result) != want {
		return &PreconditionError{Field: "len(result)", Value: len(result), Reason: fmt.Sprintf("expected %d bytes", want), Err: ErrOutputSize}
	}
	return nil
}

// checkRows validates a row-range call. The image height is implied by the
// input length; result must cover the same number of rows.
func checkRows(img []byte, width, startRow, rows int, result []byte) error {
	if width <= K {
		return &PreconditionError{Field: "width", Value: width, Reason: fmt.Sprintf("must be greater than %d", K), Err: ErrWidth}
	}
	rowBytes := Channels * width
	if len(img)%rowBytes != 0 {
		return &PreconditionError{Field: "len(img)", Value: len(img), Reason: fmt.Sprintf("not a multiple of the row size %d", rowBytes), Err: ErrInputSize}
	}
	height := len(img) / rowBytes
	if startRow < 0 || rows < 0 || startRow+rows > height {
		return &PreconditionError{Field: "startRow", Value: startRow, Reason: fmt.Sprintf("rows [%d, %d) outside image height %d", startRow, startRow+rows, height), Err: ErrRowRange}
	}
	if want := OutputSize(width, height); len(result) != want {
		return &PreconditionError{Field: "len(result)", Value: len(result), Reason: fmt.Sprintf("expected %d bytes", want), Err: ErrOutputSize}
	}
	return nil
}
