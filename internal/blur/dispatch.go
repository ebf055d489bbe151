package blur

import (
	"log/slog"
	"runtime"
	"sync"
)

// RowGranularity is the minimum number of rows per partition when picking the
// degree of parallelism.
const RowGranularity = 16

// Options configures BlurWithOptions.
type Options struct {
	// Multithreaded enables row partitioning across goroutines.
	Multithreaded bool

	// Workers caps the number of partitions. 0 means runtime.NumCPU().
	Workers int

	// Kernel selects the per-partition row filter. The zero value is
	// KernelVector.
	Kernel Kernel
}

// RowRange is a contiguous block of rows owned by one goroutine.
type RowRange struct {
	Start int
	Rows  int
}

// Blur filters img (width x height RGBA8) into result, which must be exactly
// OutputSize(width, height) bytes. With multithreaded set, rows are split
// across goroutines; the call returns only after every partition is done.
func Blur(img []byte, width, height int, result []byte, multithreaded bool) error {
	return BlurWithOptions(img, width, height, result, Options{Multithreaded: multithreaded})
}

// BlurWithOptions is Blur with an explicit worker cap and kernel.
func BlurWithOptions(img []byte, width, height int, result []byte, opts Options) error {
	if err := checkImage(img, width, height, result); err != nil {
		return err
	}

	filter := opts.Kernel.filter()

	if !opts.Multithreaded {
		filter(img, width, 0, height, result)
		return nil
	}

	degree := Parallelism(height, opts.Workers)
	if degree <= 1 {
		filter(img, width, 0, height, result)
		return nil
	}

	ranges := Partition(height, degree)
	slog.Debug("Box blur partitioned", "height", height, "degree", degree, "ranges", len(ranges), "kernel", opts.Kernel.Resolve().String())

	var wg sync.WaitGroup
	wg.Add(len(ranges))
	for _, r := range ranges {
		go func(r RowRange) {
			defer wg.Done()
			filter(img, width, r.Start, r.Rows, result)
		}(r)
	}
	wg.Wait()

	return nil
}

// Parallelism returns min(height/RowGranularity, workers). workers <= 0 means
// runtime.NumCPU().
func Parallelism(height, workers int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return min(height/RowGranularity, workers)
}

// Partition splits [0, height) into at most degree contiguous ranges of
// ceil(height/degree) rows; the last range takes whatever remains. Every row
// belongs to exactly one range.
func Partition(height, degree int) []RowRange {
	if height <= 0 {
		return nil
	}
	if degree < 1 {
		degree = 1
	}

	stride := (height-1)/degree + 1
	ranges := make([]RowRange, 0, degree)
	for start := 0; start < height; start += stride {
		ranges = append(ranges, RowRange{Start: start, Rows: min(stride, height-start)})
	}
	return ranges
}
