package blur

import (
	"fmt"
	"log/slog"
	"time"
)

// BenchConfig controls Bench.
type BenchConfig struct {
	Warmups int
	Runs    int
	Options Options

	// MaxDisagreements caps the number of differences kept in the result.
	MaxDisagreements int
}

// DefaultBenchConfig matches the 300/300 warmup/run split used for the
// 1920x1080 timing runs.
func DefaultBenchConfig() BenchConfig {
	return BenchConfig{
		Warmups:          300,
		Runs:             300,
		Options:          Options{Multithreaded: true},
		MaxDisagreements: 10,
	}
}

// BenchResult holds timings and the verification of the last run.
type BenchResult struct {
	Kernel            Kernel
	Backend           Backend
	Workers           int
	Durations         []time.Duration
	Mean              time.Duration
	Min               time.Duration
	Max               time.Duration
	Checksum          uint64
	ReferenceChecksum uint64
	Comparison        Comparison
	Output            []byte
}

// Bench computes the reference output, then runs the configured kernel
// Warmups+Runs times over the same output buffer, timing the last Runs calls.
func Bench(img []byte, width, height int, cfg BenchConfig) (*BenchResult, error) {
	if cfg.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", cfg.Runs)
	}
	if cfg.Warmups < 0 {
		return nil, fmt.Errorf("warmups cannot be negative, got %d", cfg.Warmups)
	}

	ref := make([]byte, max(OutputSize(width, height), 0))
	if err := BlurWithOptions(img, width, height, ref, Options{Kernel: KernelReference}); err != nil {
		return nil, fmt.Errorf("reference pass failed: %w", err)
	}

	result := make([]byte, len(ref))
	for i := 0; i < cfg.Warmups; i++ {
		if err := BlurWithOptions(img, width, height, result, cfg.Options); err != nil {
			return nil, err
		}
	}

	durations := make([]time.Duration, cfg.Runs)
	var total time.Duration
	for i := range durations {
		start := time.Now()
		if err := BlurWithOptions(img, width, height, result, cfg.Options); err != nil {
			return nil, err
		}
		durations[i] = time.Since(start)
		total += durations[i]
	}

	res := &BenchResult{
		Kernel:            cfg.Options.Kernel.Resolve(),
		Backend:           ActiveBackend,
		Workers:           1,
		Durations:         durations,
		Mean:              total / time.Duration(cfg.Runs),
		Min:               durations[0],
		Max:               durations[0],
		Checksum:          Checksum(result),
		ReferenceChecksum: Checksum(ref),
		Comparison:        Compare(ref, result, cfg.MaxDisagreements),
		Output:            result,
	}
	if cfg.Options.Multithreaded {
		res.Workers = max(Parallelism(height, cfg.Options.Workers), 1)
	}
	for _, d := range durations {
		res.Min = min(res.Min, d)
		res.Max = max(res.Max, d)
	}

	slog.Debug("Box blur benchmark finished",
		"kernel", res.Kernel.String(),
		"workers", res.Workers,
		"mean", res.Mean,
		"checksum", res.Checksum,
		"disagreements", res.Comparison.Count,
	)

	return res, nil
}
