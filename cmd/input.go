package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/cwbudde/boxblur/internal/rawio"
	"github.com/cwbudde/boxblur/internal/store"
	"github.com/spf13/cobra"
)

// inputFlags selects the image a command filters.
type inputFlags struct {
	path   string
	width  int
	height int
	seed   int64
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "in", "", "Input file (.bin/.raw/.rgba or an encoded image); generated from --seed when empty")
	cmd.Flags().IntVar(&f.width, "width", rawio.DefaultWidth, "Width in pixels for raw and generated inputs")
	cmd.Flags().IntVar(&f.height, "height", rawio.DefaultHeight, "Height in pixels for raw and generated inputs")
	cmd.Flags().Int64Var(&f.seed, "seed", rawio.DefaultSeed, "Seed for generated inputs")
}

// load returns the input buffer and a run config describing it.
func (f *inputFlags) load() ([]byte, store.RunConfig, error) {
	if f.path == "" {
		if f.width <= 0 || f.height <= 0 {
			return nil, store.RunConfig{}, fmt.Errorf("width and height must be positive, got %dx%d", f.width, f.height)
		}
		slog.Info("Generating input", "width", f.width, "height", f.height, "seed", f.seed)
		config := store.RunConfig{Width: f.width, Height: f.height, Seed: f.seed}
		return rawio.Generate(f.width, f.height, f.seed), config, nil
	}

	img, width, height, err := rawio.Load(f.path, f.width, f.height)
	if err != nil {
		return nil, store.RunConfig{}, err
	}
	slog.Info("Loaded input", "path", f.path, "width", width, "height", height)
	return img, store.RunConfig{InputPath: f.path, Width: width, Height: height}, nil
}

// kernelFlags selects the kernel and threading.
type kernelFlags struct {
	kernel       string
	singleThread bool
	workers      int
}

func (f *kernelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kernel, "kernel", "vector", "Kernel: auto, vector, vector-single, scalar, reference")
	cmd.Flags().BoolVar(&f.singleThread, "single-thread", false, "Filter all rows on the calling goroutine")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Maximum row partitions (0 = number of CPUs)")
}

// options parses the flags and records them in config.
func (f *kernelFlags) options(config *store.RunConfig) (blur.Options, error) {
	kernel, err := blur.ParseKernel(f.kernel)
	if err != nil {
		return blur.Options{}, err
	}
	if f.workers < 0 {
		return blur.Options{}, fmt.Errorf("workers cannot be negative, got %d", f.workers)
	}

	config.Kernel = kernel.String()
	config.Multithreaded = !f.singleThread
	config.Workers = f.workers

	return blur.Options{
		Multithreaded: !f.singleThread,
		Workers:       f.workers,
		Kernel:        kernel,
	}, nil
}

// writeOutput saves a buffer as raw bytes or as an encoded image, depending
// on the extension of path.
func writeOutput(path string, buf []byte, width, height int) error {
	if rawio.IsRaw(path) {
		return rawio.WriteFile(path, buf)
	}
	return rawio.SaveImage(path, buf, width, height)
}

// disagreementError describes a kernel result that differs from the reference.
func disagreementError(c blur.Comparison) error {
	if len(c.First) == 0 {
		return fmt.Errorf("result differs from reference in %d bytes", c.Count)
	}
	d := c.First[0]
	return fmt.Errorf("result differs from reference in %d bytes (first at byte %d: want %d, got %d)", c.Count, d.Index, d.Want, d.Got)
}
