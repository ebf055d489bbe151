package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/spf13/cobra"
)

var (
	runInput   inputFlags
	runKernel  kernelFlags
	runOutPath string
	runVerify  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Blur one image",
	Long: `Filters the input once and writes the (width-128) x height result. A
.bin/.raw/.rgba output is written as headerless bytes, any other extension is
encoded as an image. With --verify the result is checked against the
reference kernel.`,
	RunE: runBlur,
}

func init() {
	runInput.register(runCmd)
	runKernel.register(runCmd)
	runCmd.Flags().StringVar(&runOutPath, "out", "out.png", "Output path")
	runCmd.Flags().BoolVar(&runVerify, "verify", false, "Compare the result with the reference kernel")
	rootCmd.AddCommand(runCmd)
}

func runBlur(cmd *cobra.Command, args []string) error {
	img, config, err := runInput.load()
	if err != nil {
		return err
	}
	opts, err := runKernel.options(&config)
	if err != nil {
		return err
	}

	width, height := config.Width, config.Height
	result := make([]byte, max(blur.OutputSize(width, height), 0))

	start := time.Now()
	if err := blur.BlurWithOptions(img, width, height, result, opts); err != nil {
		return err
	}
	elapsed := time.Since(start)
	checksum := blur.Checksum(result)

	slog.Info("Blur complete",
		"kernel", opts.Kernel.Resolve().String(),
		"backend", blur.ActiveBackend.String(),
		"multithreaded", opts.Multithreaded,
		"elapsed", elapsed,
		"checksum", checksum,
	)

	if runVerify {
		ref := make([]byte, len(result))
		if err := blur.Reference(img, width, 0, height, ref); err != nil {
			return err
		}
		if c := blur.Compare(ref, result, 1); !c.Equal() {
			return disagreementError(c)
		}
		slog.Info("Result matches reference")
	}

	outWidth := blur.OutputWidth(width)
	if err := writeOutput(runOutPath, result, outWidth, height); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Wrote %s (%dx%d, %s, checksum %016x)\n", runOutPath, outWidth, height, elapsed.Round(time.Microsecond), checksum)
	return nil
}
