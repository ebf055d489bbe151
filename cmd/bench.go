package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/cwbudde/boxblur/internal/store"
	"github.com/spf13/cobra"
)

var (
	benchInput    inputFlags
	benchKernel   kernelFlags
	benchWarmups  int
	benchRuns     int
	benchSave     bool
	benchBaseline string
	benchDataDir  string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time a kernel and verify it against the reference",
	Long: `Runs the kernel --warmups times untimed, then --runs times timed, over the
same input and output buffers. The last output is checked against the
reference kernel. --save stores the result as a report; --baseline compares
against a stored report of the same input.`,
	RunE: runBench,
}

func init() {
	defaults := blur.DefaultBenchConfig()

	benchInput.register(benchCmd)
	benchKernel.register(benchCmd)
	benchCmd.Flags().IntVar(&benchWarmups, "warmups", defaults.Warmups, "Untimed runs before timing")
	benchCmd.Flags().IntVar(&benchRuns, "runs", defaults.Runs, "Timed runs")
	benchCmd.Flags().BoolVar(&benchSave, "save", false, "Save the result as a report")
	benchCmd.Flags().StringVar(&benchBaseline, "baseline", "", "Report ID to compare against")
	benchCmd.Flags().StringVar(&benchDataDir, "data-dir", "./data", "Base directory for report storage")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	img, config, err := benchInput.load()
	if err != nil {
		return err
	}
	opts, err := benchKernel.options(&config)
	if err != nil {
		return err
	}

	var reportStore *store.FSStore
	var baseline *store.Report
	if benchSave || benchBaseline != "" {
		reportStore, err = store.NewFSStore(benchDataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
	}
	if benchBaseline != "" {
		baseline, err = reportStore.LoadReport(benchBaseline)
		if err != nil {
			return fmt.Errorf("failed to load baseline: %w", err)
		}
		if err := baseline.IsCompatible(config); err != nil {
			return fmt.Errorf("baseline %s is not comparable: %w", benchBaseline, err)
		}
	}

	cfg := blur.DefaultBenchConfig()
	cfg.Warmups = benchWarmups
	cfg.Runs = benchRuns
	cfg.Options = opts

	slog.Info("Starting benchmark",
		"width", config.Width,
		"height", config.Height,
		"kernel", opts.Kernel.Resolve().String(),
		"warmups", cfg.Warmups,
		"runs", cfg.Runs,
	)

	res, err := blur.Bench(img, config.Width, config.Height, cfg)
	if err != nil {
		return err
	}

	printBenchResult(config, res)

	if baseline != nil {
		fmt.Println(compareBaseline(baseline, res))
	}

	if benchSave {
		report := reportFromBench(config, cfg, res)
		if err := reportStore.SaveReport(report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		if err := saveTimings(reportStore.BaseDir(), report.ID, res.Durations); err != nil {
			slog.Warn("Failed to save timings", "report_id", report.ID, "error", err)
		}
		fmt.Printf("Saved report %s\n", report.ID)
	}

	if !res.Comparison.Equal() {
		return disagreementError(res.Comparison)
	}
	return nil
}

func printBenchResult(config store.RunConfig, res *blur.BenchResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Input:\t%dx%d\n", config.Width, config.Height)
	fmt.Fprintf(w, "Kernel:\t%s (%s backend, %d workers)\n", res.Kernel, res.Backend, res.Workers)
	fmt.Fprintf(w, "Runs:\t%d\n", len(res.Durations))
	fmt.Fprintf(w, "Mean:\t%s\n", res.Mean.Round(time.Microsecond))
	fmt.Fprintf(w, "Min / Max:\t%s / %s\n", res.Min.Round(time.Microsecond), res.Max.Round(time.Microsecond))
	fmt.Fprintf(w, "Checksum:\t%016x\n", res.Checksum)
	fmt.Fprintf(w, "Reference:\t%016x\n", res.ReferenceChecksum)
	fmt.Fprintf(w, "Disagreements:\t%d\n", res.Comparison.Count)
	if !res.Comparison.Equal() {
		fmt.Fprintf(w, "Max abs diff:\t%d (sum %d)\n", res.Comparison.MaxAbsDiff, res.Comparison.SumAbsDiff)
	}
	w.Flush()
}

// reportFromBench converts a benchmark result into a storable report.
func reportFromBench(config store.RunConfig, cfg blur.BenchConfig, res *blur.BenchResult) *store.Report {
	report := store.NewReport(config)
	report.Backend = res.Backend.String()
	report.Kernel = res.Kernel.String()
	report.Workers = res.Workers
	report.Checksum = res.Checksum
	report.ReferenceChecksum = res.ReferenceChecksum
	report.Disagreements = res.Comparison.Count
	report.Warmups = cfg.Warmups
	report.Runs = cfg.Runs
	report.MeanNanos = res.Mean.Nanoseconds()
	report.MinNanos = res.Min.Nanoseconds()
	report.MaxNanos = res.Max.Nanoseconds()
	return report
}

func saveTimings(baseDir, id string, durations []time.Duration) error {
	tw, err := store.NewTimingWriter(baseDir, id)
	if err != nil {
		return err
	}
	if err := tw.WriteDurations(durations); err != nil {
		tw.Close()
		return err
	}
	return tw.Close()
}

// compareBaseline summarises a run against a stored report.
func compareBaseline(baseline *store.Report, res *blur.BenchResult) string {
	checksum := "match"
	if baseline.Checksum != res.Checksum {
		checksum = fmt.Sprintf("DIFFER (baseline %016x)", baseline.Checksum)
	}

	speedup := 0.0
	if res.Mean > 0 {
		speedup = float64(baseline.MeanNanos) / float64(res.Mean.Nanoseconds())
	}

	return fmt.Sprintf("Baseline %s: %s %s -> %s %s (%.2fx), checksum %s",
		baseline.ID,
		baseline.Kernel, baseline.Mean().Round(time.Microsecond),
		res.Kernel, res.Mean.Round(time.Microsecond),
		speedup, checksum)
}
