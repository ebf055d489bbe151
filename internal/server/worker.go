package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/cwbudde/boxblur/internal/rawio"
	"github.com/cwbudde/boxblur/internal/store"
)

// runJob executes a blur job in the background.
// If reportStore is not nil, a report plus result.bin and result.png are
// saved under the report's directory.
func runJob(ctx context.Context, jm *JobManager, reportStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}
	broadcastStage(jm, jobID, StateRunning, StageLoading)

	slog.Info("Starting job", "job_id", jobID, "input", job.Config.InputPath, "kernel", job.Config.Kernel)

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}

	config := job.Config
	img, width, height, err := loadInput(config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	config.Width, config.Height = width, height

	kernel, err := blur.ParseKernel(config.Kernel)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	opts := blur.Options{
		Multithreaded: config.Multithreaded,
		Workers:       config.Workers,
		Kernel:        kernel,
	}

	workers := 1
	if opts.Multithreaded {
		workers = max(blur.Parallelism(height, opts.Workers), 1)
	}

	err = jm.UpdateJob(jobID, func(j *Job) {
		j.InputWidth = width
		j.InputHeight = height
		j.Backend = blur.ActiveBackend.String()
		j.Kernel = kernel.Resolve().String()
		j.Workers = workers
	})
	if err != nil {
		return err
	}
	slog.Info("Loaded input", "job_id", jobID, "width", width, "height", height)

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}
	broadcastStage(jm, jobID, StateRunning, StageBlur)

	result := make([]byte, max(blur.OutputSize(width, height), 0))
	start := time.Now()
	if err := blur.BlurWithOptions(img, width, height, result, opts); err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("blur failed: %w", err))
		return err
	}
	elapsed := time.Since(start)
	checksum := blur.Checksum(result)
	outWidth := blur.OutputWidth(width)

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}

	var reportID string
	if reportStore != nil {
		broadcastStage(jm, jobID, StateRunning, StageSaving)
		report := store.NewReport(config)
		report.Backend = blur.ActiveBackend.String()
		report.Kernel = kernel.Resolve().String()
		report.Workers = workers
		report.Checksum = checksum
		report.Runs = 1
		report.MeanNanos = elapsed.Nanoseconds()
		report.MinNanos = elapsed.Nanoseconds()
		report.MaxNanos = elapsed.Nanoseconds()

		if err := reportStore.SaveReport(report); err != nil {
			slog.Error("Failed to save report", "job_id", jobID, "error", err)
		} else {
			reportID = report.ID
			if err := saveResultArtifacts(reportStore, report.ID, result, outWidth, height); err != nil {
				// The report itself is what matters; artifacts are a convenience.
				slog.Warn("Failed to save result artifacts", "job_id", jobID, "report_id", report.ID, "error", err)
			}
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.OutputWidth = outWidth
		j.OutputHeight = height
		j.Checksum = checksum
		j.ElapsedNanos = elapsed.Nanoseconds()
		j.ReportID = reportID
		j.Output = result
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"kernel", kernel.Resolve().String(),
		"workers", workers,
		"checksum", checksum,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:        jobID,
		State:        StateCompleted,
		Stage:        StageDone,
		Checksum:     checksum,
		ElapsedNanos: elapsed.Nanoseconds(),
		Timestamp:    time.Now(),
	})

	return nil
}

// loadInput reads the configured input file, or generates a random image
// from the seed when no path is given.
func loadInput(config JobConfig) ([]byte, int, int, error) {
	if config.InputPath != "" {
		img, width, height, err := rawio.Load(config.InputPath, config.Width, config.Height)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to load input: %w", err)
		}
		return img, width, height, nil
	}

	if config.Width <= 0 || config.Height <= 0 {
		return nil, 0, 0, fmt.Errorf("generated input needs positive dimensions, got %dx%d", config.Width, config.Height)
	}
	return rawio.Generate(config.Width, config.Height, config.Seed), config.Width, config.Height, nil
}

// saveResultArtifacts writes result.bin and result.png next to the report.
func saveResultArtifacts(reportStore store.Store, reportID string, result []byte, width, height int) error {
	dir, err := reportStore.ReportDir(reportID)
	if err != nil {
		return err
	}

	binPath := filepath.Join(dir, "result.bin")
	if err := rawio.WriteFile(binPath, result); err != nil {
		return err
	}

	pngPath := filepath.Join(dir, "result.png")
	if err := rawio.SaveImage(pngPath, result, width, height); err != nil {
		return err
	}

	slog.Debug("Result artifacts saved", "report_id", reportID, "bin_path", binPath, "png_path", pngPath)
	return nil
}

// broadcastStage publishes a stage transition for a running job
func broadcastStage(jm *JobManager, jobID string, state JobState, stage string) {
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     state,
		Stage:     stage,
		Timestamp: time.Now(),
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	if uerr := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	}); uerr != nil {
		slog.Warn("Failed to record job failure", "job_id", jobID, "error", uerr)
	}
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateFailed,
		Stage:     StageDone,
		Error:     err.Error(),
		Timestamp: endTime,
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	}); err != nil {
		slog.Warn("Failed to record job cancellation", "job_id", jobID, "error", err)
	}
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCancelled,
		Stage:     StageDone,
		Timestamp: endTime,
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
