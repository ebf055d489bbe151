package server

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/cwbudde/boxblur/internal/rawio"
	"github.com/cwbudde/boxblur/internal/store"
)

func TestRunJob_Generated(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{
		Width:         300,
		Height:        40,
		Seed:          35,
		Kernel:        "vector",
		Multithreaded: true,
	})

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s (%s)", updated.State, updated.Error)
	}
	if updated.OutputWidth != 300-blur.K || updated.OutputHeight != 40 {
		t.Errorf("Unexpected output size %dx%d", updated.OutputWidth, updated.OutputHeight)
	}
	if updated.Kernel != "vector" {
		t.Errorf("Expected vector kernel, got %s", updated.Kernel)
	}
	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}
	if updated.ReportID != "" {
		t.Error("No report should be saved without a store")
	}

	img := rawio.Generate(300, 40, 35)
	want := make([]byte, blur.OutputSize(300, 40))
	if err := blur.Reference(img, 300, 0, 40, want); err != nil {
		t.Fatalf("Reference failed: %v", err)
	}
	if c := blur.Compare(want, updated.Output, 1); !c.Equal() {
		t.Errorf("Job output differs from reference: %d bytes", c.Count)
	}
	if updated.Checksum != blur.Checksum(want) {
		t.Errorf("Checksum = %x, want %x", updated.Checksum, blur.Checksum(want))
	}
}

func TestRunJob_RawInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.bin")
	img := rawio.Generate(200, 3, 7)
	if err := rawio.WriteFile(path, img); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{InputPath: path, Width: 200, Height: 3, Kernel: "scalar"})

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.InputWidth != 200 || updated.InputHeight != 3 {
		t.Errorf("Unexpected input size %dx%d", updated.InputWidth, updated.InputHeight)
	}
	if len(updated.Output) != blur.OutputSize(200, 3) {
		t.Errorf("Unexpected output length %d", len(updated.Output))
	}
}

func TestRunJob_EncodedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	createTestImage(t, path, 160, 20)

	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{InputPath: path})

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.InputWidth != 160 || updated.InputHeight != 20 {
		t.Errorf("Dimensions should come from the decoded image, got %dx%d", updated.InputWidth, updated.InputHeight)
	}
	if updated.OutputWidth != 32 {
		t.Errorf("Expected output width 32, got %d", updated.OutputWidth)
	}
}

func TestRunJob_SavesReport(t *testing.T) {
	reportStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Width: 200, Height: 20, Seed: 3, Kernel: "auto"})

	if err := runJob(context.Background(), jm, reportStore, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.ReportID == "" {
		t.Fatal("ReportID should be set")
	}

	report, err := reportStore.LoadReport(updated.ReportID)
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	if report.Checksum != updated.Checksum {
		t.Errorf("Report checksum %x, job checksum %x", report.Checksum, updated.Checksum)
	}
	if report.Kernel != blur.KernelAuto.Resolve().String() {
		t.Errorf("Report should store the resolved kernel, got %s", report.Kernel)
	}
	if report.Runs != 1 {
		t.Errorf("Expected 1 run, got %d", report.Runs)
	}

	dir, _ := reportStore.ReportDir(updated.ReportID)
	raw, err := rawio.ReadFile(filepath.Join(dir, "result.bin"), updated.OutputWidth, updated.OutputHeight)
	if err != nil {
		t.Fatalf("result.bin should be readable: %v", err)
	}
	if blur.Checksum(raw) != updated.Checksum {
		t.Error("result.bin does not match job output")
	}
	if _, err := os.Stat(filepath.Join(dir, "result.png")); err != nil {
		t.Errorf("result.png should exist: %v", err)
	}
}

func TestRunJob_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		config JobConfig
	}{
		{"missing file", JobConfig{InputPath: "/nonexistent/image.bin", Width: 200, Height: 2}},
		{"too narrow", JobConfig{Width: blur.K, Height: 2}},
		{"no dimensions", JobConfig{}},
		{"unknown kernel", JobConfig{Width: 200, Height: 2, Kernel: "gpu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jm := NewJobManager()
			job := jm.CreateJob(tt.config)

			if err := runJob(context.Background(), jm, nil, job.ID); err == nil {
				t.Error("runJob should fail")
			}

			updated, _ := jm.GetJob(job.ID)
			if updated.State != StateFailed {
				t.Errorf("Job should be failed, got %s", updated.State)
			}
			if updated.Error == "" {
				t.Error("Error message should be set")
			}

			event, ok := jm.broadcaster.LastEvent(job.ID)
			if !ok || event.State != StateFailed {
				t.Errorf("Expected a failed event, got %+v", event)
			}
		})
	}
}

func TestRunJob_TooNarrowIsPreconditionError(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Width: blur.K, Height: 2})

	err := runJob(context.Background(), jm, nil, job.ID)
	if !errors.Is(err, blur.ErrWidth) {
		t.Errorf("Expected ErrWidth, got %v", err)
	}
}

func TestRunJob_Cancelled(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Width: 200, Height: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runJob(ctx, jm, nil, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
	if updated.Output != nil {
		t.Error("Cancelled job should have no output")
	}
}

func TestRunJob_NotFound(t *testing.T) {
	if err := runJob(context.Background(), NewJobManager(), nil, "missing"); err == nil {
		t.Error("runJob should fail for unknown job")
	}
}

// createTestImage writes a white PNG with a red square
func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	white := color.NRGBA{255, 255, 255, 255}
	red := color.NRGBA{255, 0, 0, 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, white)
		}
	}
	for y := height / 4; y < height/2; y++ {
		for x := width / 4; x < width/2; x++ {
			img.Set(x, y, red)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func TestMarkJobTerminal_UnknownJob(t *testing.T) {
	jm := NewJobManager()

	markJobFailed(jm, "gone", errors.New("boom"))
	event, ok := jm.broadcaster.LastEvent("gone")
	if !ok || event.State != StateFailed || event.Error != "boom" {
		t.Errorf("Expected a failed event for an unknown job, got %+v", event)
	}

	markJobCancelled(jm, "gone")
	event, ok = jm.broadcaster.LastEvent("gone")
	if !ok || event.State != StateCancelled {
		t.Errorf("Expected a cancelled event for an unknown job, got %+v", event)
	}
	if _, exists := jm.GetJob("gone"); exists {
		t.Error("Marking an unknown job should not create it")
	}
}
