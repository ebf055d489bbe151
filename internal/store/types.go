package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunConfig describes one box blur run. It is shared by the CLI, the job
// server and stored reports.
type RunConfig struct {
	// InputPath is a raw buffer (.bin/.raw/.rgba) or an encoded image. When
	// empty, the input is generated from Seed.
	InputPath string `json:"inputPath,omitempty"`

	// Width and Height are required for raw and generated inputs; for encoded
	// images they are filled in after decoding.
	Width  int `json:"width"`
	Height int `json:"height"`

	Seed          int64  `json:"seed,omitempty"`
	Kernel        string `json:"kernel"`
	Multithreaded bool   `json:"multithreaded"`
	Workers       int    `json:"workers,omitempty"`
}

// Report is the persisted outcome of a benchmark or server job.
type Report struct {
	// ID uniquely identifies the report (UUID).
	ID string `json:"id"`

	Config RunConfig `json:"config"`

	// Backend is the SIMD capability detected on the machine that ran it.
	Backend string `json:"backend"`

	// Kernel is the concrete kernel after resolving "auto".
	Kernel string `json:"kernel"`

	// Workers is the number of row partitions actually used.
	Workers int `json:"workers"`

	Checksum          uint64 `json:"checksum"`
	ReferenceChecksum uint64 `json:"referenceChecksum,omitempty"`
	Disagreements     int    `json:"disagreements"`

	Warmups int `json:"warmups"`
	Runs    int `json:"runs"`

	MeanNanos int64 `json:"meanNanos"`
	MinNanos  int64 `json:"minNanos"`
	MaxNanos  int64 `json:"maxNanos"`

	Timestamp time.Time `json:"timestamp"`
}

// ReportInfo is the listing view of a report.
type ReportInfo struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Kernel        string    `json:"kernel"`
	Workers       int       `json:"workers"`
	Checksum      uint64    `json:"checksum"`
	Disagreements int       `json:"disagreements"`
	MeanNanos     int64     `json:"meanNanos"`
}

// NewReport creates a report with a fresh ID and the current time.
func NewReport(config RunConfig) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Config:    config,
		Timestamp: time.Now(),
	}
}

// Mean returns the mean run time.
func (r *Report) Mean() time.Duration {
	return time.Duration(r.MeanNanos)
}

// ToInfo converts a full Report to ReportInfo.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		Width:         r.Config.Width,
		Height:        r.Config.Height,
		Kernel:        r.Kernel,
		Workers:       r.Workers,
		Checksum:      r.Checksum,
		Disagreements: r.Disagreements,
		MeanNanos:     r.MeanNanos,
	}
}

// Validate checks that the report is complete enough to persist.
func (r *Report) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Config.Width <= 0 {
		return &ValidationError{Field: "Config.Width", Reason: "must be positive"}
	}
	if r.Config.Height <= 0 {
		return &ValidationError{Field: "Config.Height", Reason: "must be positive"}
	}
	if r.Kernel == "" {
		return &ValidationError{Field: "Kernel", Reason: "cannot be empty"}
	}
	if r.Runs < 0 {
		return &ValidationError{Field: "Runs", Reason: "cannot be negative"}
	}
	if r.Warmups < 0 {
		return &ValidationError{Field: "Warmups", Reason: "cannot be negative"}
	}
	if r.Disagreements < 0 {
		return &ValidationError{Field: "Disagreements", Reason: "cannot be negative"}
	}
	if r.MinNanos > r.MaxNanos {
		return &ValidationError{Field: "MinNanos", Reason: "cannot exceed MaxNanos"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether a run with config can be compared against this
// report: same input and dimensions. Kernel and threading may differ.
func (r *Report) IsCompatible(config RunConfig) error {
	if r.Config.InputPath != config.InputPath {
		return &CompatibilityError{
			Field:    "InputPath",
			Expected: r.Config.InputPath,
			Actual:   config.InputPath,
		}
	}
	if r.Config.InputPath == "" && r.Config.Seed != config.Seed {
		return &CompatibilityError{
			Field:    "Seed",
			Expected: fmt.Sprintf("%d", r.Config.Seed),
			Actual:   fmt.Sprintf("%d", config.Seed),
		}
	}
	if r.Config.Width != config.Width || r.Config.Height != config.Height {
		return &CompatibilityError{
			Field:    "Dimensions",
			Expected: fmt.Sprintf("%dx%d", r.Config.Width, r.Config.Height),
			Actual:   fmt.Sprintf("%dx%d", config.Width, config.Height),
		}
	}
	return nil
}

// CompatibilityError represents a report compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
