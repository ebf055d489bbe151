package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore implements the Store interface on the filesystem.
// Reports are stored as <baseDir>/reports/<id>/report.json with artifacts
// alongside.
//
// Thread-safety: writes go through temp file + rename, so no locks are
// needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) reportDir(id string) string {
	return filepath.Join(fs.baseDir, "reports", id)
}

func (fs *FSStore) reportPath(id string) string {
	return filepath.Join(fs.reportDir(id), "report.json")
}

// ReportDir returns the artifact directory for a report, creating it.
func (fs *FSStore) ReportDir(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("report id cannot be empty")
	}
	dir := fs.reportDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	return dir, nil
}

// SaveReport validates and atomically saves a report.
func (fs *FSStore) SaveReport(report *Report) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return err
	}

	dir, err := fs.ReportDir(report.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	finalPath := filepath.Join(dir, "report.json")
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp report file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	slog.Debug("Report saved", "id", report.ID, "path", finalPath)
	return nil
}

// LoadReport retrieves the report with the given ID.
func (fs *FSStore) LoadReport(id string) (*Report, error) {
	if id == "" {
		return nil, fmt.Errorf("report id cannot be empty")
	}

	path := fs.reportPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}

	slog.Debug("Report loaded", "id", id, "path", path)
	return &report, nil
}

// ListReports returns metadata for all stored reports, oldest first.
// Unreadable reports are skipped with a warning.
func (fs *FSStore) ListReports() ([]ReportInfo, error) {
	reportsDir := filepath.Join(fs.baseDir, "reports")

	entries, err := os.ReadDir(reportsDir)
	if os.IsNotExist(err) {
		return []ReportInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	infos := make([]ReportInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.reportPath(id)); os.IsNotExist(err) {
			continue // artifacts without a report
		}

		report, err := fs.LoadReport(id)
		if err != nil {
			slog.Warn("Failed to load report for listing", "id", id, "error", err)
			continue
		}
		infos = append(infos, report.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	slog.Debug("Listed reports", "count", len(infos))
	return infos, nil
}

// DeleteReport removes the report directory and everything in it.
func (fs *FSStore) DeleteReport(id string) error {
	if id == "" {
		return fmt.Errorf("report id cannot be empty")
	}

	dir := fs.reportDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat report directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove report directory: %w", err)
	}

	slog.Debug("Report deleted", "id", id, "path", dir)
	return nil
}
