package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestReport creates a report with test data.
func createTestReport(id string) *Report {
	return &Report{
		ID: id,
		Config: RunConfig{
			Width:         1920,
			Height:        1080,
			Seed:          35,
			Kernel:        "auto",
			Multithreaded: true,
		},
		Backend:   "avx2",
		Kernel:    "vector",
		Workers:   8,
		Checksum:  0xdeadbeef,
		Warmups:   3,
		Runs:      10,
		MeanNanos: 1500000,
		MinNanos:  1200000,
		MaxNanos:  2100000,
		Timestamp: time.Now(),
	}
}

func TestNewFSStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != dir {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), dir)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveReport(t *testing.T) {
	store, tempDir := setupTestStore(t)
	report := createTestReport("report-1")

	if err := store.SaveReport(report); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "reports", "report-1", "report.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Report file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}
}

func TestSaveReport_Invalid(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveReport(nil); err == nil {
		t.Error("Expected error for nil report")
	}

	report := createTestReport("")
	err := store.SaveReport(report)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if ve.Field != "ID" {
		t.Errorf("Expected field ID, got %s", ve.Field)
	}
}

func TestSaveReport_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	report := createTestReport("report-1")
	if err := store.SaveReport(report); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	report.Checksum = 42
	if err := store.SaveReport(report); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadReport("report-1")
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	if loaded.Checksum != 42 {
		t.Errorf("Expected overwritten checksum 42, got %d", loaded.Checksum)
	}
}

func TestLoadReport(t *testing.T) {
	store, _ := setupTestStore(t)
	original := createTestReport("report-1")

	if err := store.SaveReport(original); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	loaded, err := store.LoadReport("report-1")
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}

	if loaded.ID != original.ID {
		t.Errorf("ID mismatch: expected %s, got %s", original.ID, loaded.ID)
	}
	if loaded.Config != original.Config {
		t.Errorf("Config mismatch: expected %+v, got %+v", original.Config, loaded.Config)
	}
	if loaded.Checksum != original.Checksum {
		t.Errorf("Checksum mismatch: expected %x, got %x", original.Checksum, loaded.Checksum)
	}
	if loaded.MeanNanos != original.MeanNanos {
		t.Errorf("MeanNanos mismatch: expected %d, got %d", original.MeanNanos, loaded.MeanNanos)
	}
	if !loaded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, loaded.Timestamp)
	}
}

func TestLoadReport_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadReport("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing" {
		t.Errorf("Expected NotFoundError with ID, got %v", err)
	}
}

func TestLoadReport_EmptyID(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.LoadReport(""); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestLoadReport_Corrupted(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir := filepath.Join(tempDir, "reports", "broken")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := store.LoadReport("broken"); err == nil {
		t.Error("Expected error for corrupted report")
	}
}

func TestListReports_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected 0 reports, got %d", len(infos))
	}
}

func TestListReports_SortedOldestFirst(t *testing.T) {
	store, _ := setupTestStore(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	// Saved out of order.
	for _, i := range []int{2, 0, 1} {
		r := createTestReport(fmt.Sprintf("report-%d", i))
		r.Timestamp = base.Add(time.Duration(i) * time.Hour)
		if err := store.SaveReport(r); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}

	infos, err := store.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 reports, got %d", len(infos))
	}
	for i, info := range infos {
		want := fmt.Sprintf("report-%d", i)
		if info.ID != want {
			t.Errorf("infos[%d].ID = %s, want %s", i, info.ID, want)
		}
		if info.Width != 1920 || info.Height != 1080 {
			t.Errorf("infos[%d] dimensions = %dx%d", i, info.Width, info.Height)
		}
	}
}

func TestListReports_SkipsInvalid(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveReport(createTestReport("good")); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	// Directory with artifacts only.
	if _, err := store.ReportDir("artifacts-only"); err != nil {
		t.Fatalf("ReportDir failed: %v", err)
	}

	// Corrupted report.
	bad := filepath.Join(tempDir, "reports", "bad")
	os.MkdirAll(bad, 0755)
	os.WriteFile(filepath.Join(bad, "report.json"), []byte("garbage"), 0644)

	// Stray file.
	os.WriteFile(filepath.Join(tempDir, "reports", "stray.txt"), []byte("x"), 0644)

	infos, err := store.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "good" {
		t.Errorf("Expected only the good report, got %+v", infos)
	}
}

func TestDeleteReport(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveReport(createTestReport("report-1")); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	dir, err := store.ReportDir("report-1")
	if err != nil {
		t.Fatalf("ReportDir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "result.bin"), []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	if err := store.DeleteReport("report-1"); err != nil {
		t.Fatalf("DeleteReport failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "reports", "report-1")); !os.IsNotExist(err) {
		t.Error("Report directory should be removed")
	}
	if _, err := store.LoadReport("report-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteReport_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.DeleteReport("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteReport(""); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestReportDir(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir, err := store.ReportDir("abc")
	if err != nil {
		t.Fatalf("ReportDir failed: %v", err)
	}
	if want := filepath.Join(tempDir, "reports", "abc"); dir != want {
		t.Errorf("ReportDir = %s, want %s", dir, want)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected directory to exist: %v", err)
	}

	if _, err := store.ReportDir(""); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestFSStore_ImplementsStore(t *testing.T) {
	var _ Store = (*FSStore)(nil)
}
