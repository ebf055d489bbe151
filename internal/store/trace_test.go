package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTimingWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	id := "report-123"

	writer, err := NewTimingWriter(tmpDir, id)
	if err != nil {
		t.Fatalf("Failed to create timing writer: %v", err)
	}

	entries := []TimingEntry{
		{Run: 0, Nanos: 1000, Timestamp: time.Now()},
		{Run: 1, Nanos: 2000},
		{Run: 2, Nanos: 1500},
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	wantPath := filepath.Join(tmpDir, "reports", id, "timings.jsonl")
	if writer.Path() != wantPath {
		t.Errorf("Path = %s, want %s", writer.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); os.IsNotExist(err) {
		t.Fatalf("Timings file not created: %s", wantPath)
	}

	reader, err := NewTimingReader(tmpDir, id)
	if err != nil {
		t.Fatalf("Failed to create timing reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i].Run != entries[i].Run || got[i].Nanos != entries[i].Nanos {
			t.Errorf("Entry %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
	if got[1].Duration() != 2*time.Microsecond {
		t.Errorf("Duration = %v, want 2µs", got[1].Duration())
	}
}

func TestTimingWriter_WriteDurations(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewTimingWriter(tmpDir, "r")
	if err != nil {
		t.Fatalf("Failed to create timing writer: %v", err)
	}
	durations := []time.Duration{3 * time.Millisecond, time.Millisecond}
	if err := writer.WriteDurations(durations); err != nil {
		t.Fatalf("WriteDurations failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reader, err := NewTimingReader(tmpDir, "r")
	if err != nil {
		t.Fatalf("Failed to create timing reader: %v", err)
	}
	defer reader.Close()

	for i, d := range durations {
		entry, err := reader.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if entry.Run != i || entry.Duration() != d {
			t.Errorf("Entry %d = %+v, want run %d duration %v", i, entry, i, d)
		}
	}
	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTimingWriter_Truncates(t *testing.T) {
	tmpDir := t.TempDir()

	for n := 3; n >= 1; n -= 2 {
		writer, err := NewTimingWriter(tmpDir, "r")
		if err != nil {
			t.Fatalf("Failed to create timing writer: %v", err)
		}
		for i := 0; i < n; i++ {
			writer.Write(TimingEntry{Run: i, Nanos: 1})
		}
		writer.Close()
	}

	reader, err := NewTimingReader(tmpDir, "r")
	if err != nil {
		t.Fatalf("Failed to create timing reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 entry after rewrite, got %d", len(got))
	}
}

func TestTimingWriter_Concurrent(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewTimingWriter(tmpDir, "r")
	if err != nil {
		t.Fatalf("Failed to create timing writer: %v", err)
	}

	const goroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				writer.Write(TimingEntry{Run: g*perGoroutine + i, Nanos: int64(i)})
			}
		}(g)
	}
	wg.Wait()
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reader, err := NewTimingReader(tmpDir, "r")
	if err != nil {
		t.Fatalf("Failed to create timing reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != goroutines*perGoroutine {
		t.Errorf("Expected %d entries, got %d", goroutines*perGoroutine, len(got))
	}
}

func TestTimingReader_NotFound(t *testing.T) {
	_, err := NewTimingReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTimingReader_Malformed(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "reports", "r", "timings.jsonl")
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("{\"run\":0,\"nanos\":5}\nnot-json\n"), 0644)

	reader, err := NewTimingReader(tmpDir, "r")
	if err != nil {
		t.Fatalf("Failed to create timing reader: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Read(); err != nil {
		t.Fatalf("First read failed: %v", err)
	}
	if _, err := reader.Read(); err == nil || err == io.EOF {
		t.Errorf("Expected unmarshal error, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		nanos []int64
		want  TimingStats
	}{
		{"empty", nil, TimingStats{}},
		{"single", []int64{7}, TimingStats{Count: 1, Min: 7, Median: 7, Max: 7}},
		{"odd", []int64{5, 1, 3}, TimingStats{Count: 3, Min: 1, Median: 3, Max: 5}},
		{"even takes lower middle", []int64{4, 1, 3, 2}, TimingStats{Count: 4, Min: 1, Median: 2, Max: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]TimingEntry, len(tt.nanos))
			for i, n := range tt.nanos {
				entries[i] = TimingEntry{Run: i, Nanos: n}
			}
			if got := Summarize(entries); got != tt.want {
				t.Errorf("Summarize = %+v, want %+v", got, tt.want)
			}
		})
	}
}
