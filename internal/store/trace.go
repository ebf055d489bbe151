package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TimingEntry is one timed run, serialized as a JSON line in timings.jsonl.
type TimingEntry struct {
	Run       int       `json:"run"`
	Nanos     int64     `json:"nanos"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Duration returns the run time.
func (e TimingEntry) Duration() time.Duration {
	return time.Duration(e.Nanos)
}

func timingsPath(baseDir, id string) string {
	return filepath.Join(baseDir, "reports", id, "timings.jsonl")
}

// TimingWriter writes timing entries to a JSONL file.
// It uses buffered I/O and is safe for concurrent use.
type TimingWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTimingWriter creates <baseDir>/reports/<id>/timings.jsonl, truncating
// any existing file.
func NewTimingWriter(baseDir, id string) (*TimingWriter, error) {
	path := timingsPath(baseDir, id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timings file: %w", err)
	}

	return &TimingWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends an entry. It is buffered until Flush or Close.
func (tw *TimingWriter) Write(entry TimingEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal timing entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write timing entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// WriteDurations appends one entry per duration, numbered from 0.
func (tw *TimingWriter) WriteDurations(durations []time.Duration) error {
	for i, d := range durations {
		if err := tw.Write(TimingEntry{Run: i, Nanos: d.Nanoseconds()}); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered data and closes the file.
func (tw *TimingWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close timings file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the timings file.
func (tw *TimingWriter) Path() string {
	return tw.path
}

// TimingReader reads timing entries from a JSONL file.
type TimingReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTimingReader opens the timings file of a report.
func NewTimingReader(baseDir, id string) (*TimingReader, error) {
	file, err := os.Open(timingsPath(baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to open timings file: %w", err)
	}

	return &TimingReader{
		file:    file,
		scanner: bufio.NewScanner(file),
	}, nil
}

// Read returns the next entry, or io.EOF.
func (tr *TimingReader) Read() (*TimingEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan timing line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TimingEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timing entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads all remaining entries.
func (tr *TimingReader) ReadAll() ([]TimingEntry, error) {
	var entries []TimingEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the reader.
func (tr *TimingReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close timings file: %w", err)
	}
	return nil
}

// TimingStats summarises a set of timing entries.
type TimingStats struct {
	Count  int
	Min    time.Duration
	Median time.Duration
	Max    time.Duration
}

// Summarize computes min, median and max. The median of an even count is the
// lower middle value.
func Summarize(entries []TimingEntry) TimingStats {
	if len(entries) == 0 {
		return TimingStats{}
	}

	nanos := make([]int64, len(entries))
	for i, e := range entries {
		nanos[i] = e.Nanos
	}
	sort.Slice(nanos, func(i, j int) bool { return nanos[i] < nanos[j] })

	return TimingStats{
		Count:  len(nanos),
		Min:    time.Duration(nanos[0]),
		Median: time.Duration(nanos[(len(nanos)-1)/2]),
		Max:    time.Duration(nanos[len(nanos)-1]),
	}
}
