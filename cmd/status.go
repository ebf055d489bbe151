package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cwbudde/boxblur/internal/server"
	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

// jobStatus mirrors the status endpoint's response.
type jobStatus struct {
	server.Job
	Wall            float64 `json:"wall"`
	PixelsPerSecond float64 `json:"pixelsPerSecond"`
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(url string) error {
	var jobs []server.Job
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Input: %s\n", describeInput(job.Config.InputPath, job.Config.Seed))
		fmt.Printf("  Kernel: %s\n", job.Config.Kernel)
		if job.State == server.StateCompleted {
			fmt.Printf("  Output: %dx%d, checksum %016x\n", job.OutputWidth, job.OutputHeight, job.Checksum)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	var status jobStatus
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Input: %s\n", describeInput(status.Config.InputPath, status.Config.Seed))
	fmt.Printf("  Size: %dx%d\n", status.Config.Width, status.Config.Height)
	fmt.Printf("  Kernel: %s\n", status.Config.Kernel)
	fmt.Printf("  Multithreaded: %v\n", status.Config.Multithreaded)
	fmt.Println()

	fmt.Println("Result:")
	if status.Kernel != "" {
		fmt.Printf("  Kernel: %s (%s backend, %d workers)\n", status.Kernel, status.Backend, status.Workers)
	}
	if status.State == server.StateCompleted {
		fmt.Printf("  Output: %dx%d\n", status.OutputWidth, status.OutputHeight)
		fmt.Printf("  Checksum: %016x\n", status.Checksum)
		fmt.Printf("  Blur time: %s\n", time.Duration(status.ElapsedNanos).Round(time.Microsecond))
		if status.PixelsPerSecond > 0 {
			fmt.Printf("  Throughput: %.1f Mpixel/s\n", status.PixelsPerSecond/1e6)
		}
		if status.ReportID != "" {
			fmt.Printf("  Report: %s\n", status.ReportID)
		}
	}
	fmt.Printf("  Wall time: %s\n", time.Duration(status.Wall*float64(time.Second)).Round(time.Millisecond))

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}

	return nil
}

func describeInput(path string, seed int64) string {
	if path != "" {
		return path
	}
	return fmt.Sprintf("generated (seed %d)", seed)
}
