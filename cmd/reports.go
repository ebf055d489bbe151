package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/boxblur/internal/store"
	"github.com/spf13/cobra"
)

var (
	reportsDataDir string
	keepLast       int
	olderThanDays  int
	forceClean     bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage saved benchmark and job reports",
	Long: `Manage reports written by "bench --save" and by the job server, including
listing, inspecting and cleaning old reports.`,
}

var listReportsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved reports",
	Long:  `Display all reports with ID, timestamp, input size, kernel, mean time, checksum and size on disk.`,
	RunE:  runListReports,
}

var showReportCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show one report",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowReport,
}

var cleanReportsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old reports",
	Long: `Delete old reports based on retention policy.
You can keep only the newest N reports or delete reports older than N days.`,
	RunE: runCleanReports,
}

func init() {
	rootCmd.AddCommand(reportsCmd)

	reportsCmd.AddCommand(listReportsCmd)
	reportsCmd.AddCommand(showReportCmd)
	reportsCmd.AddCommand(cleanReportsCmd)

	reportsCmd.PersistentFlags().StringVar(&reportsDataDir, "data-dir", "./data", "Base directory for report storage")

	cleanReportsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N reports (0 = keep all)")
	cleanReportsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete reports older than N days (0 = no age limit)")
	cleanReportsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func runListReports(cmd *cobra.Command, args []string) error {
	reportStore, err := store.NewFSStore(reportsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	infos, err := reportStore.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No reports found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPORT ID\tTIMESTAMP\tSIZE\tKERNEL\tWORKERS\tMEAN\tCHECKSUM\tDISK")
	fmt.Fprintln(w, "---------\t---------\t----\t------\t-------\t----\t--------\t----")

	for _, info := range infos {
		dir := filepath.Join(reportsDataDir, "reports", info.ID)
		disk := "unknown"
		if size, err := getDirSize(dir); err == nil {
			disk = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%d\t%s\t%016x\t%s\n",
			shortID(info.ID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Width, info.Height,
			info.Kernel,
			info.Workers,
			time.Duration(info.MeanNanos).Round(time.Microsecond),
			info.Checksum,
			disk,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal reports: %d\n", len(infos))
	return nil
}

func runShowReport(cmd *cobra.Command, args []string) error {
	reportStore, err := store.NewFSStore(reportsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	id := args[0]
	report, err := reportStore.LoadReport(id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Report:\t%s\n", report.ID)
	fmt.Fprintf(w, "Timestamp:\t%s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Input:\t%s, %dx%d\n", describeInput(report.Config.InputPath, report.Config.Seed), report.Config.Width, report.Config.Height)
	fmt.Fprintf(w, "Kernel:\t%s (requested %s, %s backend, %d workers)\n", report.Kernel, report.Config.Kernel, report.Backend, report.Workers)
	fmt.Fprintf(w, "Runs:\t%d after %d warmups\n", report.Runs, report.Warmups)
	fmt.Fprintf(w, "Mean:\t%s\n", report.Mean().Round(time.Microsecond))
	fmt.Fprintf(w, "Min / Max:\t%s / %s\n",
		time.Duration(report.MinNanos).Round(time.Microsecond),
		time.Duration(report.MaxNanos).Round(time.Microsecond))
	fmt.Fprintf(w, "Checksum:\t%016x\n", report.Checksum)
	if report.ReferenceChecksum != 0 {
		fmt.Fprintf(w, "Reference:\t%016x\n", report.ReferenceChecksum)
	}
	fmt.Fprintf(w, "Disagreements:\t%d\n", report.Disagreements)

	stats, err := loadTimingStats(reportsDataDir, id)
	switch {
	case err == nil:
		fmt.Fprintf(w, "Median:\t%s (%d samples)\n", stats.Median.Round(time.Microsecond), stats.Count)
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("Failed to read timings", "report_id", id, "error", err)
	}
	w.Flush()

	return nil
}

func loadTimingStats(baseDir, id string) (store.TimingStats, error) {
	tr, err := store.NewTimingReader(baseDir, id)
	if err != nil {
		return store.TimingStats{}, err
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		return store.TimingStats{}, err
	}
	return store.Summarize(entries), nil
}

func runCleanReports(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	reportStore, err := store.NewFSStore(reportsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	infos, err := reportStore.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No reports to clean.")
		return nil
	}

	toDelete := selectReportsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No reports match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d report(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s, %s)\n",
			shortID(info.ID),
			info.Kernel,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := reportStore.DeleteReport(info.ID); err != nil {
			slog.Error("Failed to delete report", "report_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted report", "report_id", info.ID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d report(s), %d failed.\n", deleted, failed)
	return nil
}

// selectReportsForDeletion applies the retention policy: reports older than
// olderThanDays, plus all but the newest keepLast. A zero value disables
// the corresponding rule.
func selectReportsForDeletion(infos []store.ReportInfo, keepLast int, olderThanDays int) []store.ReportInfo {
	selected := make(map[string]bool)
	var toDelete []store.ReportInfo

	add := func(info store.ReportInfo) {
		if !selected[info.ID] {
			selected[info.ID] = true
			toDelete = append(toDelete, info)
		}
	}

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				add(info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.ReportInfo, len(infos))
		copy(sorted, infos)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		for _, info := range sorted[:len(sorted)-keepLast] {
			add(info)
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
