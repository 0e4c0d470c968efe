package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show library statistics and recent runs",
	Long: `Show a summary of the catalog: unique tracks, library size, duplicates
quarantined, space saved and the format breakdown.

With --markdown the report is also written to
artifacts/reports/<timestamp>/library.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Bool("markdown", false, "also write a Markdown report")
	reportCmd.Flags().String("out", "", "Output directory for the Markdown report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().Int("runs", 10, "number of recent runs to include")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dbPath := GetConfigString("db", "mcat.db")

	// Reports only read, so they may run beside a scan
	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{NoLock: true})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer db.Close()

	runs, _ := cmd.Flags().GetInt("runs")
	r, err := report.GenerateLibraryReport(ctx, db.Catalog(), runs)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	r.DatabasePath = dbPath

	fmt.Fprint(os.Stdout, report.RenderText(r))

	if md, _ := cmd.Flags().GetBool("markdown"); !md {
		return nil
	}

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join("artifacts", "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outputDir, "library.md")
	if err := report.WriteMarkdownReport(r, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	util.SuccessLog("Report saved to: %s", outputPath)
	return nil
}
