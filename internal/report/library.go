// Package report writes the audit trail of a run and summarises the catalog.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

// LibraryReport is a snapshot of the catalog and its recent runs
type LibraryReport struct {
	GeneratedAt  time.Time
	DatabasePath string
	Stats        *store.LibraryStats
	Runs         []*store.Run
}

// GenerateLibraryReport collects statistics and up to runLimit recent runs
func GenerateLibraryReport(ctx context.Context, cat *store.Catalog, runLimit int) (*LibraryReport, error) {
	stats, err := cat.Stats(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := cat.RecentRuns(ctx, runLimit)
	if err != nil {
		return nil, err
	}
	return &LibraryReport{
		GeneratedAt: time.Now(),
		Stats:       stats,
		Runs:        runs,
	}, nil
}

// RenderText renders the report as console tables
func RenderText(r *LibraryReport) string {
	var b strings.Builder

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("MUSIC LIBRARY REPORT")
	tw.AppendRows([]table.Row{
		{"Total unique tracks", humanize.Comma(int64(r.Stats.UniqueTracks))},
		{"Library size", util.FormatBytes(r.Stats.LibraryBytes)},
		{"Duplicates removed", humanize.Comma(int64(r.Stats.Duplicates))},
		{"Storage space saved", util.FormatBytes(r.Stats.DuplicateBytes)},
		{"Albums", humanize.Comma(int64(r.Stats.Albums))},
		{"Known fingerprints", humanize.Comma(int64(r.Stats.HistoryEntries))},
	})
	if r.Stats.Unprocessed > 0 {
		tw.AppendRow(table.Row{"Unprocessed", humanize.Comma(int64(r.Stats.Unprocessed))})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	b.WriteString(tw.Render())
	b.WriteString("\n")

	if len(r.Stats.Formats) > 0 {
		ft := table.NewWriter()
		ft.SetStyle(table.StyleRounded)
		ft.AppendHeader(table.Row{"Format", "Files", "Size"})
		for _, f := range r.Stats.Formats {
			ft.AppendRow(table.Row{strings.ToUpper(formatLabel(f.Format)), f.Count, util.FormatBytes(f.Bytes)})
		}
		ft.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
		})
		b.WriteString(ft.Render())
		b.WriteString("\n")
	}

	return b.String()
}

func formatLabel(format string) string {
	if format == "" {
		return "unknown"
	}
	return format
}

// WriteMarkdownReport writes the report as Markdown
func WriteMarkdownReport(r *LibraryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder
	md.WriteString("# Music Catalog - Library Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05")))
	if r.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", r.DatabasePath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Total Unique Tracks | %d |\n", r.Stats.UniqueTracks))
	md.WriteString(fmt.Sprintf("| Library Size | %s |\n", util.FormatBytes(r.Stats.LibraryBytes)))
	md.WriteString(fmt.Sprintf("| Duplicates Removed | %d |\n", r.Stats.Duplicates))
	md.WriteString(fmt.Sprintf("| Storage Space Saved | %s |\n", util.FormatBytes(r.Stats.DuplicateBytes)))
	md.WriteString(fmt.Sprintf("| Albums | %d |\n", r.Stats.Albums))
	md.WriteString(fmt.Sprintf("| Known Fingerprints | %d |\n", r.Stats.HistoryEntries))
	if r.Stats.Unprocessed > 0 {
		md.WriteString(fmt.Sprintf("| Unprocessed | %d |\n", r.Stats.Unprocessed))
	}
	md.WriteString("\n")

	if len(r.Stats.Formats) > 0 {
		md.WriteString("## Format Breakdown\n\n")
		md.WriteString("| Format | Files | Size |\n")
		md.WriteString("|--------|-------|------|\n")
		for _, f := range r.Stats.Formats {
			md.WriteString(fmt.Sprintf("| %s | %d | %s |\n", strings.ToUpper(formatLabel(f.Format)), f.Count, util.FormatBytes(f.Bytes)))
		}
		md.WriteString("\n")
	}

	if len(r.Runs) > 0 {
		md.WriteString("## Recent Runs\n\n")
		md.WriteString("| Started | Status | Dry Run | Processed | Kept New | Kept Old | Skipped | Errors |\n")
		md.WriteString("|---------|--------|---------|-----------|----------|----------|---------|--------|\n")
		for _, run := range r.Runs {
			md.WriteString(fmt.Sprintf("| %s | %s | %t | %d | %d | %d | %d | %d |\n",
				run.StartedAt.Local().Format("2006-01-02 15:04"), run.Status, run.DryRun,
				run.Processed, run.KeptNew, run.KeptOld, run.Skipped, run.Errors))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by mcat - Music Catalog*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
