package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

var exportCmd = &cobra.Command{
	Use:   "export [file.csv]",
	Short: "Export the catalog as CSV",
	Long: `Export every catalog row, duplicates included, as CSV for spreadsheet
analysis. Without a file argument the CSV is written to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dbPath := GetConfigString("db", "mcat.db")

	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{NoLock: true})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer db.Close()

	var w io.Writer = os.Stdout
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		defer f.Close()
		w = f
	}

	n, err := report.ExportCSV(ctx, db.Catalog(), w)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if len(args) == 1 {
		util.SuccessLog("Exported %d rows to %s", n, args[0])
	}
	return nil
}
