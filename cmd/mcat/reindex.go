package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/music-catalog/internal/blocking"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the fingerprint block indexes",
	Long: `Rebuild the block indexes of catalog tracks and fingerprint history from
the stored fingerprints.

Run this after changing block_size or max_blocks; candidates are only found
through blocks cut with the current settings.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dbPath := GetConfigString("db", "mcat.db")

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer db.Close()

	cfg := blockingConfig()
	util.InfoLog("Rebuilding indexes (block size %d, max blocks %d)", cfg.BlockSize, cfg.MaxBlocks)

	var result *blocking.RebuildResult
	err = db.TransactionContext(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = blocking.Rebuild(ctx, tx, cfg)
		return err
	})
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	util.SuccessLog("Indexed %d tracks and %d history fingerprints", result.Tracks, result.History)
	return nil
}
