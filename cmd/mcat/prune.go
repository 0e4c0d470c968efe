package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/music-catalog/internal/blocking"
	"github.com/franz/music-catalog/internal/reconcile"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove catalog rows whose files no longer exist",
	Long: `Remove catalog rows, and their fingerprint index entries, for files that
were deleted or moved outside mcat.

Nothing is removed when the media root cannot be listed, and rows below a
library or quarantine root that cannot be listed are kept, so an unmounted
drive never empties the catalog.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringP("media-root", "m", "", "media root that must be reachable")
	pruneCmd.Flags().Bool("nas-mode", false, "tune existence checks for network storage (default: auto-detect)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	bindFlags(cmd, map[string]string{"media-root": "media_root", "nas-mode": "nas_mode"})

	mediaRoot := viper.GetString("media_root")
	if mediaRoot == "" {
		return fmt.Errorf("%w: media root is required (use --media-root or set media_root in config)", util.ErrInvalidConfig)
	}
	dbPath := GetConfigString("db", "mcat.db")

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer db.Close()

	profile := util.TuneForPaths([]string{mediaRoot}, GetOptionalBool("nas_mode"), util.Default())
	pruner := reconcile.New(&reconcile.Config{
		Store:     db,
		MediaRoot: mediaRoot,
		Roots:     []string{GetConfigString("library_root", mediaRoot), viper.GetString("quarantine_root")},
		Blocking:  blockingConfig(),
		Workers:   profile.CheckWorkers,
		Logger:    util.Default(),
	})

	result, err := pruner.Prune(ctx)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	if result.Skipped {
		util.WarnLog("Prune skipped: %s", result.Reason)
		return nil
	}

	for _, path := range result.Removed {
		util.DebugLog("Removed: %s", path)
	}
	util.SuccessLog("Checked %d rows, removed %d", result.Checked, len(result.Removed))
	return nil
}

func blockingConfig() blocking.Config {
	return blocking.Config{
		BlockSize: viper.GetInt("block_size"),
		MaxBlocks: viper.GetInt("max_blocks"),
		MinShared: viper.GetInt("min_shared_blocks"),
	}
}
