package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/engine"
	"github.com/franz/music-catalog/internal/fingerprint"
	"github.com/franz/music-catalog/internal/meta"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/prompt"
	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	Aliases: []string{"run"},
	Short:   "Fingerprint the media root and resolve duplicates",
	Long: `Scan the media root and resolve every audio file against the catalog.

For each new or changed file mcat:
1. Computes its acoustic fingerprint (fpcalc)
2. Looks for the same recording in the catalog
3. Keeps the better copy by technical quality, asking you when unsure
4. Files the winner under its release in the library root
5. Moves the loser to the quarantine root

Catalog rows whose files vanished are pruned first. With --dry-run every
decision is logged but no file is moved and the catalog is left as it was.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	flags := scanCmd.Flags()
	flags.StringP("media-root", "m", "", "directory to scan")
	flags.StringP("library-root", "l", "", "directory releases are filed under (default: media root)")
	flags.String("quarantine-root", "", "directory for duplicates")
	flags.Bool("dry-run", false, "log decisions without touching files or the catalog")
	flags.String("api-key", "", "AcoustID application key")
	flags.Bool("fan-out", false, "place a file in every chosen release")
	flags.Bool("interactive", false, "ask on uncertain matches (default: when attached to a terminal)")
	flags.Bool("preview", true, "offer audio preview while asking")
	flags.Bool("write-tags", true, "write release tags into placed files")
	flags.Bool("skip-prune", false, "do not remove rows of vanished files")
	flags.Bool("nas-mode", false, "tune file operations for network storage (default: auto-detect)")
}

// Flag name to config key
var scanFlagKeys = map[string]string{
	"media-root":      "media_root",
	"library-root":    "library_root",
	"quarantine-root": "quarantine_root",
	"dry-run":         "dry_run",
	"api-key":         "api_key",
	"fan-out":         "fan_out_albums",
	"interactive":     "interactive",
	"preview":         "preview",
	"write-tags":      "write_tags",
	"skip-prune":      "skip_prune",
	"nas-mode":        "nas_mode",
}

func runScan(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, scanFlagKeys)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := util.Default()

	fpcalc := fingerprint.NewFpcalc(s.Fpcalc)
	if !fpcalc.Available() {
		return fmt.Errorf("%s not found in PATH - install Chromaprint: https://acoustid.org/chromaprint", s.Fpcalc)
	}
	if !meta.CheckFFprobeAvailable() {
		util.WarnLog("ffprobe not found in PATH - quality is read from tags only")
	}

	profile := util.TuneForPaths([]string{s.MediaRoot, s.LibraryRoot, s.QuarantineRoot}, s.NASMode, logger)
	if profile.IsNASMode {
		util.DebugLog("%s", util.FormatNASSettings(profile))
	}

	util.InfoLog("Opening catalog: %s", s.DB)
	db, err := store.OpenWithOptions(s.DB, &store.OpenOptions{
		NetworkOptimized: util.IsNetworkPath(s.DB),
	})
	if err != nil {
		if errors.Is(err, util.ErrLocked) {
			return fmt.Errorf("another mcat run is using %s: %w", s.DB, err)
		}
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer db.Close()

	events, err := report.NewEventLogger(s.EventLogDir, eventLevel())
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		events = report.NullLogger()
	}
	defer events.Close()
	if events.Path() != "" {
		util.InfoLog("Event log: %s", events.Path())
	}

	cfg := &engine.Config{
		Store:            db,
		MediaRoot:        s.MediaRoot,
		LibraryRoot:      s.LibraryRoot,
		QuarantineRoot:   s.QuarantineRoot,
		DryRun:           s.DryRun,
		Thresholds:       s.Thresholds,
		AlbumAuto:        s.AlbumAuto,
		Blocking:         s.Blocking,
		PreferredCountry: s.PreferredCountry,
		FanOutAlbums:     s.FanOutAlbums,
		WriteTags:        s.WriteTags,
		CleanupEmptyDirs: s.CleanupEmptyDirs,
		SkipPrune:        s.SkipPrune,
		ShowProgress:     util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet(),
		Storage:          profile,
		Extractor:        fpcalc,
		Prober:           meta.NewProber(s.FFprobe, logger),
		Events:           events,
		Logger:           logger,
	}

	// Interfaces stay nil rather than holding typed nils
	if s.APIKey != "" {
		cfg.Lookup = acoustid.NewClient(&acoustid.Config{
			APIKey: s.APIKey,
			Delay:  s.APIDelay,
			Logger: logger,
		})
	} else {
		util.WarnLog("No AcoustID API key - files are identified from the local history only")
	}
	if s.WriteTags {
		cfg.TagWriter = meta.NewTagWriter(s.FFmpeg, logger)
	}
	if s.Interactive {
		pc := &prompt.Config{Logger: logger}
		if s.Preview {
			pc.Player = prompt.NewPlayer(nil, logger)
		}
		cfg.Human = prompt.NewTerminal(pc)
	} else {
		util.InfoLog("Non-interactive: uncertain matches are skipped for review")
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	util.InfoLog("Media root: %s", s.MediaRoot)
	if s.LibraryRoot != s.MediaRoot {
		util.InfoLog("Library root: %s", s.LibraryRoot)
	}
	util.InfoLog("Quarantine root: %s", s.QuarantineRoot)

	result, err := eng.Run(ctx)
	if result != nil {
		printRunSummary(result)
	}
	if errors.Is(err, policy.ErrQuit) {
		util.WarnLog("Stopped on request; rerun to continue where you left off")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		util.WarnLog("Interrupted; rerun to continue where you left off")
		return nil
	}
	return err
}

func eventLevel() report.EventLevel {
	switch {
	case util.IsQuiet():
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	}
	return report.LevelInfo
}

func printRunSummary(r *engine.Result) {
	if util.IsQuiet() {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	title := "Run " + r.RunID
	if r.DryRun {
		title += " (dry run)"
	}
	t.SetTitle(title)

	if r.Prune != nil {
		t.AppendRow(table.Row{"Pruned rows", len(r.Prune.Removed)})
	}
	t.AppendRows([]table.Row{
		{"Files seen", r.Files},
		{"Unchanged", r.Unchanged},
		{"New", r.New},
		{"Kept new copy", r.KeptNew},
		{"Kept old copy", r.KeptOld},
		{"Skipped", r.Skipped},
		{"Errors", r.Errors},
	})
	if len(r.RemovedDirs) > 0 {
		t.AppendRow(table.Row{"Empty folders removed", len(r.RemovedDirs)})
	}
	t.AppendFooter(table.Row{"Duration", r.Duration.Round(time.Millisecond)})
	t.Render()
}
