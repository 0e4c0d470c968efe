// Package engine drives a catalog run: prune, scan, then resolve every file
// against the catalog one at a time.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/blocking"
	"github.com/franz/music-catalog/internal/fingerprint"
	"github.com/franz/music-catalog/internal/fsops"
	"github.com/franz/music-catalog/internal/meta"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/quality"
	"github.com/franz/music-catalog/internal/reconcile"
	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/scan"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

// Extractor computes the acoustic fingerprint of a file
type Extractor interface {
	Extract(ctx context.Context, path string) (fingerprint.Result, error)
}

// Lookup resolves a fingerprint to candidate releases
type Lookup interface {
	Lookup(ctx context.Context, fingerprint string, duration int) ([]acoustid.Candidate, error)
}

// TagWriter writes tags into a file in place
type TagWriter interface {
	WriteTags(ctx context.Context, path string, t meta.Tags) error
}

// Prober reads the technical attributes of a file
type Prober interface {
	Probe(ctx context.Context, path string) (quality.Attributes, error)
}

// Human settles what the policy leaves open
type Human interface {
	ResolveConflict(ctx context.Context, c policy.Conflict) (policy.Choice, error)
	ChooseAlbums(ctx context.Context, path string, cands []acoustid.Candidate) ([]int, policy.Choice, error)
	Close() error
}

// DefaultAlbumAuto is the lookup similarity above which the top release is
// chosen without asking
const DefaultAlbumAuto = 0.98

// Config holds everything a run needs. Collaborators left nil disable the
// corresponding step: no Lookup means local identification only, no
// TagWriter means no tagging, no Human means non-interactive.
type Config struct {
	Store          *store.Store
	Fs             afero.Fs // defaults to the OS filesystem
	MediaRoot      string
	LibraryRoot    string // defaults to MediaRoot
	QuarantineRoot string

	DryRun           bool
	Thresholds       policy.Thresholds
	AlbumAuto        float64
	Blocking         blocking.Config
	PreferredCountry string
	FanOutAlbums     bool // place a file in every chosen release, not just the first
	WriteTags        bool
	CleanupEmptyDirs bool
	SkipPrune        bool
	ShowProgress     bool
	Storage          *util.StorageProfile // buffer, workers and retries; local defaults when nil

	Extractor Extractor
	Lookup    Lookup
	TagWriter TagWriter
	Prober    Prober
	Human     Human

	Events *report.EventLogger
	Logger *util.Logger
}

// Engine runs the catalog pipeline
type Engine struct {
	cfg       Config
	store     *store.Store
	fs        afero.Fs
	relocator *fsops.Relocator
	scanner   *scan.Scanner
	pruner    *reconcile.Pruner
	tracks    *blocking.Index
	history   *blocking.Index
	events    *report.EventLogger
	logger    *util.Logger

	// set for the duration of a dry run; all reads and writes go through it
	tx  *sql.Tx
	bar *progressbar.ProgressBar
}

// New validates cfg and creates an engine
func New(cfg *Config) (*Engine, error) {
	c := *cfg
	if c.Store == nil {
		return nil, fmt.Errorf("%w: store is required", util.ErrInvalidConfig)
	}
	if c.MediaRoot == "" || c.QuarantineRoot == "" {
		return nil, fmt.Errorf("%w: media root and quarantine root are required", util.ErrInvalidConfig)
	}
	if c.Extractor == nil || c.Prober == nil {
		return nil, fmt.Errorf("%w: extractor and prober are required", util.ErrInvalidConfig)
	}
	if c.LibraryRoot == "" {
		c.LibraryRoot = c.MediaRoot
	}
	if c.Thresholds == (policy.Thresholds{}) {
		c.Thresholds = policy.DefaultThresholds()
	}
	if err := c.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if c.AlbumAuto <= 0 {
		c.AlbumAuto = DefaultAlbumAuto
	}
	if c.Blocking == (blocking.Config{}) {
		c.Blocking = blocking.DefaultConfig()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	c.MediaRoot = filepath.Clean(c.MediaRoot)
	c.LibraryRoot = filepath.Clean(c.LibraryRoot)
	c.QuarantineRoot = filepath.Clean(c.QuarantineRoot)

	logger := util.OrDefault(c.Logger)
	if c.Storage == nil {
		c.Storage = util.LocalStorageProfile()
	}

	return &Engine{
		cfg:   c,
		store: c.Store,
		fs:    c.Fs,
		relocator: fsops.New(&fsops.Config{
			Fs:         c.Fs,
			DryRun:     c.DryRun,
			BufferSize: c.Storage.BufferSize,
			Retry:      c.Storage.Retry,
			Logger:     logger,
		}),
		scanner: scan.New(&scan.Config{
			Fs:           c.Fs,
			Exclude:      []string{c.QuarantineRoot},
			ShowProgress: c.ShowProgress,
			Logger:       logger,
		}),
		pruner: reconcile.New(&reconcile.Config{
			Store:     c.Store,
			Fs:        c.Fs,
			MediaRoot: c.MediaRoot,
			Roots:     []string{c.LibraryRoot, c.QuarantineRoot},
			Blocking:  c.Blocking,
			Workers:   c.Storage.CheckWorkers,
			Logger:    logger,
		}),
		tracks:  blocking.Tracks(c.Blocking),
		history: blocking.History(c.Blocking),
		events:  c.Events,
		logger:  logger,
	}, nil
}

// Outcome is what happened to one file
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNew       Outcome = "new"
	OutcomeKeptNew   Outcome = "kept-new"
	OutcomeKeptOld   Outcome = "kept-old"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
)

// Result summarises a run
type Result struct {
	RunID       string
	DryRun      bool
	Prune       *reconcile.Result
	Files       int
	Unchanged   int
	New         int
	KeptNew     int
	KeptOld     int
	Skipped     int
	Errors      int
	RemovedDirs []string
	Aborted     bool
	Duration    time.Duration
}

func (r *Result) count(o Outcome) {
	switch o {
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeNew:
		r.New++
	case OutcomeKeptNew:
		r.KeptNew++
	case OutcomeKeptOld:
		r.KeptOld++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeError:
		r.Errors++
	}
}

// Run executes one pass over the media root. A quit from the human ends
// the run with policy.ErrQuit after the in-flight file was left untouched.
// Store failures abort the run and are returned.
func (e *Engine) Run(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	runID := e.events.RunID()
	if runID == "" {
		runID = uuid.NewString()
	}
	result = &Result{RunID: runID, DryRun: e.cfg.DryRun}

	run := &store.Run{ID: runID, DryRun: e.cfg.DryRun}
	if err := e.store.Catalog().StartRun(ctx, run); err != nil {
		return nil, err
	}
	e.events.LogRun("start", e.cfg.DryRun, map[string]string{"media_root": e.cfg.MediaRoot})

	defer func() {
		if e.tx != nil {
			e.tx.Rollback()
			e.tx = nil
		}
		e.finishProgress()
		result.Duration = time.Since(start)
		e.finishRun(run, result, err)
	}()

	if e.cfg.DryRun {
		e.logger.Infof("[dry-run] No files will be moved or tagged, catalog changes are rolled back")
		if e.tx, err = e.store.Begin(ctx); err != nil {
			return result, err
		}
	}

	if err := e.prune(ctx, result); err != nil {
		return result, err
	}

	scanned, err := e.scanner.Scan(ctx, e.cfg.MediaRoot)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("%w: %v", util.ErrRootUnreachable, err)
	}
	result.Files = len(scanned.Files)
	result.Errors += len(scanned.Errors)

	e.startProgress(len(scanned.Files))
	for _, path := range scanned.Files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, err := e.processFile(ctx, path)
		if errors.Is(err, policy.ErrQuit) {
			e.logger.Warnf("Quit requested, stopping run")
			result.Aborted = true
			return result, err
		}
		if err != nil {
			return result, fmt.Errorf("processing %s: %w", path, err)
		}
		result.count(outcome)
		e.advanceProgress()
	}
	e.finishProgress()

	if e.cfg.CleanupEmptyDirs && !e.cfg.DryRun {
		result.RemovedDirs = e.cleanup()
	}

	e.logger.Successf("Run complete: %d files, %d new, %d kept new, %d kept old, %d unchanged, %d skipped, %d errors",
		result.Files, result.New, result.KeptNew, result.KeptOld, result.Unchanged, result.Skipped, result.Errors)
	return result, nil
}

func (e *Engine) prune(ctx context.Context, result *Result) error {
	if e.cfg.SkipPrune {
		return nil
	}

	var pr *reconcile.Result
	var err error
	if e.tx != nil {
		pr, err = e.pruner.PruneWith(ctx, e.tx)
	} else {
		pr, err = e.pruner.Prune(ctx)
	}
	if err != nil {
		return err
	}

	result.Prune = pr
	for _, path := range pr.Removed {
		e.events.LogPrune(path)
	}
	return nil
}

func (e *Engine) cleanup() []string {
	var removed []string
	for _, root := range uniqueRoots(e.cfg.MediaRoot, e.cfg.LibraryRoot) {
		dirs, err := reconcile.CleanupEmptyDirs(e.fs, root, e.logger)
		if err != nil {
			e.logger.Warnf("Skipping empty folder cleanup of %s: %v", root, err)
			continue
		}
		removed = append(removed, dirs...)
	}
	return removed
}

func uniqueRoots(roots ...string) []string {
	var out []string
	for _, r := range roots {
		dup := false
		for _, o := range out {
			if o == r {
				dup = true
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

// finishRun records the outcome of the run outside any dry-run transaction
func (e *Engine) finishRun(run *store.Run, result *Result, runErr error) {
	run.Status = store.RunCompleted
	switch {
	case result.Aborted || errors.Is(runErr, context.Canceled):
		run.Status = store.RunAborted
	case runErr != nil:
		run.Status = store.RunFailed
	}
	run.Processed = result.Files - result.Unchanged
	run.KeptNew = result.KeptNew
	run.KeptOld = result.KeptOld
	run.Skipped = result.Skipped
	run.Errors = result.Errors

	if err := e.store.Catalog().FinishRun(context.Background(), run); err != nil {
		e.logger.Errorf("Failed to record run: %v", err)
	}
	e.events.LogRun("finish", e.cfg.DryRun, map[string]string{"status": run.Status})
}

// catalog returns the catalog view reads should use
func (e *Engine) catalog() *store.Catalog {
	return store.NewCatalog(e.querier())
}

func (e *Engine) querier() store.Querier {
	if e.tx != nil {
		return e.tx
	}
	return e.store.DB()
}

// atomically applies the catalog writes of one file as a unit: a savepoint
// inside the dry-run transaction, otherwise a transaction of its own
func (e *Engine) atomically(ctx context.Context, fn func(q store.Querier) error) error {
	if e.tx != nil {
		return store.Savepoint(ctx, e.tx, "item", func() error { return fn(e.tx) })
	}
	return e.store.TransactionContext(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

func (e *Engine) startProgress(total int) {
	if !e.cfg.ShowProgress || total == 0 || e.logger.IsQuiet() || !util.IsTerminal(os.Stdout.Fd()) {
		return
	}
	e.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (e *Engine) advanceProgress() {
	if e.bar != nil {
		e.bar.Add(1)
	}
}

// pauseProgress clears the bar so a prompt is not drawn over
func (e *Engine) pauseProgress() {
	if e.bar != nil {
		e.bar.Clear()
	}
}

func (e *Engine) finishProgress() {
	if e.bar != nil {
		e.bar.Finish()
		e.bar = nil
	}
}

// Close releases the interactive collaborator, stopping any preview
func (e *Engine) Close() error {
	e.finishProgress()
	if e.cfg.Human != nil {
		return e.cfg.Human.Close()
	}
	return nil
}
