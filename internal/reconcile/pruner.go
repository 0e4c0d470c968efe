// Package reconcile keeps the catalog consistent with the filesystem.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/afero"

	"github.com/franz/music-catalog/internal/blocking"
	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

// Pruner removes catalog rows whose files no longer exist
type Pruner struct {
	store     *store.Store
	fs        afero.Fs
	mediaRoot string
	roots     []string
	index     *blocking.Index
	workers   int
	logger    *util.Logger
}

// Config holds pruner configuration
type Config struct {
	Store     *store.Store
	Fs        afero.Fs // defaults to the OS filesystem
	MediaRoot string
	Roots     []string // library and quarantine roots, guarded like MediaRoot
	Blocking  blocking.Config
	Workers   int // concurrent existence checks, default 8
	Logger    *util.Logger
}

// New creates a new Pruner
func New(cfg *Config) *Pruner {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Pruner{
		store:     cfg.Store,
		fs:        fs,
		mediaRoot: cfg.MediaRoot,
		roots:     cfg.Roots,
		index:     blocking.Tracks(cfg.Blocking),
		workers:   workers,
		logger:    util.OrDefault(cfg.Logger),
	}
}

// Result represents pruning results
type Result struct {
	Checked int
	Removed []string
	Skipped bool     // guard tripped, nothing deleted
	Reason  string   // why the guard tripped
	Held    []string // unreachable roots whose rows were kept
}

// CheckRoot verifies the media root exists, is a directory and can be listed
func CheckRoot(fs afero.Fs, root string) error {
	if root == "" {
		return fmt.Errorf("%w: no media root configured", util.ErrRootUnreachable)
	}
	info, err := fs.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", util.ErrRootUnreachable, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", util.ErrRootUnreachable, root)
	}
	if _, err := afero.ReadDir(fs, root); err != nil {
		return fmt.Errorf("%w: %s cannot be listed: %v", util.ErrRootUnreachable, root, err)
	}
	return nil
}

// Prune deletes missing rows and their block index entries in one
// transaction. It refuses to run when the media root is unreachable, and
// keeps every row below any other configured root that is unreachable, so
// an unmounted volume never empties the catalog.
func (p *Pruner) Prune(ctx context.Context) (*Result, error) {
	var result *Result
	err := p.store.TransactionContext(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = p.PruneWith(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PruneWith prunes using q, leaving transaction control to the caller
func (p *Pruner) PruneWith(ctx context.Context, q store.Querier) (*Result, error) {
	if err := CheckRoot(p.fs, p.mediaRoot); err != nil {
		p.logger.Warnf("Skipping prune: %v", err)
		return &Result{Skipped: true, Reason: err.Error()}, nil
	}

	cat := store.NewCatalog(q)
	paths, err := cat.TrackPaths(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Checked: len(paths)}
	if len(paths) == 0 {
		return result, nil
	}

	result.Held = p.unreachableRoots(paths)

	p.logger.Debugf("Checking %d catalogued paths", len(paths))

	// Stat errors other than not-exist keep the row
	mapper := iter.Mapper[string, bool]{MaxGoroutines: p.workers}
	missing := mapper.Map(paths, func(path *string) bool {
		exists, err := afero.Exists(p.fs, *path)
		if err != nil {
			return false
		}
		return !exists
	})

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !missing[i] || below(path, result.Held) {
			continue
		}
		if err := p.index.Remove(ctx, q, path); err != nil {
			return nil, err
		}
		if err := cat.DeleteTrack(ctx, path); err != nil {
			return nil, err
		}
		p.logger.Infof("Pruned missing file: %s", path)
		result.Removed = append(result.Removed, path)
	}

	if len(result.Removed) > 0 {
		p.logger.Successf("Pruned %d of %d catalog entries", len(result.Removed), result.Checked)
	}

	return result, nil
}

// unreachableRoots returns the configured roots that hold catalogued paths
// but cannot be listed
func (p *Pruner) unreachableRoots(paths []string) []string {
	var held []string
	for _, root := range p.roots {
		if root == "" || slices.Contains(held, root) {
			continue
		}
		used := slices.ContainsFunc(paths, func(path string) bool { return below(path, []string{root}) })
		if !used {
			continue
		}
		if err := CheckRoot(p.fs, root); err != nil {
			p.logger.Warnf("Keeping rows below %s: %v", root, err)
			held = append(held, root)
		}
	}
	return held
}

// below reports whether path lies inside one of roots
func below(path string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
