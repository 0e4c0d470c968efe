package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/fsops"
	"github.com/franz/music-catalog/internal/meta"
	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/store"
)

// move is one physical change, kept so it can be reversed when the catalog
// write that should follow it fails
type move struct {
	from, to string
	copied   bool
}

type journal struct {
	fs     afero.Fs
	dryRun bool
	moves  []move
}

func (j *journal) record(from, to string, copied bool) {
	if from != to {
		j.moves = append(j.moves, move{from: from, to: to, copied: copied})
	}
}

// undo reverses the recorded moves, newest first. Copies are removed.
func (j *journal) undo() error {
	if j.dryRun {
		return nil
	}
	var firstErr error
	for i := len(j.moves) - 1; i >= 0; i-- {
		m := j.moves[i]
		var err error
		if m.copied {
			err = j.fs.Remove(m.to)
		} else {
			err = j.fs.Rename(m.to, m.from)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	j.moves = nil
	return firstErr
}

// placement is the item's row in one release, or in place without one
type placement struct {
	path string
	cand *acoustid.Candidate
}

// demotion is a canonical track moved to quarantine
type demotion struct {
	track   *store.Track
	to      string
	missing bool // file already gone, drop the row instead
}

// pickPlan is what happens to one chosen release before anything moves
type pickPlan struct {
	cand    *acoustid.Candidate
	replace *store.Track // canonical copy the item supersedes there
	better  *store.Track // canonical copy that outranks the item there
}

// planPicks checks every chosen release for a canonical copy other than the
// item and the track it replaces
func (e *Engine) planPicks(ctx context.Context, it *item, old *store.Track, picks []acoustid.Candidate) ([]pickPlan, error) {
	cat := e.catalog()
	plans := make([]pickPlan, len(picks))
	for i := range picks {
		cand := &picks[i]
		plans[i].cand = cand
		current, err := cat.CanonicalInAlbum(ctx, cand.AcoustID, cand.ReleaseID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.Path == it.path || (old != nil && current.Path == old.Path) {
			continue
		}
		if it.score <= current.QualityScore {
			plans[i].better = current
		} else {
			plans[i].replace = current
		}
	}
	return plans, nil
}

// keepNew makes the item canonical: the replaced track (if any) goes to
// quarantine and the item is placed into every chosen release. When every
// chosen release already holds a better copy the item is quarantined instead
// and the replaced track stays canonical.
func (e *Engine) keepNew(ctx context.Context, it *item, old *store.Track) (Outcome, error) {
	id, outcome, err := e.identify(ctx, it)
	if err != nil || id == nil {
		return outcome, err
	}
	e.events.LogIdentify(it.path, id.acoustID, releaseIDs(id.picks), id.source)

	plans, err := e.planPicks(ctx, it, old, id.picks)
	if err != nil {
		return "", err
	}
	if len(plans) > 0 {
		var better *store.Track
		for _, p := range plans {
			if p.better == nil {
				better = nil
				break
			}
			better = p.better
		}
		if better != nil {
			e.logger.Infof("Every chosen release already holds a better copy of %s", filepath.Base(it.path))
			return e.keepOld(ctx, it, better)
		}
	}

	j := &journal{fs: e.fs, dryRun: e.cfg.DryRun}
	var demoted []demotion

	if old != nil {
		d, err := e.quarantineTrack(ctx, j, old, "replaced by "+it.path)
		if err != nil {
			return e.abandon(j, report.EventQuarantine, old.Path, err), nil
		}
		demoted = append(demoted, d)
	}

	var placed []placement
	source := it.path
	sourceGone := false
	quarantined := ""

	if len(plans) == 0 {
		placed = append(placed, placement{path: it.path})
	}
	for i, p := range plans {
		cand := p.cand
		last := i == len(plans)-1

		if p.better != nil {
			e.logger.Infof("%s already holds a better copy of %s", cand.Album, filepath.Base(it.path))
			if last {
				dest, err := e.relocator.Move(ctx, source, e.cfg.QuarantineRoot, "")
				if err != nil {
					return e.abandon(j, report.EventQuarantine, source, err), nil
				}
				j.record(source, dest, false)
				e.events.LogQuarantine(source, dest, "release "+cand.ReleaseID+" holds a better copy", e.cfg.DryRun)
				quarantined = dest
				sourceGone = dest != source
			}
			continue
		}
		if p.replace != nil {
			d, err := e.quarantineTrack(ctx, j, p.replace, "replaced in release "+cand.ReleaseID)
			if err != nil {
				return e.abandon(j, report.EventQuarantine, p.replace.Path, err), nil
			}
			demoted = append(demoted, d)
		}

		dest, err := e.place(ctx, j, source, cand, last)
		if err != nil {
			return e.abandon(j, report.EventMove, source, err), nil
		}
		if last && dest != source {
			sourceGone = true
		}
		placed = append(placed, placement{path: dest, cand: cand})
	}

	rows := make([]*store.Track, 0, len(placed))
	for _, p := range placed {
		rows = append(rows, e.placedTrack(it, id, p))
	}

	err = e.atomically(ctx, func(q store.Querier) error {
		c := store.NewCatalog(q)
		if sourceGone {
			if err := e.dropTrack(ctx, c, q, it.path); err != nil {
				return err
			}
		}
		for _, d := range demoted {
			if err := e.applyDemotion(ctx, c, q, d); err != nil {
				return err
			}
		}
		for i, row := range rows {
			if err := c.UpsertTrack(ctx, row); err != nil {
				return err
			}
			if err := e.tracks.Replace(ctx, q, row.Path, row.Fingerprint); err != nil {
				return err
			}
			if cand := placed[i].cand; cand != nil {
				if err := c.EnsureAlbum(ctx, &store.Album{
					ReleaseID:   cand.ReleaseID,
					Title:       cand.Album,
					AlbumArtist: cand.AlbumArtist,
					ReleaseYear: cand.Year,
					Country:     cand.Country,
				}); err != nil {
					return err
				}
			}
		}
		if quarantined != "" {
			dup := it.track(quarantined)
			dup.AcoustID = id.acoustID
			dup.IsDuplicate = true
			if err := c.UpsertTrack(ctx, dup); err != nil {
				return err
			}
		}
		return e.recordHistory(ctx, c, q, it.fp.Fingerprint, id.acoustID)
	})
	if err != nil {
		if uerr := j.undo(); uerr != nil {
			e.logger.Errorf("Failed to undo file moves for %s: %v", it.path, uerr)
		}
		return "", err
	}

	switch {
	case old != nil:
		return OutcomeKeptNew, nil
	default:
		return OutcomeNew, nil
	}
}

// keepOld leaves the canonical track alone and quarantines the item
func (e *Engine) keepOld(ctx context.Context, it *item, old *store.Track) (Outcome, error) {
	j := &journal{fs: e.fs, dryRun: e.cfg.DryRun}

	dest, err := e.relocator.Move(ctx, it.path, e.cfg.QuarantineRoot, "")
	if err != nil {
		return e.abandon(j, report.EventQuarantine, it.path, err), nil
	}
	j.record(it.path, dest, false)
	e.events.LogQuarantine(it.path, dest, "duplicate of "+old.Path, e.cfg.DryRun)

	dup := it.track(dest)
	dup.AcoustID = old.AcoustID
	dup.IsDuplicate = true
	e.restat(dup)

	err = e.atomically(ctx, func(q store.Querier) error {
		c := store.NewCatalog(q)
		if dest != it.path {
			if err := e.dropTrack(ctx, c, q, it.path); err != nil {
				return err
			}
		}
		if err := c.UpsertTrack(ctx, dup); err != nil {
			return err
		}
		return e.recordHistory(ctx, c, q, it.fp.Fingerprint, old.AcoustID)
	})
	if err != nil {
		if uerr := j.undo(); uerr != nil {
			e.logger.Errorf("Failed to undo quarantine of %s: %v", it.path, uerr)
		}
		return "", err
	}
	return OutcomeKeptOld, nil
}

// quarantineTrack moves a canonical track's file to quarantine. A file that
// has already vanished is reported as missing so its row can be dropped.
func (e *Engine) quarantineTrack(ctx context.Context, j *journal, t *store.Track, reason string) (demotion, error) {
	if !e.cfg.DryRun {
		exists, err := afero.Exists(e.fs, t.Path)
		if err != nil {
			return demotion{}, err
		}
		if !exists {
			e.logger.Warnf("Canonical file %s is missing, dropping its row", t.Path)
			return demotion{track: t, missing: true}, nil
		}
	}

	dest, err := e.relocator.Move(ctx, t.Path, e.cfg.QuarantineRoot, "")
	if err != nil {
		return demotion{}, err
	}
	j.record(t.Path, dest, false)
	e.events.LogQuarantine(t.Path, dest, reason, e.cfg.DryRun)
	return demotion{track: t, to: dest}, nil
}

// place copies or moves src into the release's folder. Only the last
// release receives the source itself.
func (e *Engine) place(ctx context.Context, j *journal, src string, cand *acoustid.Candidate, last bool) (string, error) {
	title := cand.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	layout := fsops.Layout{
		AlbumArtist: cand.AlbumArtist,
		Album:       cand.Album,
		TrackNo:     cand.TrackNo,
		Title:       title,
		Ext:         filepath.Ext(src),
	}
	dir := layout.Dir(e.cfg.LibraryRoot)

	action, relocate := "copy", e.relocator.Copy
	if last {
		action, relocate = "move", e.relocator.Move
	}

	dest, err := relocate(ctx, src, dir, layout.Filename())
	e.events.LogMove(src, dest, action, e.cfg.DryRun, err)
	if err != nil {
		return "", err
	}
	j.record(src, dest, !last)

	if e.cfg.WriteTags && e.cfg.TagWriter != nil && !e.cfg.DryRun {
		tags := meta.Tags{
			Title:       title,
			Artist:      cand.Artist,
			Album:       cand.Album,
			AlbumArtist: cand.AlbumArtist,
			TrackNo:     cand.TrackNo,
			DiscNo:      cand.DiscNo,
			Year:        cand.Year,
			RecordingID: cand.RecordingID,
			ReleaseID:   cand.ReleaseID,
		}
		if err := e.cfg.TagWriter.WriteTags(ctx, dest, tags); err != nil {
			e.logger.Warnf("Failed to write tags to %s: %v", dest, err)
		}
	}
	return dest, nil
}

// placedTrack builds the canonical row for a placement
func (e *Engine) placedTrack(it *item, id *identity, p placement) *store.Track {
	t := it.track(p.path)
	t.AcoustID = id.acoustID
	if c := p.cand; c != nil {
		t.AcoustID = c.AcoustID
		t.AlbumID = c.ReleaseID
		t.Title = c.Title
		t.TrackNo = c.TrackNo
		t.DiscNo = c.DiscNo
	} else if ex := it.existing; ex != nil {
		t.AlbumID = ex.AlbumID
		t.Title = ex.Title
		t.TrackNo = ex.TrackNo
		t.DiscNo = ex.DiscNo
		if t.AcoustID == "" {
			t.AcoustID = ex.AcoustID
		}
	}
	e.restat(t)
	return t
}

// restat refreshes size and mtime after a move or tag write. In a dry run
// nothing changed on disk and the scanned values stand.
func (e *Engine) restat(t *store.Track) {
	if e.cfg.DryRun {
		return
	}
	if info, err := e.fs.Stat(t.Path); err == nil {
		t.FileSize = info.Size()
		t.LastModified = info.ModTime().Unix()
	}
}

func (e *Engine) dropTrack(ctx context.Context, c *store.Catalog, q store.Querier, path string) error {
	if err := c.DeleteTrack(ctx, path); err != nil {
		return err
	}
	return e.tracks.Remove(ctx, q, path)
}

func (e *Engine) applyDemotion(ctx context.Context, c *store.Catalog, q store.Querier, d demotion) error {
	if d.missing {
		return e.dropTrack(ctx, c, q, d.track.Path)
	}
	if err := c.DemoteTrack(ctx, d.track.Path, d.to); err != nil {
		return err
	}
	return e.tracks.Remove(ctx, q, d.track.Path)
}

// recordHistory appends the fingerprint to the recording's history and
// indexes it when the pair is new
func (e *Engine) recordHistory(ctx context.Context, c *store.Catalog, q store.Querier, fp, acoustID string) error {
	if acoustID == "" {
		return nil
	}
	added, err := c.RecordHistory(ctx, fp, acoustID)
	if err != nil || !added {
		return err
	}
	return e.history.Add(ctx, q, acoustID, fp)
}

// abandon reverses the item's moves after a filesystem failure and reports
// the item as failed
func (e *Engine) abandon(j *journal, event report.EventType, path string, err error) Outcome {
	if uerr := j.undo(); uerr != nil {
		e.logger.Errorf("Failed to undo file moves for %s: %v", path, uerr)
	}
	return e.fail(event, path, fmt.Errorf("%s: %w", event, err))
}
