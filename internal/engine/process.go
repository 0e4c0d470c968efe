package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/franz/music-catalog/internal/fingerprint"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/quality"
	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/similarity"
	"github.com/franz/music-catalog/internal/store"
)

// item is a scanned file on its way through the pipeline
type item struct {
	path     string
	fp       fingerprint.Result
	attrs    quality.Attributes
	score    int64
	size     int64
	mtime    int64
	existing *store.Track
}

// track builds the catalog row for the item living at path
func (it *item) track(path string) *store.Track {
	return &store.Track{
		Path:         path,
		Fingerprint:  it.fp.Fingerprint,
		QualityScore: it.score,
		Format:       it.attrs.Format,
		Bitrate:      it.attrs.BitrateKbps,
		SampleRate:   it.attrs.SampleRate,
		BitDepth:     it.attrs.BitDepth,
		FileSize:     it.size,
		LastModified: it.mtime,
		Processed:    true,
	}
}

func attributesOf(t *store.Track) quality.Attributes {
	return quality.Attributes{
		Format:      t.Format,
		BitDepth:    t.BitDepth,
		SampleRate:  t.SampleRate,
		BitrateKbps: t.Bitrate,
		SizeBytes:   t.FileSize,
	}
}

// processFile resolves one file. A returned error aborts the run; per-file
// failures are logged and reported through the outcome.
func (e *Engine) processFile(ctx context.Context, path string) (Outcome, error) {
	cat := e.catalog()

	info, err := e.fs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		// moved or quarantined by an earlier item of this run
		return e.skip(path, "no longer present"), nil
	}
	if err != nil {
		return e.fail(report.EventError, path, err), nil
	}
	it := &item{path: path, size: info.Size(), mtime: info.ModTime().Unix()}

	it.existing, err = cat.GetTrack(ctx, path)
	if err != nil {
		return "", err
	}
	if t := it.existing; t != nil && t.Processed && t.FileSize == it.size && t.LastModified == it.mtime {
		e.logger.Debugf("Unchanged: %s", path)
		return OutcomeUnchanged, nil
	}

	it.fp, err = e.cfg.Extractor.Extract(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return e.fail(report.EventError, path, fmt.Errorf("fingerprint: %w", err)), nil
	}

	it.attrs, err = e.cfg.Prober.Probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return e.skip(path, fmt.Sprintf("probe failed: %v", err)), nil
	}
	if it.attrs.SizeBytes <= 0 {
		it.attrs.SizeBytes = it.size
	}
	scored := quality.Score(it.attrs)
	if !scored.Scoreable {
		return e.skip(path, "unscoreable: "+scored.Reason), nil
	}
	it.score = scored.Score

	old, match, err := e.findMatch(ctx, cat, it)
	if err != nil {
		return "", err
	}

	in := policy.Input{HasCandidate: old != nil, Similarity: match.Ratio, NewScore: it.score}
	if old != nil {
		in.OldScore = old.QualityScore
	}
	decision := policy.Decide(in, e.cfg.Thresholds)
	state := decision.State

	if state == policy.StateAskHuman {
		if e.cfg.Human == nil {
			e.events.LogDecision(path, old.Path, string(state), match.Ratio, it.score, old.QualityScore, decision.Reason)
			return e.skip(path, "needs review, not interactive"), nil
		}

		e.pauseProgress()
		choice, err := e.cfg.Human.ResolveConflict(ctx, policy.Conflict{
			New:        policy.Side{Path: path, Attributes: it.attrs, Score: it.score},
			Old:        policy.Side{Path: old.Path, Attributes: attributesOf(old), Score: old.QualityScore},
			Similarity: match.Ratio,
		})
		if err != nil {
			return "", err
		}
		if state, err = policy.FromChoice(choice); err != nil {
			return "", err
		}
		decision.Reason = "human: " + string(choice)
	}

	matchPath := ""
	if old != nil {
		matchPath = old.Path
	}
	e.events.LogDecision(path, matchPath, string(state), match.Ratio, it.score, in.OldScore, decision.Reason)
	e.logger.Debugf("%s: %s (%s)", path, state, decision.Reason)

	switch {
	case state == policy.StateQuit:
		return "", policy.ErrQuit
	case state == policy.StateSkip:
		return e.skip(path, decision.Reason), nil
	case state.KeepsOld():
		return e.keepOld(ctx, it, old)
	case state.KeepsNew():
		return e.keepNew(ctx, it, old)
	default:
		return e.keepNew(ctx, it, nil)
	}
}

// findMatch returns the canonical track most similar to the item, or nil.
// Index rows without a catalog row are deleted on the way.
func (e *Engine) findMatch(ctx context.Context, cat *store.Catalog, it *item) (*store.Track, similarity.Match, error) {
	q := cat.Querier()
	keys, err := e.tracks.Candidates(ctx, q, it.fp.Fingerprint)
	if err != nil {
		return nil, similarity.Match{}, err
	}

	owners := make(map[string]*store.Track, len(keys))
	var cands []similarity.Candidate
	for _, key := range keys {
		if key == it.path {
			continue
		}
		t, err := cat.GetTrack(ctx, key)
		if err != nil {
			return nil, similarity.Match{}, err
		}
		if t == nil {
			e.logger.Debugf("Removing dangling index rows for %s", key)
			if err := e.tracks.Remove(ctx, q, key); err != nil {
				return nil, similarity.Match{}, err
			}
			continue
		}
		if t.IsDuplicate || !t.Processed {
			continue
		}
		owners[key] = t
		cands = append(cands, similarity.Candidate{Key: key, Fingerprint: t.Fingerprint})
	}

	m, ok := similarity.Best(it.fp.Fingerprint, cands)
	if !ok {
		return nil, similarity.Match{}, nil
	}
	return owners[m.Key], m, nil
}

func (e *Engine) skip(path, reason string) Outcome {
	e.logger.Infof("Skipping %s: %s", path, reason)
	e.events.LogSkip(path, reason)
	return OutcomeSkipped
}

func (e *Engine) fail(event report.EventType, path string, err error) Outcome {
	e.logger.Errorf("%s: %v", path, err)
	e.events.LogError(event, path, err)
	return OutcomeError
}
