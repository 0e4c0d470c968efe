package engine

import (
	"context"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/report"
	"github.com/franz/music-catalog/internal/similarity"
)

// Identification sources
const (
	sourceLookup  = "lookup"
	sourceHistory = "history"
	sourceNone    = "none"
)

// identity is what identification settled for a file. Without picks the
// file is catalogued where it is.
type identity struct {
	acoustID string
	picks    []acoustid.Candidate
	source   string
}

// identify resolves the recording and the releases to place the item in.
// A nil identity means the item is left alone, with the outcome saying why.
func (e *Engine) identify(ctx context.Context, it *item) (*identity, Outcome, error) {
	if e.cfg.Lookup == nil {
		return e.identifyFromHistory(ctx, it)
	}

	cands, err := e.cfg.Lookup.Lookup(ctx, it.fp.Fingerprint, it.fp.Duration)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, e.fail(report.EventIdentify, it.path, err), nil
	}
	if len(cands) == 0 {
		return e.identifyFromHistory(ctx, it)
	}

	cat := e.catalog()
	owned := make(map[string]bool)
	seen := make(map[string]bool)
	for _, c := range cands {
		if seen[c.AcoustID] {
			continue
		}
		seen[c.AcoustID] = true
		releases, err := cat.OwnedReleases(ctx, c.AcoustID)
		if err != nil {
			return nil, "", err
		}
		for id := range releases {
			owned[id] = true
		}
	}
	acoustid.Rank(cands, owned, e.cfg.PreferredCountry)

	picks := cands[:1]
	if len(cands) > 1 && cands[0].Similarity < e.cfg.AlbumAuto && e.cfg.Human != nil {
		e.pauseProgress()
		indices, choice, err := e.cfg.Human.ChooseAlbums(ctx, it.path, cands)
		if err != nil {
			return nil, "", err
		}
		switch choice {
		case policy.ChoiceQuit:
			return nil, "", policy.ErrQuit
		case policy.ChoiceSkip:
			return nil, e.skip(it.path, "no release chosen"), nil
		}

		picks = nil
		for _, i := range indices {
			if i >= 0 && i < len(cands) {
				picks = append(picks, cands[i])
			}
		}
		if len(picks) == 0 {
			return nil, e.skip(it.path, "no release chosen"), nil
		}
	}
	if !e.cfg.FanOutAlbums && len(picks) > 1 {
		picks = picks[:1]
	}

	return &identity{acoustID: picks[0].AcoustID, picks: picks, source: sourceLookup}, "", nil
}

// identifyFromHistory recovers a recording id from fingerprints seen in
// earlier runs. The file is never placed into a release this way.
func (e *Engine) identifyFromHistory(ctx context.Context, it *item) (*identity, Outcome, error) {
	cat := e.catalog()
	ids, err := e.history.Candidates(ctx, cat.Querier(), it.fp.Fingerprint)
	if err != nil {
		return nil, "", err
	}

	var cands []similarity.Candidate
	for _, id := range ids {
		fps, err := cat.HistoryFingerprints(ctx, id)
		if err != nil {
			return nil, "", err
		}
		for _, fp := range fps {
			cands = append(cands, similarity.Candidate{Key: id, Fingerprint: fp})
		}
	}

	if m, ok := similarity.Best(it.fp.Fingerprint, cands); ok && m.Ratio >= e.cfg.Thresholds.Auto {
		e.logger.Debugf("Identified %s from history (%.3f)", it.path, m.Ratio)
		return &identity{acoustID: m.Key, source: sourceHistory}, "", nil
	}
	return &identity{source: sourceNone}, "", nil
}

func releaseIDs(cands []acoustid.Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.ReleaseID
	}
	return ids
}
