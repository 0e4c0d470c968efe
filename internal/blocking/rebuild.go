package blocking

import (
	"context"
	"fmt"

	"github.com/franz/music-catalog/internal/store"
)

// RebuildResult reports how many owners were re-indexed
type RebuildResult struct {
	Tracks  int
	History int
}

// Rebuild regenerates both indexes from the tracks and fingerprint_history
// tables. Only canonical tracks are indexed. Call it inside a transaction.
func Rebuild(ctx context.Context, q store.Querier, cfg Config) (*RebuildResult, error) {
	tracks := Tracks(cfg)
	history := History(cfg)
	cat := store.NewCatalog(q)
	result := &RebuildResult{}

	if err := tracks.Clear(ctx, q); err != nil {
		return nil, err
	}
	if err := history.Clear(ctx, q); err != nil {
		return nil, err
	}

	canonical, err := cat.ListTracks(ctx, store.TrackFilter{CanonicalOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list canonical tracks: %w", err)
	}
	for _, t := range canonical {
		if t.Fingerprint == "" {
			continue
		}
		if err := tracks.Replace(ctx, q, t.Path, t.Fingerprint); err != nil {
			return nil, err
		}
		result.Tracks++
	}

	entries, err := cat.AllHistory(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := history.Add(ctx, q, e.AcoustID, e.Fingerprint); err != nil {
			return nil, err
		}
		result.History++
	}

	return result, nil
}
