package store

import (
	"context"
	"fmt"
)

// FormatStat aggregates canonical tracks of one format
type FormatStat struct {
	Format string
	Count  int
	Bytes  int64
}

// LibraryStats summarises the catalog for reporting
type LibraryStats struct {
	UniqueTracks   int
	LibraryBytes   int64
	Duplicates     int
	DuplicateBytes int64
	Unprocessed    int
	Albums         int
	HistoryEntries int
	Formats        []FormatStat
}

// Stats computes library statistics
func (c *Catalog) Stats(ctx context.Context) (*LibraryStats, error) {
	st := &LibraryStats{}

	err := c.q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_duplicate = 0 AND processed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_duplicate = 0 AND processed = 1 THEN file_size ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_duplicate = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_duplicate = 1 THEN file_size ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed = 0 THEN 1 ELSE 0 END), 0)
		FROM tracks
	`).Scan(&st.UniqueTracks, &st.LibraryBytes, &st.Duplicates, &st.DuplicateBytes, &st.Unprocessed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute track stats: %w", err)
	}

	if st.Albums, err = c.CountAlbums(ctx); err != nil {
		return nil, err
	}

	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprint_history").Scan(&st.HistoryEntries); err != nil {
		return nil, fmt.Errorf("failed to count fingerprint history: %w", err)
	}

	rows, err := c.q.QueryContext(ctx, `
		SELECT COALESCE(format, ''), COUNT(*), COALESCE(SUM(file_size), 0)
		FROM tracks
		WHERE is_duplicate = 0 AND processed = 1
		GROUP BY format
		ORDER BY COUNT(*) DESC, format
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query format breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fs FormatStat
		if err := rows.Scan(&fs.Format, &fs.Count, &fs.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan format stat: %w", err)
		}
		st.Formats = append(st.Formats, fs)
	}

	return st, rows.Err()
}
