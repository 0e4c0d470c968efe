package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Catalog provides typed catalog operations over a Querier
type Catalog struct {
	q Querier
}

// NewCatalog binds catalog operations to q (a *sql.DB or *sql.Tx)
func NewCatalog(q Querier) *Catalog {
	return &Catalog{q: q}
}

// Querier returns the underlying Querier
func (c *Catalog) Querier() Querier {
	return c.q
}

// Track is one physical file believed to hold one recording
type Track struct {
	Path         string
	Fingerprint  string
	AcoustID     string // empty when unidentified
	AlbumID      string // empty when not placed in a release
	Title        string
	TrackNo      int
	DiscNo       int
	QualityScore int64
	Format       string
	Bitrate      int
	SampleRate   int
	BitDepth     int
	FileSize     int64
	LastModified int64
	Processed    bool
	IsDuplicate  bool
	UpdatedAt    time.Time
}

const trackColumns = `
	path, fingerprint, COALESCE(acoustid_id, ''), COALESCE(album_id, ''),
	COALESCE(title, ''), COALESCE(track_no, 0), COALESCE(disc_no, 0),
	quality_score, COALESCE(format, ''), COALESCE(bitrate, 0),
	COALESCE(sample_rate, 0), COALESCE(bit_depth, 0), COALESCE(file_size, 0),
	COALESCE(last_modified, 0), processed, is_duplicate, updated_at`

func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	t := &Track{}
	var processed, duplicate int
	var updated sql.NullTime
	err := row.Scan(
		&t.Path, &t.Fingerprint, &t.AcoustID, &t.AlbumID,
		&t.Title, &t.TrackNo, &t.DiscNo,
		&t.QualityScore, &t.Format, &t.Bitrate,
		&t.SampleRate, &t.BitDepth, &t.FileSize,
		&t.LastModified, &processed, &duplicate, &updated,
	)
	if err != nil {
		return nil, err
	}
	t.Processed = processed == 1
	t.IsDuplicate = duplicate == 1
	if updated.Valid {
		t.UpdatedAt = updated.Time
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UpsertTrack inserts a track or updates the row with the same path
func (c *Catalog) UpsertTrack(ctx context.Context, t *Track) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO tracks (
			path, fingerprint, acoustid_id, album_id, title, track_no, disc_no,
			quality_score, format, bitrate, sample_rate, bit_depth, file_size,
			last_modified, processed, is_duplicate, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			acoustid_id = excluded.acoustid_id,
			album_id = excluded.album_id,
			title = excluded.title,
			track_no = excluded.track_no,
			disc_no = excluded.disc_no,
			quality_score = excluded.quality_score,
			format = excluded.format,
			bitrate = excluded.bitrate,
			sample_rate = excluded.sample_rate,
			bit_depth = excluded.bit_depth,
			file_size = excluded.file_size,
			last_modified = excluded.last_modified,
			processed = excluded.processed,
			is_duplicate = excluded.is_duplicate,
			updated_at = excluded.updated_at
	`,
		t.Path, t.Fingerprint, nullString(t.AcoustID), nullString(t.AlbumID),
		t.Title, t.TrackNo, t.DiscNo,
		t.QualityScore, t.Format, t.Bitrate, t.SampleRate, t.BitDepth, t.FileSize,
		t.LastModified, boolInt(t.Processed), boolInt(t.IsDuplicate), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// GetTrack retrieves a track by path, or nil if none exists
func (c *Catalog) GetTrack(ctx context.Context, path string) (*Track, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE path = ?", path)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return t, nil
}

// DeleteTrack removes a track row
func (c *Catalog) DeleteTrack(ctx context.Context, path string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM tracks WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return nil
}

// RelocateTrack changes a track's path after its file was moved. A stale
// row already at newPath is replaced.
func (c *Catalog) RelocateTrack(ctx context.Context, oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	if err := c.DeleteTrack(ctx, newPath); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx, `
		UPDATE tracks SET path = ?, updated_at = ? WHERE path = ?
	`, newPath, time.Now().UTC(), oldPath)
	if err != nil {
		return fmt.Errorf("failed to relocate track: %w", err)
	}
	return nil
}

// DemoteTrack marks a track as a duplicate living at its quarantine path
func (c *Catalog) DemoteTrack(ctx context.Context, oldPath, quarantinePath string) error {
	if err := c.RelocateTrack(ctx, oldPath, quarantinePath); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx, `
		UPDATE tracks SET is_duplicate = 1, processed = 1, updated_at = ? WHERE path = ?
	`, time.Now().UTC(), quarantinePath)
	if err != nil {
		return fmt.Errorf("failed to demote track: %w", err)
	}
	return nil
}

// TrackPaths returns every catalogued path
func (c *Catalog) TrackPaths(ctx context.Context) ([]string, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT path FROM tracks ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query track paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan track path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// TrackFilter narrows ListTracks
type TrackFilter struct {
	CanonicalOnly bool // exclude duplicates and unprocessed rows
	DuplicateOnly bool
}

// ListTracks returns tracks ordered by path
func (c *Catalog) ListTracks(ctx context.Context, f TrackFilter) ([]*Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks"
	switch {
	case f.CanonicalOnly:
		query += " WHERE is_duplicate = 0 AND processed = 1"
	case f.DuplicateOnly:
		query += " WHERE is_duplicate = 1"
	}
	query += " ORDER BY path"

	rows, err := c.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// CanonicalInAlbum returns the canonical track for a recording within a
// release, or nil
func (c *Catalog) CanonicalInAlbum(ctx context.Context, acoustID, albumID string) (*Track, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+trackColumns+`
		FROM tracks
		WHERE acoustid_id = ? AND album_id = ? AND is_duplicate = 0
		ORDER BY quality_score DESC
		LIMIT 1
	`, acoustID, albumID)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album track: %w", err)
	}
	return t, nil
}

// OwnedReleases returns the release ids of albums that already hold a
// canonical track of the recording
func (c *Catalog) OwnedReleases(ctx context.Context, acoustID string) (map[string]bool, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT DISTINCT album_id FROM tracks
		WHERE acoustid_id = ? AND album_id IS NOT NULL AND is_duplicate = 0
	`, acoustID)
	if err != nil {
		return nil, fmt.Errorf("failed to query owned releases: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan release id: %w", err)
		}
		owned[id] = true
	}
	return owned, rows.Err()
}

// CountTracks returns the number of track rows
func (c *Catalog) CountTracks(ctx context.Context) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}
