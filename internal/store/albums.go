package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Album is a release grouping, keyed by its stable release id
type Album struct {
	ReleaseID   string
	Title       string
	AlbumArtist string
	ReleaseYear int
	Country     string
}

// EnsureAlbum inserts the album unless a row with the same release id
// exists. Existing rows are never modified.
func (c *Catalog) EnsureAlbum(ctx context.Context, a *Album) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO albums (release_id, title, album_artist, release_year, country)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(release_id) DO NOTHING
	`, a.ReleaseID, a.Title, a.AlbumArtist, a.ReleaseYear, a.Country)
	if err != nil {
		return fmt.Errorf("failed to insert album: %w", err)
	}
	return nil
}

// GetAlbum retrieves an album by release id, or nil
func (c *Catalog) GetAlbum(ctx context.Context, releaseID string) (*Album, error) {
	a := &Album{}
	err := c.q.QueryRowContext(ctx, `
		SELECT release_id, COALESCE(title, ''), COALESCE(album_artist, ''),
		       COALESCE(release_year, 0), COALESCE(country, '')
		FROM albums WHERE release_id = ?
	`, releaseID).Scan(&a.ReleaseID, &a.Title, &a.AlbumArtist, &a.ReleaseYear, &a.Country)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return a, nil
}

// CountAlbums returns the number of known releases
func (c *Catalog) CountAlbums(ctx context.Context) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM albums").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count albums: %w", err)
	}
	return n, nil
}
