package store

import (
	"context"
	"fmt"
)

// HistoryEntry associates a fingerprint with an external recording id
type HistoryEntry struct {
	Fingerprint string
	AcoustID    string
}

// RecordHistory appends a fingerprint/id association. It reports whether
// the pair was new.
func (c *Catalog) RecordHistory(ctx context.Context, fingerprint, acoustID string) (bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO fingerprint_history (fingerprint, acoustid_id)
		VALUES (?, ?)
	`, fingerprint, acoustID)
	if err != nil {
		return false, fmt.Errorf("failed to record fingerprint history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// HistoryFingerprints returns every fingerprint seen for an id, oldest first
func (c *Catalog) HistoryFingerprints(ctx context.Context, acoustID string) ([]string, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT fingerprint FROM fingerprint_history
		WHERE acoustid_id = ?
		ORDER BY rowid
	`, acoustID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprint history: %w", err)
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

// AllHistory returns the whole history table in insertion order
func (c *Catalog) AllHistory(ctx context.Context) ([]HistoryEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT fingerprint, acoustid_id FROM fingerprint_history ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprint history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Fingerprint, &e.AcoustID); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
