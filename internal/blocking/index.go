// Package blocking indexes fixed-size fingerprint chunks so that only
// catalog entries sharing a chunk with a probe are compared in full.
package blocking

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/music-catalog/internal/store"
)

const (
	DefaultBlockSize = 16
	DefaultMaxBlocks = 16
	DefaultMinShared = 1
)

// Blocks splits fp into consecutive size-rune chunks from its start and
// keeps at most maxBlocks of them. A trailing partial chunk is kept.
func Blocks(fp string, size, maxBlocks int) []string {
	if size <= 0 {
		size = DefaultBlockSize
	}
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocks
	}

	runes := []rune(fp)
	var blocks []string
	for i := 0; i < len(runes) && len(blocks) < maxBlocks; i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		blocks = append(blocks, string(runes[i:end]))
	}
	return blocks
}

// Config holds index tunables
type Config struct {
	BlockSize int // runes per chunk
	MaxBlocks int // chunks kept per fingerprint
	MinShared int // shared chunks required to become a candidate
}

// DefaultConfig returns the default tunables
func DefaultConfig() Config {
	return Config{
		BlockSize: DefaultBlockSize,
		MaxBlocks: DefaultMaxBlocks,
		MinShared: DefaultMinShared,
	}
}

// Index is a block table keyed by one owner column
type Index struct {
	table    string
	ownerCol string
	cfg      Config
}

// Tracks returns the index over canonical track paths
func Tracks(cfg Config) *Index {
	return newIndex("track_blocks", "path", cfg)
}

// History returns the index over fingerprint history ids
func History(cfg Config) *Index {
	return newIndex("history_blocks", "acoustid_id", cfg)
}

func newIndex(table, ownerCol string, cfg Config) *Index {
	def := DefaultConfig()
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = def.BlockSize
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = def.MaxBlocks
	}
	if cfg.MinShared <= 0 {
		cfg.MinShared = def.MinShared
	}
	return &Index{table: table, ownerCol: ownerCol, cfg: cfg}
}

// Blocks returns the chunks this index stores for fp
func (x *Index) Blocks(fp string) []string {
	return Blocks(fp, x.cfg.BlockSize, x.cfg.MaxBlocks)
}

// Replace drops every chunk of owner and inserts the chunks of fp. Run it
// inside a transaction so the owner's rows are never partially present.
func (x *Index) Replace(ctx context.Context, q store.Querier, owner, fp string) error {
	if err := x.Remove(ctx, q, owner); err != nil {
		return err
	}
	return x.add(ctx, q, owner, fp)
}

// Add inserts the chunks of fp for owner, keeping chunks already present.
// The history index uses it because one id owns many fingerprints.
func (x *Index) Add(ctx context.Context, q store.Querier, owner, fp string) error {
	return x.add(ctx, q, owner, fp)
}

func (x *Index) add(ctx context.Context, q store.Querier, owner, fp string) error {
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (block, %s) VALUES (?, ?)", x.table, x.ownerCol)
	for _, b := range x.Blocks(fp) {
		if _, err := q.ExecContext(ctx, query, b, owner); err != nil {
			return fmt.Errorf("failed to insert %s block: %w", x.table, err)
		}
	}
	return nil
}

// Remove drops every chunk of owner
func (x *Index) Remove(ctx context.Context, q store.Querier, owner string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", x.table, x.ownerCol)
	if _, err := q.ExecContext(ctx, query, owner); err != nil {
		return fmt.Errorf("failed to delete %s blocks: %w", x.table, err)
	}
	return nil
}

// Candidates returns the owners sharing at least MinShared chunks with fp,
// in the order their first chunk was indexed
func (x *Index) Candidates(ctx context.Context, q store.Querier, fp string) ([]string, error) {
	blocks := x.Blocks(fp)
	if len(blocks) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(blocks)+1)
	seen := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if !seen[b] {
			seen[b] = true
			args = append(args, b)
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	args = append(args, x.cfg.MinShared)

	query := fmt.Sprintf(`
		SELECT %[2]s FROM %[1]s
		WHERE block IN (%[3]s)
		GROUP BY %[2]s
		HAVING COUNT(DISTINCT block) >= ?
		ORDER BY MIN(rowid)
	`, x.table, x.ownerCol, placeholders)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", x.table, err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("failed to scan %s owner: %w", x.table, err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// Clear drops the whole index
func (x *Index) Clear(ctx context.Context, q store.Querier) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+x.table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", x.table, err)
	}
	return nil
}

// Count returns the number of rows in the index
func (x *Index) Count(ctx context.Context, q store.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+x.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", x.table, err)
	}
	return n, nil
}
