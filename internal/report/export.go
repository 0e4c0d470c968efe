package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/franz/music-catalog/internal/store"
)

var exportHeader = []string{
	"path", "score", "format", "bitrate", "sample_rate", "bit_depth",
	"file_size", "last_modified", "processed", "is_duplicate",
	"acoustid_id", "album_id", "title", "track_no", "disc_no", "fingerprint",
}

// ExportCSV writes every catalog row to w for spreadsheet analysis.
// It returns the number of rows written.
func ExportCSV(ctx context.Context, cat *store.Catalog, w io.Writer) (int, error) {
	tracks, err := cat.ListTracks(ctx, store.TrackFilter{})
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for _, t := range tracks {
		record := []string{
			t.Path,
			strconv.FormatInt(t.QualityScore, 10),
			t.Format,
			strconv.Itoa(t.Bitrate),
			strconv.Itoa(t.SampleRate),
			strconv.Itoa(t.BitDepth),
			strconv.FormatInt(t.FileSize, 10),
			strconv.FormatInt(t.LastModified, 10),
			strconv.FormatBool(t.Processed),
			strconv.FormatBool(t.IsDuplicate),
			t.AcoustID,
			t.AlbumID,
			t.Title,
			strconv.Itoa(t.TrackNo),
			strconv.Itoa(t.DiscNo),
			t.Fingerprint,
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return len(tracks), nil
}
