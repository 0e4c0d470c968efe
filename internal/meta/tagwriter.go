package meta

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/franz/music-catalog/internal/util"
)

// TagWriter rewrites tags in place with ffmpeg, copying the streams
type TagWriter struct {
	ffmpeg string
	logger *util.Logger
}

// NewTagWriter creates a writer; an empty binary means "ffmpeg" from PATH
func NewTagWriter(ffmpeg string, logger *util.Logger) *TagWriter {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &TagWriter{ffmpeg: ffmpeg, logger: util.OrDefault(logger)}
}

// WriteTags writes t into the file at path. The result is first written
// to a hidden sibling with the same extension, then renamed over path.
func (w *TagWriter) WriteTags(ctx context.Context, path string, t Tags) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}
	if !CanWriteTags(path) {
		w.logger.Debugf("Tag writing not supported for %s", path)
		return nil
	}

	metadataArgs := buildMetadataArgs(t)
	if len(metadataArgs) == 0 {
		w.logger.Debugf("No metadata to write for %s", path)
		return nil
	}

	tempPath := taggedTempPath(path)

	// ffmpeg -i in.mp3 -map 0 -metadata title=... -c copy -y out.mp3
	args := []string{"-hide_banner", "-loglevel", "error", "-i", path, "-map", "0"}
	args = append(args, metadataArgs...)
	args = append(args, "-c", "copy", "-y", tempPath)

	cmd := exec.CommandContext(ctx, w.ffmpeg, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(tempPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace tagged file: %w", err)
	}

	w.logger.Debugf("Wrote tags to: %s", path)
	return nil
}

// taggedTempPath keeps the extension so ffmpeg picks the right muxer
func taggedTempPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".tagged"+ext)
}

// buildMetadataArgs builds ffmpeg -metadata arguments
func buildMetadataArgs(t Tags) []string {
	var args []string

	addMeta := func(key, value string) {
		if value != "" {
			args = append(args, "-metadata", fmt.Sprintf("%s=%s", key, value))
		}
	}
	addNum := func(key string, value int) {
		if value > 0 {
			addMeta(key, strconv.Itoa(value))
		}
	}

	addMeta("title", t.Title)
	addMeta("artist", t.Artist)
	addMeta("album", t.Album)
	addMeta("album_artist", t.AlbumArtist)
	addNum("date", t.Year)
	addNum("track", t.TrackNo)
	addNum("disc", t.DiscNo)

	addMeta("musicbrainz_trackid", t.RecordingID)
	addMeta("musicbrainz_albumid", t.ReleaseID)

	return args
}

var taggableExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wma":  true,
	".wav":  true,
	".aiff": true,
	".ape":  true,
	".wv":   true,
	".tta":  true,
	".mpc":  true,
}

// CanWriteTags checks if ffmpeg can tag this file format
func CanWriteTags(path string) bool {
	return taggableExtensions[strings.ToLower(filepath.Ext(path))]
}
