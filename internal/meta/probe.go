package meta

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/music-catalog/internal/quality"
	"github.com/franz/music-catalog/internal/util"
)

// Prober reads the technical attributes the quality scorer needs
type Prober struct {
	ffprobe string
	logger  *util.Logger
}

// NewProber creates a prober; an empty binary means "ffprobe" from PATH
func NewProber(ffprobe string, logger *util.Logger) *Prober {
	return &Prober{ffprobe: ffprobe, logger: util.OrDefault(logger)}
}

// Probe returns the attributes of path. ffprobe is preferred; when it is
// missing or fails, the container type from the tag reader is used and
// only format and size are known.
func (p *Prober) Probe(ctx context.Context, path string) (quality.Attributes, error) {
	info, err := os.Stat(path)
	if err != nil {
		return quality.Attributes{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return quality.Attributes{}, fmt.Errorf("%s is a directory", path)
	}

	probe, err := RunFFprobe(ctx, p.ffprobe, path)
	if err == nil {
		if attrs, ok := attributesFromProbe(probe, info.Size()); ok {
			return attrs, nil
		}
		p.logger.Debugf("ffprobe found no audio stream in %s", path)
	} else {
		if ctx.Err() != nil {
			return quality.Attributes{}, ctx.Err()
		}
		p.logger.Debugf("ffprobe failed for %s, falling back to tag reader: %v", path, err)
	}

	format, err := formatFromTags(path)
	if err != nil {
		return quality.Attributes{}, err
	}
	return quality.Attributes{Format: format, SizeBytes: info.Size()}, nil
}

// attributesFromProbe maps ffprobe output onto scorer attributes
func attributesFromProbe(info *FFprobeInfo, size int64) (quality.Attributes, bool) {
	stream := info.AudioStream()
	if stream == nil {
		return quality.Attributes{}, false
	}

	attrs := quality.Attributes{
		Format:     FormatFromCodec(stream.CodecName),
		SampleRate: stream.SampleRate.Value,
		SizeBytes:  size,
	}

	if quality.IsLossless(attrs.Format) {
		if stream.BitsPerRawSample.Value > 0 {
			attrs.BitDepth = stream.BitsPerRawSample.Value
		} else if stream.BitsPerSample.Value > 0 {
			attrs.BitDepth = stream.BitsPerSample.Value
		}
	}

	bitrate := stream.BitRate.Value
	if bitrate == 0 && info.Format != nil {
		bitrate = info.Format.BitRate.Value
	}
	attrs.BitrateKbps = bitrate / 1000

	return attrs, true
}

// FormatFromCodec maps an ffprobe codec name to the scorer's format names
func FormatFromCodec(codec string) string {
	codec = strings.ToLower(codec)
	switch {
	case strings.HasPrefix(codec, "pcm_"):
		return "pcm"
	case codec == "wmav1" || codec == "wmav2" || codec == "wmapro":
		return "wma"
	case codec == "mp3float":
		return "mp3"
	case codec == "musepack7" || codec == "musepack8":
		return "mpc"
	}
	return codec
}

// formatFromTags identifies the container with the tag reader, then by extension
func formatFromTags(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if m, err := tag.ReadFrom(f); err == nil {
		switch m.FileType() {
		case tag.MP3:
			return "mp3", nil
		case tag.FLAC:
			return "flac", nil
		case tag.OGG:
			return "ogg", nil
		case tag.ALAC:
			return "alac", nil
		case tag.M4A, tag.M4B, tag.M4P:
			return "aac", nil
		}
	} else if !errors.Is(err, tag.ErrNoTagsFound) {
		util.DebugLog("Tag reader failed for %s: %v", path, err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if quality.IsKnownFormat(ext) {
		return ext, nil
	}
	return "", fmt.Errorf("%w: cannot determine format of %s", util.ErrUnsupported, path)
}

// Tags is the set of tags written to canonical files and shown in prompts
type Tags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNo     int
	DiscNo      int
	Year        int
	RecordingID string
	ReleaseID   string
}

// ReadTags reads the embedded tags of path
func ReadTags(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to read tags: %w", err)
	}

	track, _ := m.Track()
	disc, _ := m.Disc()
	return Tags{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		TrackNo:     track,
		DiscNo:      disc,
		Year:        m.Year(),
	}, nil
}
