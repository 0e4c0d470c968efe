// Package quality ranks copies of the same recording by technical fidelity.
package quality

import (
	"fmt"
	"strings"

	"github.com/franz/music-catalog/internal/util"
)

// Attributes holds the technical fields used for scoring. Zero values mean
// "unknown" and contribute nothing to their band.
type Attributes struct {
	Format      string // codec or extension, lower case without dot (required)
	BitDepth    int    // bits per sample, 0 for lossy or unknown
	SampleRate  int    // Hz, 0 if unknown
	BitrateKbps int    // kbps, 0 if unknown
	SizeBytes   int64  // file size in bytes (required, > 0)
}

// Result is either a score or the reason the attributes could not be scored
type Result struct {
	Score     int64
	Scoreable bool
	Reason    string
}

// Band weights. Each band is wider than the maximum value of every band
// below it, so the sum orders lexicographically by
// (class, bit depth, sample rate, bitrate, size).
const (
	weightClass      int64 = 1_000_000_000_000_000_000
	weightBitDepth   int64 = 10_000_000_000_000_000
	weightSampleRate int64 = 1_000_000_000_000
	weightBitrate    int64 = 100_000_000
	weightSize       int64 = 1

	maxBitDepth   = 99
	maxSampleRate = 9_999           // in units of 100 Hz
	maxBitrate    = 9_999           // kbps
	maxSizeKiB    = 100_000_000 - 1 // about 95 GiB
)

var losslessFormats = map[string]bool{
	"flac":        true,
	"alac":        true,
	"wav":         true,
	"aiff":        true,
	"aif":         true,
	"ape":         true,
	"wv":          true,
	"wavpack":     true,
	"tta":         true,
	"wmalossless": true,
}

var lossyFormats = map[string]bool{
	"mp3":    true,
	"aac":    true,
	"m4a":    true,
	"ogg":    true,
	"vorbis": true,
	"opus":   true,
	"wma":    true,
	"mpc":    true,
	"mp2":    true,
}

// IsLossless reports whether format belongs to the lossless class
func IsLossless(format string) bool {
	format = strings.ToLower(format)
	if strings.HasPrefix(format, "pcm") {
		return true // WAV/AIFF PCM codecs
	}
	return losslessFormats[format]
}

// IsKnownFormat reports whether format can be scored
func IsKnownFormat(format string) bool {
	format = strings.ToLower(format)
	return IsLossless(format) || lossyFormats[format]
}

// Score computes the quality score for a
func Score(a Attributes) Result {
	format := strings.ToLower(strings.TrimPrefix(a.Format, "."))
	if format == "" {
		return Result{Reason: "format unknown"}
	}
	if !IsKnownFormat(format) {
		return Result{Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	if a.SizeBytes <= 0 {
		return Result{Reason: "file size unknown"}
	}

	var score int64
	if IsLossless(format) {
		score += weightClass
	}
	score += clamp(int64(a.BitDepth), maxBitDepth) * weightBitDepth
	score += clamp(int64(a.SampleRate/100), maxSampleRate) * weightSampleRate
	score += clamp(int64(a.BitrateKbps), maxBitrate) * weightBitrate
	score += clamp(a.SizeBytes/1024, maxSizeKiB) * weightSize

	return Result{Score: score, Scoreable: true}
}

// MustScore returns the score or an error wrapping util.ErrUnscoreable
func MustScore(a Attributes) (int64, error) {
	r := Score(a)
	if !r.Scoreable {
		return 0, fmt.Errorf("%w: %s", util.ErrUnscoreable, r.Reason)
	}
	return r.Score, nil
}

// Compare returns -1, 0 or 1 as a ranks below, equal to, or above b
func Compare(a, b Attributes) int {
	sa, sb := Score(a), Score(b)
	switch {
	case sa.Scoreable && !sb.Scoreable:
		return 1
	case !sa.Scoreable && sb.Scoreable:
		return -1
	case sa.Score > sb.Score:
		return 1
	case sa.Score < sb.Score:
		return -1
	}
	return 0
}

// Describe renders the attributes in a compact human-readable form
func Describe(a Attributes) string {
	parts := []string{strings.ToUpper(a.Format)}
	if a.BitDepth > 0 {
		parts = append(parts, fmt.Sprintf("%d-bit", a.BitDepth))
	}
	if a.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%.1f kHz", float64(a.SampleRate)/1000))
	}
	if a.BitrateKbps > 0 {
		parts = append(parts, fmt.Sprintf("%d kbps", a.BitrateKbps))
	}
	parts = append(parts, util.FormatBytes(a.SizeBytes))
	return strings.Join(parts, " / ")
}

func clamp(v, max int64) int64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
