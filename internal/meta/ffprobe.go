// Package meta reads technical attributes and tags from audio files and
// writes tags back through ffmpeg.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/franz/music-catalog/internal/util"
)

// FFprobeInfo is the subset of `ffprobe -show_format -show_streams` the
// scorer needs
type FFprobeInfo struct {
	Streams []FFprobeStream `json:"streams"`
	Format  *FFprobeFormat  `json:"format"`
}

// IntOrString holds a number ffprobe may print as a JSON number or string
type IntOrString struct {
	Value int
}

// UnmarshalJSON accepts 16, "16", "N/A" and ""; anything unparsable is 0
func (i *IntOrString) UnmarshalJSON(data []byte) error {
	i.Value = 0
	if err := json.Unmarshal(data, &i.Value); err == nil {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if n, err := strconv.Atoi(s); err == nil {
		i.Value = n
	}
	return nil
}

// FFprobeStream is one stream of the container
type FFprobeStream struct {
	CodecName        string      `json:"codec_name"`
	CodecType        string      `json:"codec_type"`
	SampleRate       IntOrString `json:"sample_rate"`
	BitsPerSample    IntOrString `json:"bits_per_sample"`
	BitsPerRawSample IntOrString `json:"bits_per_raw_sample"`
	BitRate          IntOrString `json:"bit_rate"`
}

// FFprobeFormat carries the container bitrate, used when the stream has none
type FFprobeFormat struct {
	BitRate IntOrString `json:"bit_rate"`
}

// AudioStream returns the first audio stream, or nil
func (info *FFprobeInfo) AudioStream() *FFprobeStream {
	for i := range info.Streams {
		if info.Streams[i].CodecType == "audio" {
			return &info.Streams[i]
		}
	}
	return nil
}

// RunFFprobe runs ffprobe on path. A missing binary wraps util.ErrNotFound,
// a file ffprobe rejects wraps util.ErrCorrupt.
func RunFFprobe(ctx context.Context, binary, path string) (*FFprobeInfo, error) {
	if binary == "" {
		binary = "ffprobe"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%s: %w", binary, util.ErrNotFound)
	}

	output, err := exec.CommandContext(ctx, binary,
		"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path,
	).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: ffprobe failed: %s", util.ErrCorrupt, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	var info FFprobeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &info, nil
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
