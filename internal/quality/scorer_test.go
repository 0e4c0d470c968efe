package quality

import (
	"errors"
	"testing"

	"github.com/franz/music-catalog/internal/util"
)

func TestScoreUnscoreable(t *testing.T) {
	testCases := []struct {
		name  string
		attrs Attributes
	}{
		{"empty format", Attributes{SizeBytes: 1024}},
		{"unknown format", Attributes{Format: "xyz", SizeBytes: 1024}},
		{"zero size", Attributes{Format: "flac"}},
		{"negative size", Attributes{Format: "mp3", SizeBytes: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := Score(tc.attrs)
			if r.Scoreable {
				t.Errorf("expected unscoreable, got score %d", r.Score)
			}
			if r.Reason == "" {
				t.Error("expected a reason for unscoreable result")
			}
			if _, err := MustScore(tc.attrs); !errors.Is(err, util.ErrUnscoreable) {
				t.Errorf("expected ErrUnscoreable, got %v", err)
			}
		})
	}
}

func TestScoreBandsDominate(t *testing.T) {
	// Each pair: first must outrank second even though every lower band of
	// the second is maxed out.
	testCases := []struct {
		name   string
		better Attributes
		worse  Attributes
	}{
		{
			name:   "lossless beats any lossy",
			better: Attributes{Format: "flac", SizeBytes: 1},
			worse:  Attributes{Format: "mp3", BitDepth: 99, SampleRate: 999_900, BitrateKbps: 9999, SizeBytes: 1 << 50},
		},
		{
			name:   "bit depth beats sample rate",
			better: Attributes{Format: "flac", BitDepth: 24, SizeBytes: 1},
			worse:  Attributes{Format: "flac", BitDepth: 16, SampleRate: 192_000, BitrateKbps: 9999, SizeBytes: 1 << 50},
		},
		{
			name:   "sample rate beats bitrate",
			better: Attributes{Format: "mp3", SampleRate: 48_000, SizeBytes: 1},
			worse:  Attributes{Format: "mp3", SampleRate: 44_100, BitrateKbps: 9999, SizeBytes: 1 << 50},
		},
		{
			name:   "bitrate beats size",
			better: Attributes{Format: "mp3", SampleRate: 44_100, BitrateKbps: 320, SizeBytes: 1024},
			worse:  Attributes{Format: "mp3", SampleRate: 44_100, BitrateKbps: 256, SizeBytes: 1 << 50},
		},
		{
			name:   "size breaks final tie",
			better: Attributes{Format: "mp3", BitrateKbps: 320, SizeBytes: 10 << 20},
			worse:  Attributes{Format: "mp3", BitrateKbps: 320, SizeBytes: 9 << 20},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if Compare(tc.better, tc.worse) != 1 {
				t.Errorf("expected %s to outrank %s (%d vs %d)",
					Describe(tc.better), Describe(tc.worse),
					Score(tc.better).Score, Score(tc.worse).Score)
			}
			if Compare(tc.worse, tc.better) != -1 {
				t.Error("Compare is not antisymmetric")
			}
		})
	}
}

func TestScoreTotalOrderTransitive(t *testing.T) {
	samples := []Attributes{
		{Format: "mp3", BitrateKbps: 128, SampleRate: 44_100, SizeBytes: 4 << 20},
		{Format: "mp3", BitrateKbps: 320, SampleRate: 44_100, SizeBytes: 9 << 20},
		{Format: "opus", BitrateKbps: 160, SampleRate: 48_000, SizeBytes: 5 << 20},
		{Format: "flac", BitDepth: 16, SampleRate: 44_100, BitrateKbps: 900, SizeBytes: 30 << 20},
		{Format: "flac", BitDepth: 24, SampleRate: 96_000, BitrateKbps: 2800, SizeBytes: 90 << 20},
		{Format: "pcm_s16le", BitDepth: 16, SampleRate: 44_100, BitrateKbps: 1411, SizeBytes: 40 << 20},
	}

	for _, a := range samples {
		for _, b := range samples {
			for _, c := range samples {
				if Compare(a, b) >= 0 && Compare(b, c) >= 0 && Compare(a, c) < 0 {
					t.Errorf("ordering not transitive: %s >= %s >= %s but %s < %s",
						Describe(a), Describe(b), Describe(c), Describe(a), Describe(c))
				}
			}
			ab, ba := Compare(a, b), Compare(b, a)
			if ab != -ba {
				t.Errorf("Compare(%s, %s) = %d but reverse = %d", Describe(a), Describe(b), ab, ba)
			}
		}
	}
}

func TestScoreFitsInt64(t *testing.T) {
	maxed := Attributes{
		Format:      "flac",
		BitDepth:    1000,
		SampleRate:  10_000_000,
		BitrateKbps: 1_000_000,
		SizeBytes:   1 << 62,
	}
	r := Score(maxed)
	if !r.Scoreable || r.Score <= 0 {
		t.Fatalf("expected positive score for clamped attributes, got %+v", r)
	}
	if r.Score >= 2*weightClass {
		t.Errorf("score %d overflows its class band", r.Score)
	}
}

func TestIsLossless(t *testing.T) {
	testCases := []struct {
		format string
		want   bool
	}{
		{"flac", true},
		{"FLAC", true},
		{"alac", true},
		{"pcm_s24le", true},
		{"wv", true},
		{"mp3", false},
		{"aac", false},
		{"opus", false},
	}

	for _, tc := range testCases {
		if got := IsLossless(tc.format); got != tc.want {
			t.Errorf("IsLossless(%q) = %v, want %v", tc.format, got, tc.want)
		}
	}
}
