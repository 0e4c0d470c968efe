package meta

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/franz/music-catalog/internal/util"
)

func TestBuildMetadataArgs(t *testing.T) {
	testCases := []struct {
		name     string
		tags     Tags
		expected int // each field = 2 args: -metadata key=value
	}{
		{
			name: "complete tags",
			tags: Tags{
				Title:       "Skinny Love",
				Artist:      "Bon Iver",
				Album:       "For Emma, Forever Ago",
				AlbumArtist: "Bon Iver",
				Year:        2008,
				TrackNo:     3,
				DiscNo:      1,
				RecordingID: "cd2e7c47",
				ReleaseID:   "rel-us",
			},
			expected: 18,
		},
		{
			name:     "minimal tags",
			tags:     Tags{Title: "Title Only", Artist: "Artist Only"},
			expected: 4,
		},
		{
			name:     "empty tags",
			tags:     Tags{},
			expected: 0,
		},
		{
			name:     "zero numbers are skipped",
			tags:     Tags{Title: "Title", TrackNo: 5},
			expected: 4,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := buildMetadataArgs(tc.tags)

			if len(args) != tc.expected {
				t.Errorf("Expected %d args, got %d: %v", tc.expected, len(args), args)
			}
			for i := 0; i < len(args); i += 2 {
				if args[i] != "-metadata" {
					t.Errorf("Expected '-metadata' at index %d, got %s", i, args[i])
				}
			}
		})
	}
}

func TestTaggedTempPath(t *testing.T) {
	got := taggedTempPath(filepath.Join("/music", "Artist", "01 - Song.flac"))
	want := filepath.Join("/music", "Artist", ".01 - Song.tagged.flac")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestCanWriteTags(t *testing.T) {
	tests := map[string]bool{
		"song.mp3":  true,
		"SONG.FLAC": true,
		"song.m4a":  true,
		"cover.jpg": false,
		"noext":     false,
	}
	for path, expected := range tests {
		if got := CanWriteTags(path); got != expected {
			t.Errorf("CanWriteTags(%q) = %v, expected %v", path, got, expected)
		}
	}
}

func TestWriteTagsWithFakeFFmpeg(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()

	// Writes the arguments to the output file, which is the last argument
	script := "#!/bin/sh\nfor a in \"$@\"; do out=\"$a\"; done\necho \"$@\" > \"$out\"\n"
	ffmpeg := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake ffmpeg: %v", err)
	}

	song := filepath.Join(dir, "song.mp3")
	os.WriteFile(song, []byte("original"), 0644)

	w := NewTagWriter(ffmpeg, util.NewLogger(&bytes.Buffer{}, util.LevelDebug))
	if err := w.WriteTags(context.Background(), song, Tags{Title: "New Title", TrackNo: 2}); err != nil {
		t.Fatalf("WriteTags failed: %v", err)
	}

	data, _ := os.ReadFile(song)
	if !bytes.Contains(data, []byte("title=New Title")) || !bytes.Contains(data, []byte("track=2")) {
		t.Errorf("expected tagged output to replace the file, got %q", data)
	}
	if _, err := os.Stat(taggedTempPath(song)); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	failing := filepath.Join(dir, "ffmpeg-fail")
	os.WriteFile(failing, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0755)
	if err := NewTagWriter(failing, nil).WriteTags(context.Background(), song, Tags{Title: "X"}); err == nil {
		t.Error("expected error from failing ffmpeg")
	}
	data, _ = os.ReadFile(song)
	if !bytes.Contains(data, []byte("title=New Title")) {
		t.Error("failed write must leave the file untouched")
	}
}
