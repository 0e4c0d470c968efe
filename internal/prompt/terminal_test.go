package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/quality"
	"github.com/franz/music-catalog/internal/util"
)

type fakePlayer struct {
	played  []string
	stopped int
}

func (f *fakePlayer) Play(path string) error {
	f.played = append(f.played, path)
	return nil
}

func (f *fakePlayer) Stop() { f.stopped++ }

func newTestTerminal(input string, player Previewer) (*Terminal, *bytes.Buffer) {
	var out bytes.Buffer
	term := NewTerminal(&Config{
		In:       strings.NewReader(input),
		Out:      &out,
		Player:   player,
		PageSize: 2,
		Logger:   util.NewLogger(&bytes.Buffer{}, util.LevelInfo),
	})
	return term, &out
}

func testConflict() policy.Conflict {
	return policy.Conflict{
		New:        policy.Side{Path: "/in/song.flac", Attributes: quality.Attributes{Format: "flac", BitDepth: 24, SampleRate: 96000, SizeBytes: 40 << 20}, Score: 5000},
		Old:        policy.Side{Path: "/lib/A/B/01 - song.mp3", Attributes: quality.Attributes{Format: "mp3", BitrateKbps: 320, SizeBytes: 8 << 20}, Score: 1000},
		Similarity: 0.9,
	}
}

func TestResolveConflict(t *testing.T) {
	tests := []struct {
		input    string
		expected policy.Choice
	}{
		{"n\n", policy.ChoiceKeepNew},
		{"O\n", policy.ChoiceKeepOld},
		{"x\n\ns\n", policy.ChoiceSkip},
		{"q\n", policy.ChoiceQuit},
		{"", policy.ChoiceQuit}, // end of input
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			player := &fakePlayer{}
			term, out := newTestTerminal(tt.input, player)

			choice, err := term.ResolveConflict(context.Background(), testConflict())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if choice != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, choice)
			}
			if len(player.played) != 1 || player.played[0] != "/in/song.flac" {
				t.Errorf("expected the new file to be previewed, got %v", player.played)
			}
			if player.stopped == 0 {
				t.Error("preview must be stopped before returning")
			}
			if !strings.Contains(out.String(), "90.0%") || !strings.Contains(out.String(), "96000 Hz") {
				t.Errorf("expected similarity and specs in output, got %q", out.String())
			}
		})
	}
}

func TestResolveConflictCancelled(t *testing.T) {
	player := &fakePlayer{}
	var out bytes.Buffer
	blocking, _ := newBlockingReader()
	term := NewTerminal(&Config{In: blocking, Out: &out, Player: player})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := term.ResolveConflict(ctx, testConflict()); err == nil {
		t.Error("expected context error")
	}
	if player.stopped == 0 {
		t.Error("preview must be stopped on the error path")
	}
}

// countingReader records whether anything asked it for input
type countingReader struct {
	io.Reader
	reads atomic.Int32
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads.Add(1)
	return c.Reader.Read(p)
}

func TestTerminalReadsInputOnlyWhenAsked(t *testing.T) {
	in := &countingReader{Reader: strings.NewReader("n\n")}
	term := NewTerminal(&Config{In: in, Out: &bytes.Buffer{}})

	time.Sleep(20 * time.Millisecond)
	if in.reads.Load() != 0 {
		t.Error("input must not be read before a question is asked")
	}

	term.Close()
	answer, err := term.readLine(context.Background())
	if err != nil || answer != "q" {
		t.Errorf("expected quit after Close, got %q, %v", answer, err)
	}
	if in.reads.Load() != 0 {
		t.Error("a closed terminal must not start reading")
	}
}

func TestCloseReleasesReader(t *testing.T) {
	term := NewTerminal(&Config{In: strings.NewReader("a\nb\n"), Out: &bytes.Buffer{}})
	term.Close()

	// Nobody receives the lines, the reader still has to return
	finished := make(chan struct{})
	go func() {
		term.readLines()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("reader blocked after Close")
	}
	if _, ok := <-term.lines; ok {
		t.Error("expected lines channel closed")
	}
}

func TestChooseAlbums(t *testing.T) {
	cands := []acoustid.Candidate{
		{ReleaseID: "r1", Album: "One", Similarity: 0.95, Owned: true},
		{ReleaseID: "r2", Album: "Two", Similarity: 0.93},
		{ReleaseID: "r3", Album: "Three", Similarity: 0.90},
	}

	tests := []struct {
		name     string
		input    string
		picks    []int
		expected policy.Choice
	}{
		{"single", "2\n", []int{1}, policy.ChoiceKeepNew},
		{"multiple with repeat", "1, 3,1\n", []int{0, 2}, policy.ChoiceKeepNew},
		{"invalid then valid", "9\nabc\n3\n", []int{2}, policy.ChoiceKeepNew},
		{"paging", "n\np\nn\n3\n", []int{2}, policy.ChoiceKeepNew},
		{"skip", "0\n", nil, policy.ChoiceSkip},
		{"quit", "q\n", nil, policy.ChoiceQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{}
			term, out := newTestTerminal(tt.input, player)

			picks, choice, err := term.ChooseAlbums(context.Background(), "/in/song.flac", cands)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if choice != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, choice)
			}
			if len(picks) != len(tt.picks) {
				t.Fatalf("expected picks %v, got %v", tt.picks, picks)
			}
			for i := range picks {
				if picks[i] != tt.picks[i] {
					t.Errorf("expected picks %v, got %v", tt.picks, picks)
				}
			}
			if player.stopped == 0 {
				t.Error("preview must be stopped before returning")
			}
			if !strings.Contains(out.String(), "Page 1/2") {
				t.Errorf("expected paging header, got %q", out.String())
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	if _, ok := parseSelection("", 3); ok {
		t.Error("empty selection must be invalid")
	}
	if _, ok := parseSelection("0", 3); ok {
		t.Error("0 is not a valid index")
	}
	if picks, ok := parseSelection(" 3 ,", 3); !ok || len(picks) != 1 || picks[0] != 2 {
		t.Errorf("expected [2], got %v", picks)
	}
}
