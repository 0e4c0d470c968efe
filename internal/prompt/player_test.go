package prompt

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/franz/music-catalog/internal/util"
)

// newBlockingReader returns a reader that never yields data until closed
func newBlockingReader() (io.Reader, io.Closer) {
	r, w := io.Pipe()
	return r, w
}

func writeFakePlayer(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fakeplayer")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write fake player: %v", err)
	}
	return path
}

func TestPlayerStopTerminates(t *testing.T) {
	bin := writeFakePlayer(t, "exec sleep 30\n")
	p := NewPlayer([][]string{{bin}}, util.NewLogger(&bytes.Buffer{}, util.LevelDebug))

	if err := p.Play("/music/song.mp3"); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !p.Playing() {
		t.Fatal("expected player to be running")
	}

	start := time.Now()
	p.Stop()
	if p.Playing() {
		t.Error("player still running after Stop")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("stop took too long: %v", elapsed)
	}
	p.Stop() // idempotent
}

func TestPlayerStopKillsStubbornProcess(t *testing.T) {
	bin := writeFakePlayer(t, "trap '' TERM\nwhile :; do sleep 0.1; done\n")
	p := NewPlayer([][]string{{bin}}, nil)

	if err := p.Play("/music/song.mp3"); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond) // let the shell install its trap

	start := time.Now()
	p.Stop()
	elapsed := time.Since(start)
	if elapsed < stopGrace {
		t.Errorf("expected Stop to wait the grace period, took %v", elapsed)
	}
	if p.Playing() {
		t.Error("stubborn player survived Stop")
	}
}

func TestPlayerNoCommandFound(t *testing.T) {
	p := NewPlayer([][]string{{filepath.Join(t.TempDir(), "missing-player")}}, util.NewLogger(&bytes.Buffer{}, util.LevelInfo))
	if err := p.Play("/music/song.mp3"); err == nil {
		t.Error("expected error when no player is available")
	}
	if p.Playing() {
		t.Error("nothing should be playing")
	}
}
