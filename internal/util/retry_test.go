package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"
)

func quietLogger() *Logger {
	return NewLogger(&bytes.Buffer{}, LevelDebug)
}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: 4 * time.Millisecond}
}

func TestIsRetryableError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":                    {nil, false},
		"EAGAIN":                 {syscall.EAGAIN, true},
		"ETIMEDOUT":              {syscall.ETIMEDOUT, true},
		"EHOSTDOWN":              {syscall.EHOSTDOWN, true},
		"EIO":                    {syscall.EIO, true},
		"ENOENT":                 {syscall.ENOENT, false},
		"EXDEV cross-device":     {syscall.EXDEV, false},
		"stale mount message":    {errors.New("read: connection timed out"), true},
		"too many open files":    {errors.New("open /music/a.flac: too many open files"), true},
		"plain failure":          {errors.New("permission denied"), false},
		"path error wrapping":    {&os.PathError{Op: "open", Path: "/nas/a.flac", Err: syscall.ECONNRESET}, true},
		"link error wrapping":    {&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ENETUNREACH}, true},
		"wrapped twice":          {fmt.Errorf("moving track: %w", &os.PathError{Op: "write", Path: "x", Err: syscall.EIO}), true},
		"link error not retried": {&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}, false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v for %v", tt.want, got, tt.err)
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		failWith     error
		maxAttempts  int
		wantAttempts int
		wantErr      bool
	}{
		{"first try", 0, nil, 3, 1, false},
		{"recovers", 2, syscall.ETIMEDOUT, 3, 3, false},
		{"gives up", 5, syscall.ETIMEDOUT, 3, 3, true},
		{"permanent error", 5, syscall.EACCES, 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			got, err := RetryWithBackoff(context.Background(), fastRetry(tt.maxAttempts), quietLogger(), func() (string, error) {
				attempts++
				if attempts <= tt.failures {
					return "", tt.failWith
				}
				return "moved", nil
			}, "rename")

			if attempts != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, attempts)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err == nil && got != "moved" {
				t.Errorf("expected result, got %q", got)
			}
			if err != nil && tt.failWith != nil && !errors.Is(err, tt.failWith) {
				t.Errorf("expected the last error to be wrapped, got %v", err)
			}
		})
	}
}

func TestRetryBackoffIsCapped(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 4, InitialWait: 10 * time.Millisecond, MaxWait: 15 * time.Millisecond}
	var stamps []time.Time

	Retry(context.Background(), cfg, quietLogger(), func() error {
		stamps = append(stamps, time.Now())
		return syscall.EAGAIN
	}, "copy")

	if len(stamps) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(stamps))
	}
	// Waits are 10ms, 15ms, 15ms
	if gap := stamps[1].Sub(stamps[0]); gap < 10*time.Millisecond {
		t.Errorf("expected first wait >= 10ms, got %v", gap)
	}
	if gap := stamps[3].Sub(stamps[2]); gap < 15*time.Millisecond {
		t.Errorf("expected capped wait >= 15ms, got %v", gap)
	}
}

func TestRetryConfigs(t *testing.T) {
	def, nas := DefaultRetryConfig(), NASRetryConfig()
	if def.MaxAttempts != 3 || def.InitialWait != 100*time.Millisecond || def.MaxWait != 5*time.Second {
		t.Errorf("unexpected default config %+v", def)
	}
	if nas.InitialWait <= def.InitialWait || nas.MaxWait <= def.MaxWait {
		t.Errorf("expected NAS config to wait longer than %+v, got %+v", def, nas)
	}
}

func TestRetryStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Second, MaxWait: time.Second}

	start := time.Now()
	err := Retry(ctx, cfg, quietLogger(), func() error {
		attempts++
		cancel()
		return syscall.EIO
	}, "rename")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("expected the wait to end with the context")
	}
}
