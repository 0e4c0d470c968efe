package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// readEvents decodes every line of the logger's file
func readEvents(t *testing.T, logger *EventLogger) []Event {
	t.Helper()
	file, err := os.Open(logger.Path())
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded Event
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("Line %d is not valid JSON: %v", len(events)+1, err)
		}
		events = append(events, decoded)
	}
	return events
}

func newTestLogger(t *testing.T, minLevel EventLevel) *EventLogger {
	t.Helper()
	logger, err := NewEventLogger(t.TempDir(), minLevel)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	return logger
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}
	if len(logger.RunID()) != 36 {
		t.Errorf("Expected a UUID run id, got %q", logger.RunID())
	}
	filename := filepath.Base(logger.Path())
	if !strings.HasPrefix(filename, "events-") || !strings.Contains(filename, logger.RunID()[:8]) {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}

	other, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer other.Close()
	if other.RunID() == logger.RunID() || other.Path() == logger.Path() {
		t.Error("Each logger must get its own run id and file")
	}
}

func TestEventLogger_StampsRunID(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)

	logger.LogRun("start", true, nil)
	logger.LogDecision("/in/new.flac", "/lib/old.mp3", "AUTO_KEEP_NEW", 0.99, 5000, 1000, "new file has higher quality")
	logger.LogQuarantine("/lib/old.mp3", "/q/old.mp3", "superseded", false)
	logger.Close()

	events := readEvents(t, logger)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for _, e := range events {
		if e.RunID != logger.RunID() {
			t.Errorf("Expected run id %s, got %s", logger.RunID(), e.RunID)
		}
		if e.Timestamp.IsZero() {
			t.Error("Expected timestamp to be auto-set")
		}
	}

	if !events[0].DryRun || events[0].Action != "start" {
		t.Errorf("Unexpected run event: %+v", events[0])
	}
	d := events[1]
	if d.Event != EventDecision || d.State != "AUTO_KEEP_NEW" || d.Similarity != 0.99 || d.NewScore != 5000 || d.OldScore != 1000 {
		t.Errorf("Unexpected decision event: %+v", d)
	}
	if events[2].Level != LevelWarning || events[2].OtherPath != "/q/old.mp3" {
		t.Errorf("Unexpected quarantine event: %+v", events[2])
	}
}

func TestEventLogger_Helpers(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)

	logger.LogPrune("/music/gone.mp3")
	logger.LogIdentify("/in/a.mp3", "acid-1", []string{"rel-1", "rel-2"}, "lookup")
	logger.LogMove("/in/a.mp3", "/lib/A/B/01 - a.mp3", "move", false, nil)
	logger.LogMove("/in/b.mp3", "/lib/A/B/02 - b.mp3", "copy", false, errors.New("disk full"))
	logger.LogSkip("/in/c.mp3", "unscoreable")
	logger.LogError(EventError, "/in/d.mp3", errors.New("lookup failed"))
	logger.Close()

	events := readEvents(t, logger)
	if len(events) != 6 {
		t.Fatalf("Expected 6 events, got %d", len(events))
	}
	if events[0].Event != EventPrune || events[0].Action != "remove" {
		t.Errorf("Unexpected prune event: %+v", events[0])
	}
	if events[1].Extra["acoustid"] != "acid-1" || events[1].Extra["release_2"] != "rel-2" || events[1].Extra["source"] != "lookup" {
		t.Errorf("Unexpected identify extras: %v", events[1].Extra)
	}
	if events[2].Level != LevelInfo || events[3].Level != LevelError || events[3].Error != "disk full" {
		t.Errorf("Unexpected move events: %+v / %+v", events[2], events[3])
	}
	if events[4].Event != EventSkip || events[5].Error != "lookup failed" {
		t.Errorf("Unexpected skip/error events: %+v / %+v", events[4], events[5])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 20 {
				if err := logger.LogPrune("/music/x.mp3"); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		})
	}
	wg.Wait()
	logger.Close()

	if n := len(readEvents(t, logger)); n != 200 {
		t.Errorf("Expected 200 intact lines, got %d", n)
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.Log(&Event{Level: LevelInfo, Event: EventRun}); err != nil {
		t.Errorf("NullLogger.Log should not return error, got: %v", err)
	}
	if err := logger.LogDecision("/a", "/b", "NEW", 0, 1, 0, ""); err != nil {
		t.Errorf("NullLogger.LogDecision should not return error, got: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close should not return error, got: %v", err)
	}
	if logger.Path() != "" || logger.RunID() != "" {
		t.Error("NullLogger should report empty path and run id")
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	levels := []EventLevel{LevelDebug, LevelInfo, LevelWarning, LevelError}

	// one event per level, so the count kept is the levels at or above min
	for i, minLevel := range levels {
		t.Run(string(minLevel), func(t *testing.T) {
			logger := newTestLogger(t, minLevel)
			for _, lvl := range levels {
				if err := logger.Log(&Event{Level: lvl, Event: EventSkip}); err != nil {
					t.Fatalf("Log failed: %v", err)
				}
			}
			logger.Close()

			if n, want := len(readEvents(t, logger)), len(levels)-i; n != want {
				t.Errorf("Expected %d events logged, got %d", want, n)
			}
		})
	}
}

func TestEventLogger_TimestampKept(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	logger.Log(&Event{Timestamp: ts, Level: LevelInfo, Event: EventRun})
	logger.Close()

	events := readEvents(t, logger)
	if len(events) != 1 || !events[0].Timestamp.Equal(ts) {
		t.Errorf("Expected explicit timestamp to be kept, got %+v", events)
	}
}

func TestEventLogger_DropsAfterClose(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)
	logger.LogSkip("/in/a.mp3", "unchanged")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := logger.LogSkip("/in/b.mp3", "unchanged"); err != nil {
		t.Errorf("expected events after close to be dropped, got %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
	if events := readEvents(t, logger); len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}
