package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventRun        EventType = "run"
	EventPrune      EventType = "prune"
	EventDecision   EventType = "decision"
	EventIdentify   EventType = "identify"
	EventMove       EventType = "move"
	EventQuarantine EventType = "quarantine"
	EventSkip       EventType = "skip"
	EventError      EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single audit event of a run
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	RunID      string            `json:"run_id"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	Path       string            `json:"path,omitempty"`
	OtherPath  string            `json:"other_path,omitempty"`
	State      string            `json:"state,omitempty"`
	Similarity float64           `json:"similarity,omitempty"`
	NewScore   int64             `json:"new_score,omitempty"`
	OldScore   int64             `json:"old_score,omitempty"`
	Action     string            `json:"action,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger appends events to a JSONL file, one file per run. A nil
// *EventLogger discards everything.
type EventLogger struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates events-<time>-<run>.jsonl in outputDir under a
// fresh run ID. Events below minLevel are dropped.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	l := &EventLogger{runID: uuid.NewString(), minLevel: minLevel}
	name := "events-" + time.Now().Format("20060102-150405") + "-" + l.runID[:8] + ".jsonl"
	l.path = filepath.Join(outputDir, name)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}
	l.file, l.enc = f, json.NewEncoder(f)
	return l, nil
}

// Log stamps the event with the run ID and writes it as one line
func (l *EventLogger) Log(e *Event) error {
	if l == nil || levelPriority[e.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	e.RunID = l.runID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := l.enc.Encode(e); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogRun logs a run lifecycle event such as "start" or "finish"
func (l *EventLogger) LogRun(action string, dryRun bool, extra map[string]string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventRun,
		Action: action,
		DryRun: dryRun,
		Extra:  extra,
	})
}

// LogPrune logs a catalog row removed because its file vanished
func (l *EventLogger) LogPrune(path string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventPrune,
		Path:   path,
		Action: "remove",
		Reason: "file no longer exists",
	})
}

// LogDecision logs the policy outcome for a file and its best match
func (l *EventLogger) LogDecision(path, matchPath, state string, similarity float64, newScore, oldScore int64, reason string) error {
	level := LevelInfo
	if matchPath == "" {
		level = LevelDebug
	}
	return l.Log(&Event{
		Level:      level,
		Event:      EventDecision,
		Path:       path,
		OtherPath:  matchPath,
		State:      state,
		Similarity: similarity,
		NewScore:   newScore,
		OldScore:   oldScore,
		Reason:     reason,
	})
}

// LogIdentify logs the recording and releases chosen for a file
func (l *EventLogger) LogIdentify(path, acoustID string, releases []string, source string) error {
	extra := map[string]string{"acoustid": acoustID, "source": source}
	for i, r := range releases {
		extra[fmt.Sprintf("release_%d", i+1)] = r
	}
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventIdentify,
		Path:  path,
		Extra: extra,
	})
}

// LogMove logs a move or copy into the library
func (l *EventLogger) LogMove(src, dest, action string, dryRun bool, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:     level,
		Event:     EventMove,
		Path:      src,
		OtherPath: dest,
		Action:    action,
		DryRun:    dryRun,
		Error:     errMsg,
	})
}

// LogQuarantine logs a file demoted to the quarantine root
func (l *EventLogger) LogQuarantine(src, dest, reason string, dryRun bool) error {
	return l.Log(&Event{
		Level:     LevelWarning,
		Event:     EventQuarantine,
		Path:      src,
		OtherPath: dest,
		Reason:    reason,
		DryRun:    dryRun,
	})
}

// LogSkip logs a file left alone for this run
func (l *EventLogger) LogSkip(path, reason string) error {
	return l.Log(&Event{
		Level:  LevelDebug,
		Event:  EventSkip,
		Path:   path,
		Reason: reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the file. Events logged afterwards are dropped.
func (l *EventLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the run identifier stamped on every event
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
