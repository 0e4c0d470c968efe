// Package policy decides what happens when a new file resembles a file
// already in the catalog. Decide is pure; side effects belong to the caller.
package policy

import (
	"errors"
	"fmt"

	"github.com/franz/music-catalog/internal/quality"
	"github.com/franz/music-catalog/internal/util"
)

// State names a step of the resolution state machine
type State string

const (
	StateNew            State = "NEW"
	StateCandidateFound State = "CANDIDATE_FOUND"
	StateAutoKeepNew    State = "AUTO_KEEP_NEW"
	StateAutoKeepOld    State = "AUTO_KEEP_OLD"
	StateAskHuman       State = "ASK_HUMAN"
	StateKeepNew        State = "KEEP_NEW"
	StateKeepOld        State = "KEEP_OLD"
	StateSkip           State = "SKIP"
	StateQuit           State = "QUIT"
	StateResolved       State = "RESOLVED"
)

// KeepsNew reports whether the new file becomes canonical
func (s State) KeepsNew() bool {
	return s == StateKeepNew || s == StateAutoKeepNew
}

// KeepsOld reports whether the existing file stays canonical
func (s State) KeepsOld() bool {
	return s == StateKeepOld || s == StateAutoKeepOld
}

// ErrQuit aborts a run at the user's request
var ErrQuit = errors.New("quit requested")

// Default thresholds
const (
	DefaultAsk  = 0.85
	DefaultAuto = 0.98
)

// Thresholds bound the similarity bands
type Thresholds struct {
	Ask  float64 // at or above: same recording, ask a human
	Auto float64 // at or above: same recording, decide by quality
}

// DefaultThresholds returns the default bands
func DefaultThresholds() Thresholds {
	return Thresholds{Ask: DefaultAsk, Auto: DefaultAuto}
}

// Validate checks 0 < Ask <= Auto <= 1
func (t Thresholds) Validate() error {
	if t.Ask <= 0 || t.Ask > t.Auto || t.Auto > 1 {
		return fmt.Errorf("%w: thresholds must satisfy 0 < ask (%.2f) <= auto (%.2f) <= 1",
			util.ErrInvalidConfig, t.Ask, t.Auto)
	}
	return nil
}

// Input is everything Decide looks at
type Input struct {
	HasCandidate bool
	Similarity   float64
	NewScore     int64
	OldScore     int64
}

// Decision is the outcome of Decide
type Decision struct {
	State  State
	Reason string
}

// Decide classifies a match. Without a candidate, or below the ask band,
// the file is new. In the ask band a human decides. At or above the auto
// band the strictly higher quality score wins and ties keep the old file.
func Decide(in Input, t Thresholds) Decision {
	if !in.HasCandidate {
		return Decision{State: StateNew, Reason: "no candidate"}
	}
	if in.Similarity < t.Ask {
		return Decision{State: StateNew, Reason: fmt.Sprintf("similarity %.3f below ask threshold", in.Similarity)}
	}
	if in.Similarity < t.Auto {
		return Decision{State: StateAskHuman, Reason: fmt.Sprintf("similarity %.3f needs review", in.Similarity)}
	}
	if in.NewScore > in.OldScore {
		return Decision{State: StateAutoKeepNew, Reason: "new file has higher quality"}
	}
	return Decision{State: StateAutoKeepOld, Reason: "existing file has equal or higher quality"}
}

// Choice is a human answer to a conflict
type Choice string

const (
	ChoiceKeepNew Choice = "keep-new"
	ChoiceKeepOld Choice = "keep-old"
	ChoiceSkip    Choice = "skip"
	ChoiceQuit    Choice = "quit"
)

// FromChoice maps a human answer to its state
func FromChoice(c Choice) (State, error) {
	switch c {
	case ChoiceKeepNew:
		return StateKeepNew, nil
	case ChoiceKeepOld:
		return StateKeepOld, nil
	case ChoiceSkip:
		return StateSkip, nil
	case ChoiceQuit:
		return StateQuit, nil
	}
	return "", fmt.Errorf("unknown choice %q", c)
}

// Side describes one file of a conflict
type Side struct {
	Path       string
	Attributes quality.Attributes
	Score      int64
}

// Conflict is presented to the human collaborator in the ask band
type Conflict struct {
	New        Side
	Old        Side
	Similarity float64
}
