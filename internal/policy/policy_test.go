package policy

import (
	"errors"
	"testing"

	"github.com/franz/music-catalog/internal/util"
)

func TestDecide(t *testing.T) {
	th := DefaultThresholds()

	testCases := []struct {
		name string
		in   Input
		want State
	}{
		{"no candidate", Input{}, StateNew},
		{"below ask", Input{HasCandidate: true, Similarity: 0.84}, StateNew},
		{"at ask", Input{HasCandidate: true, Similarity: 0.85}, StateAskHuman},
		{"inside ask band", Input{HasCandidate: true, Similarity: 0.90, NewScore: 9, OldScore: 1}, StateAskHuman},
		{"just below auto", Input{HasCandidate: true, Similarity: 0.979}, StateAskHuman},
		{"auto, new better", Input{HasCandidate: true, Similarity: 0.99, NewScore: 5000, OldScore: 1000}, StateAutoKeepNew},
		{"auto, new worse", Input{HasCandidate: true, Similarity: 0.99, NewScore: 500, OldScore: 1000}, StateAutoKeepOld},
		{"auto, tie keeps old", Input{HasCandidate: true, Similarity: 1.0, NewScore: 1000, OldScore: 1000}, StateAutoKeepOld},
		{"at auto", Input{HasCandidate: true, Similarity: 0.98, NewScore: 2, OldScore: 1}, StateAutoKeepNew},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.in, th)
			if got.State != tc.want {
				t.Errorf("expected %s, got %s (%s)", tc.want, got.State, got.Reason)
			}
			if got.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	testCases := []struct {
		th    Thresholds
		valid bool
	}{
		{DefaultThresholds(), true},
		{Thresholds{Ask: 0.9, Auto: 0.9}, true},
		{Thresholds{Ask: 0, Auto: 0.9}, false},
		{Thresholds{Ask: 0.95, Auto: 0.9}, false},
		{Thresholds{Ask: 0.9, Auto: 1.1}, false},
	}

	for _, tc := range testCases {
		err := tc.th.Validate()
		if tc.valid && err != nil {
			t.Errorf("expected %+v to be valid, got %v", tc.th, err)
		}
		if !tc.valid && !errors.Is(err, util.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for %+v, got %v", tc.th, err)
		}
	}
}

func TestFromChoice(t *testing.T) {
	testCases := map[Choice]State{
		ChoiceKeepNew: StateKeepNew,
		ChoiceKeepOld: StateKeepOld,
		ChoiceSkip:    StateSkip,
		ChoiceQuit:    StateQuit,
	}
	for c, want := range testCases {
		got, err := FromChoice(c)
		if err != nil || got != want {
			t.Errorf("FromChoice(%q) = %s, %v; want %s", c, got, err, want)
		}
	}

	if _, err := FromChoice("maybe"); err == nil {
		t.Error("expected error for unknown choice")
	}

	if !StateKeepNew.KeepsNew() || !StateAutoKeepNew.KeepsNew() || StateKeepOld.KeepsNew() {
		t.Error("KeepsNew mismatch")
	}
	if !StateKeepOld.KeepsOld() || !StateAutoKeepOld.KeepsOld() || StateSkip.KeepsOld() {
		t.Error("KeepsOld mismatch")
	}
}
