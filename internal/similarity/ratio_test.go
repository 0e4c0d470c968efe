package similarity

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRatio(t *testing.T) {
	testCases := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1.0},
		{"one empty", "abc", "", 0.0},
		{"identical", "AQADtMmybfGO", "AQADtMmybfGO", 1.0},
		{"disjoint", "aaaa", "bbbb", 0.0},
		{"one substitution of 100", strings.Repeat("A", 100), strings.Repeat("A", 99) + "B", 0.99},
		{"ten substitutions of 100", strings.Repeat("A", 100), strings.Repeat("A", 90) + strings.Repeat("B", 10), 0.90},
		{"classic abcd", "abcd", "bcde", 0.75},
		{"multibyte runes", "ééé", "éé", 0.8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Ratio(tc.a, tc.b)
			if !almostEqual(got, tc.want) {
				t.Errorf("Ratio(%q, %q) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestRatioIdentity(t *testing.T) {
	inputs := []string{"", "a", "AQADtEmUSYmSJEqS", strings.Repeat("xyz", 500)}
	for _, in := range inputs {
		if got := Ratio(in, in); got != 1.0 {
			t.Errorf("Ratio(f, f) = %f for len %d, want 1.0", got, len(in))
		}
	}
}

func TestRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"abxcd", "abcd"},
		{"qabxcd", "abycdf"},
		{"ABABABAB", "BABABABA"},
		{"AQADtMmybfGOIDny", "AQADtMmybfGOJDnx"},
		{"private", "privates"},
	}

	for _, p := range pairs {
		ab := Ratio(p[0], p[1])
		ba := Ratio(p[1], p[0])
		if ab != ba {
			t.Errorf("Ratio not symmetric for %q/%q: %f vs %f", p[0], p[1], ab, ba)
		}
	}
}

func TestRatioMonotonicUnderSubstitution(t *testing.T) {
	base := []rune("abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGH")
	prev := 1.0

	mutated := append([]rune(nil), base...)
	for i := 0; i < len(mutated); i += 3 {
		mutated[i] = '#'
		r := Ratio(string(base), string(mutated))
		if r >= prev {
			t.Fatalf("ratio increased after substitution %d: %f > %f", i, r, prev)
		}
		prev = r
	}
	if prev >= 1.0 {
		t.Errorf("expected ratio to drop below 1.0, got %f", prev)
	}
}

func TestBest(t *testing.T) {
	fp := strings.Repeat("A", 100)

	_, ok := Best(fp, nil)
	if ok {
		t.Fatal("expected no match for empty candidate list")
	}

	candidates := []Candidate{
		{Key: "/far.mp3", Fingerprint: strings.Repeat("B", 100)},
		{Key: "/first.mp3", Fingerprint: strings.Repeat("A", 99) + "C"},
		{Key: "/second.mp3", Fingerprint: strings.Repeat("A", 99) + "D"},
	}

	m, ok := Best(fp, candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Key != "/first.mp3" {
		t.Errorf("expected tie to go to first seen candidate, got %s", m.Key)
	}
	if !almostEqual(m.Ratio, 0.99) {
		t.Errorf("expected ratio 0.99, got %f", m.Ratio)
	}
}
