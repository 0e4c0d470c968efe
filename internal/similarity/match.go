package similarity

// Candidate is a fingerprint owned by some catalog key (a path or an
// external identifier)
type Candidate struct {
	Key         string
	Fingerprint string
}

// Match is the best-scoring candidate for a probe fingerprint
type Match struct {
	Candidate
	Ratio float64
}

// Best returns the candidate with the highest ratio against fp. Ties go to
// the candidate seen first. ok is false when candidates is empty.
func Best(fp string, candidates []Candidate) (Match, bool) {
	var best Match
	found := false

	for _, c := range candidates {
		r := Ratio(fp, c.Fingerprint)
		if !found || r > best.Ratio {
			best = Match{Candidate: c, Ratio: r}
			found = true
		}
	}

	return best, found
}
