// Package similarity compares acoustic fingerprints.
//
// The ratio is the classic longest-matching-blocks measure: find the longest
// common run, recurse on both sides of it, and report 2*M/T where M is the
// number of matched code points and T the combined length. No junk heuristic
// is applied, so every character of the fingerprint counts.
package similarity

// Ratio returns the similarity of a and b in [0,1]. Two empty strings are
// identical. The result does not depend on argument order.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// Canonical operand order keeps tie-breaks inside the matcher stable,
	// which makes Ratio(a, b) == Ratio(b, a) exactly.
	if a > b {
		a, b = b, a
	}

	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}

	m := newMatcher(ar, br)
	return 2.0 * float64(m.matches()) / float64(total)
}

type matcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func newMatcher(a, b []rune) *matcher {
	b2j := make(map[rune][]int)
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}
	return &matcher{a: a, b: b, b2j: b2j}
}

type span struct {
	alo, ahi, blo, bhi int
}

// matches returns the total size of all matching blocks
func (m *matcher) matches() int {
	total := 0
	queue := []span{{0, len(m.a), 0, len(m.b)}}

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := m.longest(s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}

	return total
}

// longest finds the longest matching block in a[alo:ahi] and b[blo:bhi].
// Among equally long blocks it returns the one that starts earliest in a,
// and of those the one that starts earliest in b.
func (m *matcher) longest(alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestk := alo, blo, 0

	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}

	return besti, bestj, bestk
}
