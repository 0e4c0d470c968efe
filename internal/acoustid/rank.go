package acoustid

import "sort"

// Rank orders candidates in place: releases already in the catalog first,
// then higher similarity, then the preferred country, then newer years.
// owned may be nil; an empty country disables the country preference.
func Rank(cands []Candidate, owned map[string]bool, preferredCountry string) {
	for i := range cands {
		if owned != nil {
			cands[i].Owned = owned[cands[i].ReleaseID]
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Owned != b.Owned {
			return a.Owned
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if preferredCountry != "" {
			ap, bp := a.Country == preferredCountry, b.Country == preferredCountry
			if ap != bp {
				return ap
			}
		}
		return a.Year > b.Year
	})
}
