package main

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggest returns the candidate closest to target, or "" when nothing is
// close. Abbreviations match by subsequence; typos within two edits match
// by distance.
func suggest(target string, candidates []string) string {
	if target == "" || len(candidates) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
