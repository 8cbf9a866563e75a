package ui

import (
	"sort"
	"strings"
)

// MaxSuggestionDistance is the largest edit distance reported as a suggestion
const MaxSuggestionDistance = 3

// Suggest returns up to three candidates close to target, closest first.
// Matching ignores case; ties keep the order of candidates.
func Suggest(target string, candidates []string) []string {
	type match struct {
		value    string
		distance int
	}

	lower := strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := Distance(lower, strings.ToLower(c)); d <= MaxSuggestionDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var out []string
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// DidYouMean formats the suggestions for target, or "" when there are none
func DidYouMean(target string, candidates []string) string {
	s := Suggest(target, candidates)
	if len(s) == 0 {
		return ""
	}
	return "did you mean " + strings.Join(s, " or ") + "?"
}

// Distance is the Levenshtein distance between a and b, counted in runes
func Distance(a, b string) int {
	s, t := []rune(a), []rune(b)
	if len(s) == 0 {
		return len(t)
	}
	if len(t) == 0 {
		return len(s)
	}

	prev := make([]int, len(t)+1)
	cur := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s); i++ {
		cur[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(t)]
}
