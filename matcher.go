package opts

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

// Similarity scores two strings between 0 (unrelated) and 1 (identical).
type Similarity func(a, b string) float64

// LevenshteinSimilarity is one minus the edit distance normalised by the
// longer string's rune count.
func LevenshteinSimilarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// DiceSimilarity is the Sorensen-Dice coefficient over character bigrams.
func DiceSimilarity(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewSorensenDice())
}

// JaroWinklerSimilarity favours strings sharing a common prefix.
func JaroWinklerSimilarity(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewJaroWinkler())
}

// SimilarityByName resolves a metric name used in configuration files.
func SimilarityByName(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "levenshtein":
		return LevenshteinSimilarity, nil
	case "dice", "sorensen-dice":
		return DiceSimilarity, nil
	case "jaro-winkler", "jarowinkler":
		return JaroWinklerSimilarity, nil
	default:
		return nil, &ConfigurationError{Key: "suggestions.metric", Reason: fmt.Sprintf("unknown similarity metric %q", name)}
	}
}

// Matcher produces keyword suggestions. Candidates scoring above Cutoff are
// kept; Limit caps the number of suggestions when positive.
type Matcher struct {
	Similarity Similarity
	Cutoff     float64
	Limit      int
}

// DefaultMatcher keeps every candidate with a non-zero Levenshtein score.
func DefaultMatcher() Matcher {
	return Matcher{Similarity: LevenshteinSimilarity}
}

type scored struct {
	candidate string
	score     float64
}

// Suggest yields candidates similar to keyword ordered by score descending,
// then alphabetically. Duplicate candidates are yielded once.
func (m Matcher) Suggest(keyword string, candidates []string) iter.Seq[string] {
	similarity := m.Similarity
	if similarity == nil {
		similarity = LevenshteinSimilarity
	}
	return func(yield func(string) bool) {
		ranked := make([]scored, 0, len(candidates))
		for _, candidate := range slices.Compact(slices.Sorted(slices.Values(candidates))) {
			score := similarity(keyword, candidate)
			if score > m.Cutoff {
				ranked = append(ranked, scored{candidate: candidate, score: score})
			}
		}
		slices.SortStableFunc(ranked, func(a, b scored) int {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
			return cmp.Compare(a.candidate, b.candidate)
		})
		for i, match := range ranked {
			if m.Limit > 0 && i >= m.Limit {
				return
			}
			if !yield(match.candidate) {
				return
			}
		}
	}
}

// Suggestions collects Suggest into a slice.
func (m Matcher) Suggestions(keyword string, candidates []string) []string {
	return slices.Collect(m.Suggest(keyword, candidates))
}

// Suggest yields candidates similar to keyword using the default matcher.
func Suggest(keyword string, candidates []string) iter.Seq[string] {
	return DefaultMatcher().Suggest(keyword, candidates)
}
