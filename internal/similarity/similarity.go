// Package similarity provides pluggable string similarity scoring over
// normalized text. Scores are in [0,1], higher means more alike.
package similarity

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Scorer computes a similarity score for two normalized strings.
type Scorer interface {
	Score(a, b string) float64
}

// LevenshteinScorer scores by edit distance ratio: 1 - distance/maxLen.
type LevenshteinScorer struct{}

func (LevenshteinScorer) Score(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// TokenOverlapScorer scores by Dice coefficient over whitespace tokens:
// 2*|A∩B| / (|A|+|B|).
type TokenOverlapScorer struct{}

func (TokenOverlapScorer) Score(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}
	shared := 0
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			shared++
		}
	}
	return 2.0 * float64(shared) / float64(len(tokensA)+len(tokensB))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// NGramScorer scores by Dice coefficient over character n-grams of the
// space-stripped string. It is robust to token concatenation and
// reordering ("invoice99 vendorx" vs "vendor x invoice 99") where both
// token overlap and whole-string edit distance degrade.
type NGramScorer struct {
	N int
}

func (g NGramScorer) Score(a, b string) float64 {
	n := g.N
	if n < 1 {
		n = 3
	}
	gramsA := gramSet(a, n)
	gramsB := gramSet(b, n)
	if len(gramsA) == 0 && len(gramsB) == 0 {
		return 1.0
	}
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0.0
	}
	shared := 0
	for gram := range gramsA {
		if _, ok := gramsB[gram]; ok {
			shared++
		}
	}
	return 2.0 * float64(shared) / float64(len(gramsA)+len(gramsB))
}

func gramSet(s string, n int) map[string]struct{} {
	runes := []rune(strings.ReplaceAll(s, " ", ""))
	set := make(map[string]struct{})
	for i := 0; i+n <= len(runes); i++ {
		set[string(runes[i:i+n])] = struct{}{}
	}
	return set
}

// MaxScorer returns the best score among its members. The default
// scorer combines edit distance and token overlap so that reordered
// tokens ("Invoice99 VendorX" vs "Vendor X Invoice 99") still score high.
type MaxScorer []Scorer

func (m MaxScorer) Score(a, b string) float64 {
	best := 0.0
	for _, s := range m {
		if v := s.Score(a, b); v > best {
			best = v
		}
	}
	return best
}

// Default is the scorer used by the engine unless overridden.
func Default() Scorer {
	return MaxScorer{LevenshteinScorer{}, TokenOverlapScorer{}, NGramScorer{N: 3}}
}
