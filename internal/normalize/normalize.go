// Package normalize canonicalizes free-text descriptions for similarity
// scoring. Normalization is a pure, total function: empty input yields
// empty output and nothing here can fail.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultStopTokens are memo boilerplate tokens dropped before scoring.
var DefaultStopTokens = []string{"ref", "txn", "payment"}

// Normalizer lower-cases, strips punctuation, collapses whitespace and
// removes stop tokens.
type Normalizer struct {
	stopTokens map[string]struct{}
}

// New builds a Normalizer with the given stop-token list. A nil list
// disables stop-token removal.
func New(stopTokens []string) *Normalizer {
	n := &Normalizer{stopTokens: make(map[string]struct{}, len(stopTokens))}
	for _, tok := range stopTokens {
		n.stopTokens[strings.ToLower(tok)] = struct{}{}
	}
	return n
}

// Normalize canonicalizes s: case-fold, punctuation to spaces, collapse
// runs of whitespace, drop stop tokens.
func (n *Normalizer) Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, drop := n.stopTokens[tok]; !drop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
