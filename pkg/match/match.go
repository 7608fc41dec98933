// Package match decides whether two entity names refer to the same thing.
// Matching is layered: exact equality, diacritic- and case-insensitive
// equality, punctuation-normalized equality, then a token-set similarity
// score computed with Levenshtein distance. The same Matcher instance is
// shared by the resolver (search candidate filtering) and the graph
// assembler (node merging), so both see one consistent notion of identity.
package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum Score at which two names are considered
// the same entity.
const DefaultThreshold = 0.85

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Matcher scores candidate names against a threshold. The zero value is not
// usable; construct with NewMatcher.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a Matcher. A threshold of zero or less selects
// DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured match threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Same reports whether a and b score at or above the threshold.
func (m *Matcher) Same(a, b string) bool {
	return m.Score(a, b) >= m.threshold
}

// Score returns a similarity in [0, 1]. Identical names after folding and
// normalization score 1; otherwise the score is the best token-set
// Levenshtein similarity, so "Einstein" scores 1 against
// "Albert Einstein" because its token set is fully contained.
func (m *Matcher) Score(a, b string) float64 {
	if a == b {
		return 1
	}

	foldedA, foldedB := Fold(a), Fold(b)
	if foldedA == foldedB {
		return 1
	}

	tokensA, tokensB := tokenize(foldedA), tokenize(foldedB)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	score := tokenSetSimilarity(tokensA, tokensB)
	if len(tokensA) == 1 || len(tokensB) == 1 {
		// A single-token name like a misspelled surname should align with
		// its best counterpart token, not with the whole joined string.
		if s := bestTokenSimilarity(tokensA, tokensB); s > score {
			score = s
		}
	}
	return score
}

// BestMatch returns the index and score of the candidate most similar to
// query, or ok=false when no candidate reaches the threshold. Ties go to
// the shorter candidate, then to the earlier one.
func (m *Matcher) BestMatch(query string, candidates []string) (int, float64, bool) {
	bestIdx := -1
	bestScore := 0.0
	for i, candidate := range candidates {
		score := m.Score(query, candidate)
		if score < m.threshold {
			continue
		}
		switch {
		case bestIdx < 0,
			score > bestScore,
			score == bestScore && len(candidate) < len(candidates[bestIdx]):
			bestIdx = i
			bestScore = score
		}
	}
	if bestIdx < 0 {
		return -1, 0, false
	}
	return bestIdx, bestScore, true
}

// Fold lowercases s and strips diacritical marks, so "Ångström" and
// "angstrom" compare equal.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// tokenize splits a folded name into word tokens, dropping punctuation.
func tokenize(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenSetSimilarity compares the shared token core of both names against
// each full token set and keeps the best Levenshtein similarity. A name
// whose tokens are a subset of the other's therefore scores 1.
func tokenSetSimilarity(tokensA, tokensB []string) float64 {
	setA, setB := toSet(tokensA), toSet(tokensB)

	var shared, onlyA, onlyB []string
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared = append(shared, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range setB {
		if _, ok := setA[token]; !ok {
			onlyB = append(onlyB, token)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	core := strings.Join(shared, " ")
	fullA := strings.TrimSpace(core + " " + strings.Join(onlyA, " "))
	fullB := strings.TrimSpace(core + " " + strings.Join(onlyB, " "))

	best := levenshtein.Similarity(fullA, fullB, nil)
	if core != "" {
		if s := levenshtein.Similarity(core, fullA, nil); s > best {
			best = s
		}
		if s := levenshtein.Similarity(core, fullB, nil); s > best {
			best = s
		}
	}
	return best
}

func bestTokenSimilarity(tokensA, tokensB []string) float64 {
	best := 0.0
	for _, a := range tokensA {
		for _, b := range tokensB {
			if s := levenshtein.Similarity(a, b, nil); s > best {
				best = s
			}
		}
	}
	return best
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
