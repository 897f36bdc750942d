package rules

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// DefaultMinOccurrences is how many transactions must share a note before a
// rule is suggested for it.
const DefaultMinOccurrences = 3

// minConfidence is the share of a note's transactions that must agree on a
// category.
const minConfidence = 0.8

// Suggestion proposes a rule learned from how existing transactions were
// categorised.
type Suggestion struct {
	Contains   string  `json:"contains"`
	CategoryID string  `json:"categoryId"`
	Reason     string  `json:"reason"`
	Matches    int     `json:"matches"`
	Confidence float64 `json:"confidence"`
}

// Suggest looks for notes that repeat at least minOccurrences times and are
// almost always given the same category, and proposes a rule for each one
// that no current rule already covers. A category is only proposed when it
// applies to every transaction kind seen with the note. Suggestions are
// ordered by number of matches, then by note.
func Suggest(txs []model.Transaction, current []model.Rule, categories []model.Category, minOccurrences int) []Suggestion {
	if minOccurrences < 1 {
		minOccurrences = DefaultMinOccurrences
	}

	byID := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	type group struct {
		counts map[string]int
		kinds  map[model.TransactionKind]bool
		label  string
		total  int
	}
	groups := make(map[string]*group)
	for _, txn := range txs {
		key := strings.ToLower(strings.TrimSpace(txn.Note))
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{
				counts: make(map[string]int),
				kinds:  make(map[model.TransactionKind]bool),
				label:  strings.TrimSpace(txn.Note),
			}
			groups[key] = g
		}
		g.counts[txn.CategoryID]++
		g.kinds[txn.Kind()] = true
		g.total++
	}

	matcher := NewMatcher(current)
	var out []Suggestion
	for _, g := range groups {
		if g.total < minOccurrences {
			continue
		}
		if _, covered := matcher.Match(model.Transaction{Note: g.label}); covered {
			continue
		}

		categoryID, count := dominant(g.counts)
		confidence := float64(count) / float64(g.total)
		if confidence < minConfidence {
			continue
		}
		cat, ok := byID[categoryID]
		if !ok || !appliesToAll(cat, g.kinds) {
			continue
		}

		out = append(out, Suggestion{
			Contains:   g.label,
			CategoryID: categoryID,
			Matches:    g.total,
			Confidence: confidence,
			Reason:     fmt.Sprintf("%d of %d transactions noted %q are categorised as %s", count, g.total, g.label, cat.Name),
		})
	}

	slices.SortFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Matches, a.Matches); c != 0 {
			return c
		}
		return strings.Compare(a.Contains, b.Contains)
	})
	return out
}

func dominant(counts map[string]int) (string, int) {
	var best string
	var n int
	for id, c := range counts {
		if c > n || (c == n && id < best) {
			best, n = id, c
		}
	}
	return best, n
}

func appliesToAll(cat model.Category, kinds map[model.TransactionKind]bool) bool {
	for kind := range kinds {
		if !cat.AppliesTo(kind) {
			return false
		}
	}
	return true
}
