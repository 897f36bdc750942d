// Package rules assigns categories to transactions from user-defined
// substring rules.
package rules

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// Matcher evaluates transactions against an ordered rule set. The zero value
// matches nothing.
type Matcher struct {
	rules    []model.Rule
	patterns []string
}

// NewMatcher keeps the enabled rules with a non-blank substring, ordered by
// descending priority. Rules with equal priority keep their relative order.
// The caller's slice is not modified.
func NewMatcher(rules []model.Rule) *Matcher {
	active := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsEnabled() || strings.TrimSpace(rule.Contains) == "" {
			continue
		}
		active = append(active, rule)
	}

	slices.SortStableFunc(active, func(a, b model.Rule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	m := &Matcher{
		rules:    active,
		patterns: make([]string, len(active)),
	}
	for i, rule := range active {
		m.patterns[i] = strings.ToLower(rule.Contains)
	}
	return m
}

// Match returns the first rule whose substring appears in the transaction
// note, ignoring case.
func (m *Matcher) Match(txn model.Transaction) (model.Rule, bool) {
	if m == nil || txn.Note == "" {
		return model.Rule{}, false
	}

	note := strings.ToLower(txn.Note)
	for i, pattern := range m.patterns {
		if strings.Contains(note, pattern) {
			return m.rules[i], true
		}
	}
	return model.Rule{}, false
}

// Apply returns txn with its category replaced by the winning rule's
// category. Every other field is preserved.
func (m *Matcher) Apply(txn model.Transaction) model.Transaction {
	rule, ok := m.Match(txn)
	if !ok {
		return txn
	}
	txn.CategoryID = rule.CategoryID
	return txn
}

// Apply runs the rule set against a single transaction. A transaction with
// an empty note is returned unchanged without evaluating any rule.
func Apply(txn model.Transaction, rules []model.Rule) model.Transaction {
	if txn.Note == "" {
		return txn
	}
	return NewMatcher(rules).Apply(txn)
}
