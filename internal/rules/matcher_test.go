package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

func TestApply(t *testing.T) {
	disabled := false
	enabled := true

	tests := []struct {
		name         string
		note         string
		wantCategory string
		rules        []model.Rule
	}{
		{
			name: "higher priority wins regardless of position in note",
			note: "Uber taxi ride",
			rules: []model.Rule{
				{ID: "r1", Contains: "uber", CategoryID: "cat-uber", Priority: 5},
				{ID: "r2", Contains: "taxi", CategoryID: "cat-taxi", Priority: 10},
			},
			wantCategory: "cat-taxi",
		},
		{
			name: "case insensitive match",
			note: "NETFLIX.COM monthly",
			rules: []model.Rule{
				{ID: "r1", Contains: "Netflix", CategoryID: "cat-leisure", Priority: 1},
			},
			wantCategory: "cat-leisure",
		},
		{
			name: "ties keep original order",
			note: "coffee and bagel",
			rules: []model.Rule{
				{ID: "r1", Contains: "bagel", CategoryID: "cat-bakery", Priority: 3},
				{ID: "r2", Contains: "coffee", CategoryID: "cat-coffee", Priority: 3},
			},
			wantCategory: "cat-bakery",
		},
		{
			name: "disabled rules are skipped",
			note: "gym membership",
			rules: []model.Rule{
				{ID: "r1", Contains: "gym", CategoryID: "cat-health", Priority: 9, Enabled: &disabled},
				{ID: "r2", Contains: "membership", CategoryID: "cat-other", Priority: 1, Enabled: &enabled},
			},
			wantCategory: "cat-other",
		},
		{
			name: "no match keeps category",
			note: "rent",
			rules: []model.Rule{
				{ID: "r1", Contains: "groceries", CategoryID: "cat-groceries", Priority: 1},
			},
			wantCategory: "cat-food",
		},
		{
			name: "empty note short circuits",
			note: "",
			rules: []model.Rule{
				{ID: "r1", Contains: "a", CategoryID: "cat-other", Priority: 1},
			},
			wantCategory: "cat-food",
		},
		{
			name: "blank substring never matches",
			note: "anything",
			rules: []model.Rule{
				{ID: "r1", Contains: "  ", CategoryID: "cat-other", Priority: 100},
			},
			wantCategory: "cat-food",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := model.Transaction{
				ID:         "t1",
				Effect:     model.Expense{Account: "a1"},
				CategoryID: "cat-food",
				Note:       tt.note,
				Tags:       []string{"keep"},
			}

			got := Apply(txn, tt.rules)

			assert.Equal(t, tt.wantCategory, got.CategoryID)
			assert.Equal(t, txn.ID, got.ID)
			assert.Equal(t, txn.Note, got.Note)
			assert.Equal(t, txn.Effect, got.Effect)
			assert.Equal(t, txn.Tags, got.Tags)
		})
	}
}

func TestApply_DoesNotMutateInputs(t *testing.T) {
	rules := []model.Rule{
		{ID: "low", Contains: "market", CategoryID: "cat-shopping", Priority: 1},
		{ID: "high", Contains: "super", CategoryID: "cat-groceries", Priority: 10},
	}
	original := append([]model.Rule(nil), rules...)

	txn := model.Transaction{ID: "t1", Note: "Supermarket", CategoryID: "cat-other"}
	got := Apply(txn, rules)

	assert.Equal(t, "cat-groceries", got.CategoryID)
	assert.Equal(t, "cat-other", txn.CategoryID)
	assert.Equal(t, original, rules)
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher([]model.Rule{
		{ID: "r1", Contains: "pharmacy", CategoryID: "cat-health", Priority: 2},
	})

	rule, ok := m.Match(model.Transaction{Note: "Corner Pharmacy #12"})
	require.True(t, ok)
	assert.Equal(t, "r1", rule.ID)

	_, ok = m.Match(model.Transaction{Note: "bookstore"})
	assert.False(t, ok)

	var nilMatcher *Matcher
	_, ok = nilMatcher.Match(model.Transaction{Note: "pharmacy"})
	assert.False(t, ok)
}

func TestApply_ExtremePriorities(t *testing.T) {
	tests := []struct {
		name string
		low  int
		high int
	}{
		{"min and positive", math.MinInt, 1},
		{"negative and max", -1, math.MaxInt},
		{"min and max", math.MinInt, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := []model.Rule{
				{ID: "low", Contains: "coffee", CategoryID: "cat-low", Priority: tt.low},
				{ID: "high", Contains: "coffee", CategoryID: "cat-high", Priority: tt.high},
			}
			txn := Apply(model.Transaction{Note: "coffee beans", CategoryID: "cat-other"}, rules)
			assert.Equal(t, "cat-high", txn.CategoryID)
		})
	}
}
