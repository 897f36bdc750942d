package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/testutil"
)

func noted(id, note, category string, effect model.Effect) model.Transaction {
	txn := testutil.Txn(id, 0, "10", effect)
	txn.Note = note
	txn.CategoryID = category
	return txn
}

func TestSuggest(t *testing.T) {
	spend := model.Expense{Account: "bank"}
	earn := model.Income{Account: "bank"}

	tests := []struct {
		name    string
		txs     []model.Transaction
		current []model.Rule
		want    []string
	}{
		{
			name: "repeated note with a consistent category",
			txs: []model.Transaction{
				noted("t1", "Coffee Shop", "cat-food", spend),
				noted("t2", "coffee shop ", "cat-food", spend),
				noted("t3", "COFFEE SHOP", "cat-food", spend),
			},
			want: []string{"Coffee Shop→cat-food"},
		},
		{
			name: "too few occurrences",
			txs: []model.Transaction{
				noted("t1", "Bakery", "cat-food", spend),
				noted("t2", "Bakery", "cat-food", spend),
			},
		},
		{
			name: "categories disagree",
			txs: []model.Transaction{
				noted("t1", "Market", "cat-food", spend),
				noted("t2", "Market", "cat-groceries", spend),
				noted("t3", "Market", "cat-food", spend),
			},
		},
		{
			name: "already covered by a rule",
			txs: []model.Transaction{
				noted("t1", "Uber trip", "cat-transport", spend),
				noted("t2", "Uber trip", "cat-transport", spend),
				noted("t3", "Uber trip", "cat-transport", spend),
			},
			current: []model.Rule{{ID: "r1", Contains: "uber", CategoryID: "cat-transport"}},
		},
		{
			name: "category does not apply to the kind",
			txs: []model.Transaction{
				noted("t1", "Refund", "cat-food", earn),
				noted("t2", "Refund", "cat-food", earn),
				noted("t3", "Refund", "cat-food", earn),
			},
		},
		{
			name: "ordered by matches",
			txs: []model.Transaction{
				noted("t1", "Gym", "cat-health", spend),
				noted("t2", "Gym", "cat-health", spend),
				noted("t3", "Gym", "cat-health", spend),
				noted("t4", "Payroll", "cat-salary", earn),
				noted("t5", "Payroll", "cat-salary", earn),
				noted("t6", "Payroll", "cat-salary", earn),
				noted("t7", "Payroll", "cat-salary", earn),
				noted("t8", "", "cat-other", spend),
			},
			want: []string{"Payroll→cat-salary", "Gym→cat-health"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Suggest(tt.txs, tt.current, model.DefaultCategories(), DefaultMinOccurrences)

			var pairs []string
			for _, s := range got {
				pairs = append(pairs, s.Contains+"→"+s.CategoryID)
			}
			assert.Equal(t, tt.want, pairs)
		})
	}
}

func TestSuggest_Confidence(t *testing.T) {
	spend := model.Expense{Account: "bank"}
	var txs []model.Transaction
	for i := range 4 {
		txs = append(txs, noted(string(rune('a'+i)), "Pharmacy", "cat-health", spend))
	}
	txs = append(txs, noted("e", "Pharmacy", "cat-shopping", spend))

	got := Suggest(txs, nil, model.DefaultCategories(), 0)

	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Matches)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
	assert.Contains(t, got[0].Reason, "4 of 5")
}
