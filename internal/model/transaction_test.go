package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionJSON_TransferCarriesDestination(t *testing.T) {
	tx := Transaction{
		ID:         "t1",
		Effect:     Transfer{From: "a1", To: "a2"},
		Amount:     decimal.RequireFromString("10.5"),
		Date:       time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
		CategoryID: "cat-transfer",
	}

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "transfer", flat["kind"])
	assert.Equal(t, "a1", flat["accountFrom"])
	assert.Equal(t, "a2", flat["accountTo"])
	assert.Equal(t, []any{}, flat["tags"])

	var back Transaction
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tx.Effect, back.Effect)
	assert.True(t, tx.Amount.Equal(back.Amount))
	assert.True(t, tx.Date.Equal(back.Date))
}

func TestTransactionJSON_NonTransferHasNullDestination(t *testing.T) {
	data, err := json.Marshal(Transaction{ID: "t2", Effect: CardCharge{Card: "visa"}, Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "card", flat["kind"])
	assert.Equal(t, "visa", flat["accountFrom"])
	assert.Contains(t, flat, "accountTo")
	assert.Nil(t, flat["accountTo"])
}

func TestTransactionJSON_AcceptsNumericAmountsAndRejectsUnknownKinds(t *testing.T) {
	var tx Transaction
	err := json.Unmarshal([]byte(`{"id":"t3","kind":"income","amount":99.95,"datetime":"2025-02-01T00:00:00Z","accountFrom":"a1","accountTo":null,"categoryId":"cat-salary"}`), &tx)
	require.NoError(t, err)
	assert.Equal(t, Income{Account: "a1"}, tx.Effect)
	assert.Equal(t, "99.95", tx.Amount.String())

	err = json.Unmarshal([]byte(`{"id":"t4","kind":"refund","amount":1}`), &tx)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestMarshalWithoutEffectFails(t *testing.T) {
	_, err := json.Marshal(Transaction{ID: "t5"})
	assert.Error(t, err)
}

func TestTransaction_Touches(t *testing.T) {
	tx := Transaction{Effect: Transfer{From: "a", To: "b"}}
	assert.True(t, tx.Touches("a"))
	assert.True(t, tx.Touches("b"))
	assert.False(t, tx.Touches("c"))
	assert.False(t, Transaction{}.Touches("a"))
}

func TestCategory_AppliesTo(t *testing.T) {
	income := Category{Kind: CategoryKindIncome}
	expense := Category{Kind: CategoryKindExpense}
	both := Category{Kind: CategoryKindBoth}

	assert.True(t, income.AppliesTo(KindIncome))
	assert.False(t, income.AppliesTo(KindExpense))
	assert.True(t, expense.AppliesTo(KindCard))
	assert.True(t, both.AppliesTo(KindTransfer))
}

func TestRule_IsEnabled(t *testing.T) {
	off := false
	assert.True(t, Rule{}.IsEnabled())
	assert.False(t, Rule{Enabled: &off}.IsEnabled())
}
