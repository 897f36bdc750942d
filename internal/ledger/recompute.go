package ledger

import (
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// Recompute derives every account's balance and card bill from scratch. Each
// account starts from its initial balance with an empty bill, then the
// transactions are applied in ascending date order. References to accounts
// not in the set are ignored. Neither input is modified.
//
// Every mutation of the transaction log must be followed by a call to
// Recompute; balances are never adjusted incrementally.
func Recompute(accounts []model.Account, txs []model.Transaction) []model.Account {
	out := make([]model.Account, len(accounts))
	index := make(map[string]int, len(accounts))
	for i, acc := range accounts {
		acc.Balance = acc.InitialBalance
		acc.CardBill = decimal.Zero
		out[i] = acc
		index[acc.ID] = i
	}

	lookup := func(txID, accountID string) *model.Account {
		i, ok := index[accountID]
		if !ok {
			slog.Debug("Ignoring reference to unknown account",
				"transaction", txID,
				"account", accountID)
			return nil
		}
		return &out[i]
	}

	for _, tx := range SortByDate(txs) {
		switch e := tx.Effect.(type) {
		case model.Income:
			if acc := lookup(tx.ID, e.Account); acc != nil {
				acc.Balance = acc.Balance.Add(tx.Amount)
			}
		case model.Expense:
			if acc := lookup(tx.ID, e.Account); acc != nil {
				acc.Balance = acc.Balance.Sub(tx.Amount)
			}
		case model.Transfer:
			if acc := lookup(tx.ID, e.From); acc != nil {
				acc.Balance = acc.Balance.Sub(tx.Amount)
			}
			if acc := lookup(tx.ID, e.To); acc != nil {
				acc.Balance = acc.Balance.Add(tx.Amount)
			}
		case model.CardCharge:
			if acc := lookup(tx.ID, e.Card); acc != nil {
				acc.CardBill = acc.CardBill.Add(tx.Amount)
			}
		}
	}

	return out
}

// SortByDate returns a copy of txs stably sorted by ascending date.
func SortByDate(txs []model.Transaction) []model.Transaction {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b model.Transaction) int {
		return a.Date.Compare(b.Date)
	})
	return sorted
}

// Summary aggregates recomputed accounts.
type Summary struct {
	NetWorth   decimal.Decimal
	CardBills  decimal.Decimal
	Available  decimal.Decimal
	Accounts   int
	CardsCount int
}

// Totals summarises balances across accounts. Available is the net worth
// minus outstanding card bills.
func Totals(accounts []model.Account) Summary {
	s := Summary{NetWorth: decimal.Zero, CardBills: decimal.Zero}
	for _, acc := range accounts {
		s.Accounts++
		s.NetWorth = s.NetWorth.Add(acc.Balance)
		if acc.IsCard() {
			s.CardsCount++
			s.CardBills = s.CardBills.Add(acc.CardBill)
		}
	}
	s.Available = s.NetWorth.Sub(s.CardBills)
	return s
}
