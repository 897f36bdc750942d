package cli

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in the given ISO 4217 currency, rounded to the
// currency's minor unit. Unknown codes fall back to two decimals and the code.
func FormatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}

	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// StyleAmount colours an amount: negative values in the error colour.
func StyleAmount(amount decimal.Decimal, code string) string {
	text := FormatMoney(amount, code)
	if amount.IsNegative() {
		return ErrorStyle.Render(text)
	}
	return text
}
