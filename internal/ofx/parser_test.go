package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240128120000[0:GMT]
<TRNAMT>2100.00
<FITID>2024012801
<NAME>ACME PAYROLL
</STMTTRN>
<STMTTRN>
<TRNTYPE>INT
<DTPOSTED>20240131120000[0:GMT]
<TRNAMT>1.25
<FITID>2024013101
<NAME>INTEREST PAID
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>300.00
<FITID>CC2024012501
<NAME>PAYMENT THANK YOU
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
		creditCard    bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 5,
		},
		{
			name:          "valid credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 3,
			creditCard:    true,
		},
		{
			name:          "leading blank lines",
			ofxData:       "\n\n  " + sampleBankOFX,
			expectedCount: 5,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser()

			statements, err := parser.Parse(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, statements, 1)
			assert.Len(t, statements[0].Entries, tt.expectedCount)
			assert.Equal(t, tt.creditCard, statements[0].IsCreditCard)
		})
	}
}

func TestParseBankEntries(t *testing.T) {
	statements, err := NewParser().Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, statements, 1)

	stmt := statements[0]
	assert.Equal(t, "1234567890", stmt.AccountID)
	assert.Equal(t, "USD", stmt.Currency)

	e := stmt.Entries[0]
	assert.Equal(t, "2024011501", e.FITID)
	assert.Equal(t, "STARBUCKS STORE #1234", e.Name)
	assert.InDelta(t, -25.50, e.Amount, 0.001)
	assert.Equal(t, 2024, e.Posted.Year())
	assert.Equal(t, time.January, e.Posted.Month())
	assert.Equal(t, 15, e.Posted.Day())

	assert.Equal(t, "1234", stmt.Entries[2].CheckNum)
	assert.InDelta(t, 2100.00, stmt.Entries[3].Amount, 0.001)
}

func TestExtractMerchantName(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		memo     string
		expected string
	}{
		{
			name:     "remove POS prefix",
			input:    "POS PURCHASE STARBUCKS",
			expected: "STARBUCKS",
		},
		{
			name:     "remove DEBIT CARD prefix",
			input:    "DEBIT CARD PURCHASE WHOLE FOODS",
			expected: "WHOLE FOODS",
		},
		{
			name:     "keep clean name",
			input:    "NETFLIX.COM",
			expected: "NETFLIX.COM",
		},
		{
			name:     "trim whitespace",
			input:    "  AMAZON.COM  ",
			expected: "AMAZON.COM",
		},
		{
			name:     "generic name falls back to memo",
			input:    "DEBIT",
			memo:     "CORNER BAKERY",
			expected: "CORNER BAKERY",
		},
		{
			name:     "strip leading date",
			input:    "03/14 HARDWARE STORE",
			expected: "HARDWARE STORE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{
				Name: ofxgo.String(tt.input),
				Memo: ofxgo.String(tt.memo),
			}
			assert.Equal(t, tt.expected, parser.extractMerchantName(tx))
		})
	}
}

func TestPayloads_BankAccount(t *testing.T) {
	statements, err := NewParser().Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	target := Target{
		Account:         model.Account{ID: "acc-1", Kind: model.AccountBank},
		ExpenseCategory: "cat-shopping",
	}
	payloads, skipped := Payloads(statements[0], target)
	require.Len(t, payloads, 5)
	assert.Zero(t, skipped)

	first := payloads[0]
	assert.Equal(t, "ofx-acc-1-2024011501", first.ID)
	assert.Equal(t, model.KindExpense, first.Kind)
	assert.InDelta(t, 25.50, first.Amount, 0.001)
	assert.Equal(t, "cat-shopping", first.CategoryID)
	assert.Equal(t, "acc-1", first.AccountFrom)
	assert.Equal(t, []string{"ofx"}, first.Tags)

	assert.Equal(t, []string{"ofx", "check-1234"}, payloads[2].Tags)

	payroll := payloads[3]
	assert.Equal(t, model.KindIncome, payroll.Kind)
	assert.Equal(t, "cat-other", payroll.CategoryID)

	assert.Equal(t, "cat-investments", payloads[4].CategoryID)

	for _, p := range payloads {
		require.NoError(t, ledger.ValidateTransaction(p), p.ID)
	}
}

func TestPayloads_CardAccount(t *testing.T) {
	statements, err := NewParser().Parse(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)

	target := Target{Account: model.Account{ID: "visa", Kind: model.AccountCard}}
	payloads, skipped := Payloads(statements[0], target)

	require.Len(t, payloads, 2)
	assert.Equal(t, 1, skipped, "card payments are not charges")
	for _, p := range payloads {
		assert.Equal(t, model.KindCard, p.Kind)
	}

	built, err := payloads[0].Build(payloads[0].ID, time.Now())
	require.NoError(t, err)
	assert.True(t, built.Amount.Equal(decimal.RequireFromString("45.99")))
}

func TestPayloads_SkipsUnusableEntries(t *testing.T) {
	stmt := Statement{Entries: []Entry{
		{FITID: "", Amount: -5, Posted: time.Now()},
		{FITID: "zero", Amount: 0, Posted: time.Now()},
	}}
	payloads, skipped := Payloads(stmt, Target{Account: model.Account{ID: "a", Kind: model.AccountWallet}})
	assert.Empty(t, payloads)
	assert.Equal(t, 2, skipped)
}
