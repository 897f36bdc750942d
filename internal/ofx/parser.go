// Package ofx reads OFX/QFX bank and credit card statements and turns their
// entries into transaction payloads for a ledger account.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Entry is one statement line. Amount is signed: negative for debits.
type Entry struct {
	Posted   time.Time
	FITID    string
	Type     string
	Name     string
	CheckNum string
	Amount   float64
}

// Statement is the list of entries for one bank or card account.
type Statement struct {
	AccountID    string
	Currency     string
	Entries      []Entry
	IsCreditCard bool
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Close SGML opening tags that lost their bracket at end of line
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in the file.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		statements = append(statements, Statement{
			AccountID: string(stmt.BankAcctFrom.AcctID),
			Currency:  fmt.Sprintf("%v", stmt.CurDef),
			Entries:   p.entries(stmt.BankTranList),
		})
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		statements = append(statements, Statement{
			AccountID:    string(stmt.CCAcctFrom.AcctID),
			Currency:     fmt.Sprintf("%v", stmt.CurDef),
			Entries:      p.entries(stmt.BankTranList),
			IsCreditCard: true,
		})
	}

	total := 0
	for _, s := range statements {
		total += len(s.Entries)
	}
	slog.Info("Parsed OFX file",
		"statements", len(statements),
		"total_transactions", total)

	return statements, nil
}

func (p *Parser) entries(list *ofxgo.TransactionList) []Entry {
	if list == nil {
		return nil
	}

	out := make([]Entry, 0, len(list.Transactions))
	for _, tx := range list.Transactions {
		amount, _ := tx.TrnAmt.Float64()
		out = append(out, Entry{
			FITID:    string(tx.FiTID),
			Posted:   tx.DtPosted.Time,
			Type:     fmt.Sprintf("%v", tx.TrnType),
			Name:     p.extractMerchantName(tx),
			CheckNum: string(tx.CheckNum),
			Amount:   amount,
		})
	}
	return out
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner merchant name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// Target is the ledger account a statement is imported into.
type Target struct {
	Account         model.Account
	IncomeCategory  string
	ExpenseCategory string
}

// Payloads converts statement entries into transaction payloads for target.
// Credits become income and debits become expenses, or card charges when the
// target is a card account. Credits on a card account are skipped: paying a
// card is recorded as a transfer by the user. Ids derive from the FITID so a
// repeated import replaces rather than duplicates.
func Payloads(stmt Statement, target Target) (payloads []ledger.TransactionInput, skipped int) {
	income := target.IncomeCategory
	if income == "" {
		income = "cat-other"
	}
	expense := target.ExpenseCategory
	if expense == "" {
		expense = "cat-other"
	}

	for _, e := range stmt.Entries {
		if e.Amount == 0 || e.FITID == "" {
			skipped++
			continue
		}

		in := ledger.TransactionInput{
			ID:          fmt.Sprintf("ofx-%s-%s", target.Account.ID, e.FITID),
			Datetime:    e.Posted.UTC().Format(time.RFC3339),
			AccountFrom: target.Account.ID,
			Note:        e.Name,
			Tags:        []string{"ofx"},
		}
		if e.CheckNum != "" {
			in.Tags = append(in.Tags, "check-"+e.CheckNum)
		}

		switch {
		case e.Amount > 0 && target.Account.IsCard():
			skipped++
			continue
		case e.Amount > 0:
			in.Kind, in.Amount, in.CategoryID = model.KindIncome, e.Amount, income
			if e.Type == "INT" || e.Type == "DIV" {
				in.CategoryID = "cat-investments"
			}
		case target.Account.IsCard():
			in.Kind, in.Amount, in.CategoryID = model.KindCard, -e.Amount, expense
		default:
			in.Kind, in.Amount, in.CategoryID = model.KindExpense, -e.Amount, expense
		}
		payloads = append(payloads, in)
	}
	return payloads, skipped
}
