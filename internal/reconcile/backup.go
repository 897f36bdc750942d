// Package reconcile merges or overwrites the local dataset with an imported
// backup and re-derives balances afterwards.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// CurrentVersion is the only backup version this build accepts.
const CurrentVersion = 1

// Backup errors. Both are returned before anything is written.
var (
	ErrInvalidVersion = errors.New("unsupported backup version")
	ErrInvalidBackup  = errors.New("invalid backup")
)

// Dataset holds the seven keyed collections.
type Dataset struct {
	Accounts     []model.Account     `json:"accounts"`
	Transactions []model.Transaction `json:"transactions"`
	Categories   []model.Category    `json:"categories"`
	Budgets      []model.Budget      `json:"budgets"`
	Goals        []model.Goal        `json:"goals"`
	Boxes        []model.Box         `json:"boxes"`
	Rules        []model.Rule        `json:"rules"`
}

// Backup is the export document.
type Backup struct {
	Settings   map[string]json.RawMessage `json:"settings"`
	Data       *Dataset                   `json:"data"`
	ExportedAt string                     `json:"exportedAt"`
	Version    int                        `json:"version"`
}

// Export builds a backup document from a dataset and the metadata map.
func Export(data Dataset, settings map[string]json.RawMessage, now time.Time) *Backup {
	if settings == nil {
		settings = map[string]json.RawMessage{}
	}
	return &Backup{
		Version:    CurrentVersion,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Settings:   settings,
		Data:       &data,
	}
}

// Decode reads and checks a backup document.
func Decode(r io.Reader) (*Backup, error) {
	var doc Backup
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the version marker, that every record has an id, and that
// accounts and transactions obey the same rules as user input.
func (b *Backup) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidBackup)
	}
	if b.Version != CurrentVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidVersion, b.Version, CurrentVersion)
	}
	if b.Data == nil {
		return fmt.Errorf("%w: missing data", ErrInvalidBackup)
	}

	checks := []struct {
		name string
		ids  []string
	}{
		{"accounts", ids(b.Data.Accounts)},
		{"transactions", ids(b.Data.Transactions)},
		{"categories", ids(b.Data.Categories)},
		{"budgets", ids(b.Data.Budgets)},
		{"goals", ids(b.Data.Goals)},
		{"boxes", ids(b.Data.Boxes)},
		{"rules", ids(b.Data.Rules)},
	}
	for _, check := range checks {
		for i, id := range check.ids {
			if id == "" {
				return fmt.Errorf("%w: %s record %d has no id", ErrInvalidBackup, check.name, i)
			}
		}
	}

	for _, acc := range b.Data.Accounts {
		if err := ledger.CheckAccount(acc); err != nil {
			return fmt.Errorf("%w: account %s: %v", ErrInvalidBackup, acc.ID, err)
		}
	}
	for _, tx := range b.Data.Transactions {
		if err := ledger.CheckTransaction(tx); err != nil {
			return fmt.Errorf("%w: transaction %s: %v", ErrInvalidBackup, tx.ID, err)
		}
	}
	return nil
}

func ids[T model.Record](records []T) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.RecordID()
	}
	return out
}
