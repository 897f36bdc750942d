package storage

import (
	"context"
	"encoding/json"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// Collection names a keyed record collection.
type Collection string

// Collections persisted by the ledger.
const (
	Accounts     Collection = "accounts"
	Transactions Collection = "transactions"
	Categories   Collection = "categories"
	Budgets      Collection = "budgets"
	Goals        Collection = "goals"
	Boxes        Collection = "boxes"
	Rules        Collection = "rules"
)

// Collections lists every collection in a stable order.
var Collections = []Collection{Accounts, Transactions, Categories, Budgets, Goals, Boxes, Rules}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Backend is the operation set shared by the primary and fallback engines.
// Records are opaque JSON documents keyed by id; Put replaces by id and keeps
// the position of the first insert, GetAll returns records in that order.
type Backend interface {
	GetAll(ctx context.Context, c Collection) ([]json.RawMessage, error)
	Put(ctx context.Context, c Collection, id string, data json.RawMessage) error
	Remove(ctx context.Context, c Collection, id string) error
	ClearAll(ctx context.Context) error

	GetMeta(ctx context.Context, key string) (json.RawMessage, bool, error)
	SetMeta(ctx context.Context, key string, value json.RawMessage) error
	AllMeta(ctx context.Context) (map[string]json.RawMessage, error)

	// PutAttachment stores a write-once attachment. It returns false when the
	// engine does not hold binary payloads.
	PutAttachment(ctx context.Context, a model.Attachment) (bool, error)
	// GetAttachment returns nil when the attachment is absent.
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)

	Close() error
}
