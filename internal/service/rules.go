package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/rules"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// RuleInput is the caller-supplied payload for a categorisation rule.
type RuleInput struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Contains   string `json:"contains"`
	CategoryID string `json:"categoryId"`
	Priority   int    `json:"priority"`
}

// AddRule stores a new rule. Rules only affect transactions submitted after
// they are added.
func (l *Ledger) AddRule(ctx context.Context, in RuleInput) (model.Rule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return model.Rule{}, err
	}

	contains := strings.TrimSpace(in.Contains)
	if contains == "" {
		return model.Rule{}, &ledger.ValidationError{Field: "contains", Reason: "rule text is required"}
	}
	if indexOf(l.state.Data.Categories, in.CategoryID) < 0 {
		return model.Rule{}, &ledger.ValidationError{Field: "categoryId", Reason: "category not found"}
	}

	rule := model.Rule{
		ID:         l.newID(),
		Contains:   contains,
		CategoryID: in.CategoryID,
		Priority:   in.Priority,
		Enabled:    in.Enabled,
	}
	if err := l.store.Put(ctx, storage.Rules, rule); err != nil {
		return model.Rule{}, fmt.Errorf("failed to save rule: %w", err)
	}
	l.state.Data.Rules = append(l.state.Data.Rules, rule)

	l.notify(Change{Collection: storage.Rules, ID: rule.ID, Op: OpPut})
	return rule, nil
}

// DeleteRule removes a rule.
func (l *Ledger) DeleteRule(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}
	i := indexOf(l.state.Data.Rules, id)
	if i < 0 {
		return common.NotFound("rule", id)
	}

	if err := l.store.Remove(ctx, storage.Rules, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	l.state.Data.Rules = append(l.state.Data.Rules[:i:i], l.state.Data.Rules[i+1:]...)

	l.notify(Change{Collection: storage.Rules, ID: id, Op: OpDelete})
	return nil
}

// SuggestRules proposes rules for notes that keep receiving the same
// category. minOccurrences below one uses rules.DefaultMinOccurrences.
func (l *Ledger) SuggestRules(minOccurrences int) []rules.Suggestion {
	l.mu.Lock()
	defer l.mu.Unlock()
	return rules.Suggest(l.state.Data.Transactions, l.state.Data.Rules, l.state.Data.Categories, minOccurrences)
}
