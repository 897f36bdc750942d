package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Rhymond/go-money"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// Settings decodes the typed settings from the metadata map. Keys that fail
// to decode keep their default.
func (l *Ledger) Settings() model.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings()
}

func (l *Ledger) settings() model.Settings {
	s := model.DefaultSettings(l.currency)
	fields := map[string]any{
		model.SettingCurrency:      &s.Currency,
		model.SettingMonthStartDay: &s.MonthStartDay,
		model.SettingTheme:         &s.Theme,
		model.SettingReduceMotion:  &s.ReduceMotion,
		model.SettingPINHash:       &s.PINHash,
	}
	for key, dst := range fields {
		raw, ok := l.state.Settings[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			slog.Debug("Ignoring malformed setting", "key", key, "error", err)
		}
	}
	return s
}

// SettingsUpdate lists the settings to change. Nil fields are kept.
type SettingsUpdate struct {
	Currency      *string `json:"currency,omitempty"`
	MonthStartDay *int    `json:"monthStartDay,omitempty"`
	Theme         *string `json:"theme,omitempty"`
	ReduceMotion  *bool   `json:"reduceMotion,omitempty"`
}

// UpdateSettings validates and stores the given settings. Unknown currency
// codes are rejected.
func (l *Ledger) UpdateSettings(ctx context.Context, u SettingsUpdate) (model.Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return model.Settings{}, err
	}

	var writes []metaWrite
	if u.Currency != nil {
		code := strings.ToUpper(strings.TrimSpace(*u.Currency))
		if money.GetCurrency(code) == nil {
			return model.Settings{}, &ledger.ValidationError{Field: "currency", Reason: fmt.Sprintf("unknown currency %q", *u.Currency)}
		}
		writes = append(writes, metaWrite{key: model.SettingCurrency, value: code})
	}
	if u.MonthStartDay != nil {
		if *u.MonthStartDay < 1 || *u.MonthStartDay > 28 {
			return model.Settings{}, &ledger.ValidationError{Field: "monthStartDay", Reason: "month start day must be between 1 and 28"}
		}
		writes = append(writes, metaWrite{key: model.SettingMonthStartDay, value: *u.MonthStartDay})
	}
	if u.Theme != nil {
		switch *u.Theme {
		case model.ThemeSystem, model.ThemeLight, model.ThemeDark:
		default:
			return model.Settings{}, &ledger.ValidationError{Field: "theme", Reason: fmt.Sprintf("unknown theme %q", *u.Theme)}
		}
		writes = append(writes, metaWrite{key: model.SettingTheme, value: *u.Theme})
	}
	if u.ReduceMotion != nil {
		writes = append(writes, metaWrite{key: model.SettingReduceMotion, value: *u.ReduceMotion})
	}

	for _, w := range writes {
		if err := l.setMeta(ctx, w.key, w.value); err != nil {
			return model.Settings{}, err
		}
	}
	return l.settings(), nil
}

type metaWrite struct {
	value any
	key   string
}

func (l *Ledger) setMeta(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	if err := l.store.SetMeta(ctx, key, json.RawMessage(raw)); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	if l.state.Settings == nil {
		l.state.Settings = map[string]json.RawMessage{}
	}
	l.state.Settings[key] = raw
	return nil
}

// SetPIN stores a one-way hash of a 4 to 12 digit PIN. The hash deters
// casual access; it is not a security boundary.
func (l *Ledger) SetPIN(ctx context.Context, pin string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}
	if !validPIN(pin) {
		return ErrInvalidPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	return l.setMeta(ctx, model.SettingPINHash, string(hash))
}

// VerifyPIN reports whether pin matches the stored hash. It returns true when
// no PIN is configured.
func (l *Ledger) VerifyPIN(pin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.settings()
	if !s.HasPIN() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(s.PINHash), []byte(pin)) == nil
}

// ClearPIN removes the PIN after checking the current one.
func (l *Ledger) ClearPIN(ctx context.Context, current string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}
	s := l.settings()
	if !s.HasPIN() {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(s.PINHash), []byte(current)) != nil {
		return common.ErrWrongPIN
	}
	return l.setMeta(ctx, model.SettingPINHash, "")
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 12 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
