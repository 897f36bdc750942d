package model

// Metadata keys under which settings are persisted.
const (
	SettingCurrency      = "currency"
	SettingMonthStartDay = "monthStartDay"
	SettingTheme         = "theme"
	SettingReduceMotion  = "reduceMotion"
	SettingPINHash       = "pinHash"
)

// Theme preferences.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Settings is the typed view of the singleton metadata record.
type Settings struct {
	Currency      string `json:"currency"`
	Theme         string `json:"theme"`
	PINHash       string `json:"pinHash,omitempty"`
	MonthStartDay int    `json:"monthStartDay"`
	ReduceMotion  bool   `json:"reduceMotion"`
}

// DefaultSettings returns settings used before the user changes anything.
func DefaultSettings(currency string) Settings {
	if currency == "" {
		currency = "USD"
	}
	return Settings{
		Currency:      currency,
		Theme:         ThemeSystem,
		MonthStartDay: 1,
	}
}

// HasPIN reports whether a local PIN has been configured.
func (s Settings) HasPIN() bool { return s.PINHash != "" }
