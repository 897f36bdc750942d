package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
)

// Configuration keys.
const (
	KeyDatabasePath  = "database.path"
	KeyFallbackDir   = "storage.fallback_dir"
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
	KeyServerAddr    = "server.addr"
	KeyCurrency      = "ledger.currency"
	KeyMonthStartDay = "ledger.month_start_day"
	KeyCORSOrigins   = "server.cors_origins"
	KeyServerTLS     = "server.tls"
	KeyCertDir       = "server.cert_dir"
)

// DefaultDatabasePath is where the ledger lives unless configured otherwise.
const DefaultDatabasePath = "~/.local/share/balance/balance.db"

// Config is the resolved application configuration.
type Config struct {
	DatabasePath  string
	FallbackDir   string
	LogLevel      string
	LogFormat     string
	ServerAddr    string
	Currency      string
	CertDir       string
	CORSOrigins   []string
	MonthStartDay int
	TLS           bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath)
	v.SetDefault(KeyFallbackDir, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyServerAddr, "127.0.0.1:8750")
	v.SetDefault(KeyCurrency, "USD")
	v.SetDefault(KeyMonthStartDay, 1)
	v.SetDefault(KeyCORSOrigins, []string{"http://localhost:5173"})
	v.SetDefault(KeyServerTLS, false)
	v.SetDefault(KeyCertDir, "~/.config/balance/certs")
}

// Load reads the typed configuration from v, applying defaults and expanding
// paths.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		DatabasePath:  ExpandPath(v.GetString(KeyDatabasePath)),
		FallbackDir:   ExpandPath(v.GetString(KeyFallbackDir)),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		ServerAddr:    v.GetString(KeyServerAddr),
		Currency:      strings.ToUpper(strings.TrimSpace(v.GetString(KeyCurrency))),
		MonthStartDay: v.GetInt(KeyMonthStartDay),
		CORSOrigins:   v.GetStringSlice(KeyCORSOrigins),
		TLS:           v.GetBool(KeyServerTLS),
		CertDir:       ExpandPath(v.GetString(KeyCertDir)),
	}

	if cfg.DatabasePath == "" {
		return Config{}, fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyDatabasePath)
	}
	if cfg.FallbackDir == "" {
		cfg.FallbackDir = filepath.Join(filepath.Dir(cfg.DatabasePath), "fallback")
	}
	if cfg.MonthStartDay < 1 || cfg.MonthStartDay > 28 {
		return Config{}, fmt.Errorf("%w: %s must be between 1 and 28, got %d",
			common.ErrInvalidConfig, KeyMonthStartDay, cfg.MonthStartDay)
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("%w: %s must be an ISO 4217 code, got %q",
			common.ErrInvalidConfig, KeyCurrency, cfg.Currency)
	}

	return cfg, nil
}
