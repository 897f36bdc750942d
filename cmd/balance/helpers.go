package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/service"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// openLedger opens the store and loads the ledger. The returned close
// function releases the store.
func openLedger(ctx context.Context) (*service.Ledger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(appConfig.DatabasePath), 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(ctx, storage.Config{
		Path:        appConfig.DatabasePath,
		FallbackDir: appConfig.FallbackDir,
	})
	if err != nil {
		return nil, nil, common.NewUserError("could not open the ledger", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			fmt.Fprintln(os.Stderr, cli.FormatWarning("failed to close storage: "+err.Error()))
		}
	}

	if st := store.Status(); !st.PrimaryActive {
		fmt.Fprintln(os.Stderr, cli.FormatWarning("Using fallback storage: "+st.Reason))
	}

	l := service.New(store,
		service.WithCurrency(appConfig.Currency),
		service.WithMonthStartDay(appConfig.MonthStartDay))
	if err := l.Load(ctx); err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return l, closeStore, nil
}

// formatFileSize formats bytes into human-readable size.
func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatRelativeTime formats a time as relative to now.
func formatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
