// Package api exposes the ledger over HTTP for local front ends.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/reconcile"
	"github.com/Veraticus/the-balance-must-flow/internal/rules"
	"github.com/Veraticus/the-balance-must-flow/internal/service"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// PINHeader carries the local PIN when one is configured.
const PINHeader = "X-Balance-PIN"

// Ledger is the set of operations the HTTP surface needs.
type Ledger interface {
	Status() storage.Status
	Summary() ledger.Summary
	Accounts() []model.Account
	Transactions() []model.Transaction
	Categories() []model.Category
	Rules() []model.Rule
	SuggestRules(minOccurrences int) []rules.Suggestion
	Settings() model.Settings
	VerifyPIN(pin string) bool

	CreateAccount(ctx context.Context, in ledger.AccountInput) (model.Account, error)
	EditAccount(ctx context.Context, id string, edit service.AccountEdit) (model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	SubmitTransaction(ctx context.Context, in ledger.TransactionInput, isEdit bool) (model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	AddRule(ctx context.Context, in service.RuleInput) (model.Rule, error)
	DeleteRule(ctx context.Context, id string) error
	UpdateSettings(ctx context.Context, u service.SettingsUpdate) (model.Settings, error)
	AddAttachment(ctx context.Context, mimeType string, data []byte) (string, error)
	Attachment(ctx context.Context, id string) (*model.Attachment, error)
	ExportSnapshot(ctx context.Context) (*reconcile.Backup, error)
	ImportSnapshot(ctx context.Context, doc *reconcile.Backup, mode reconcile.Mode) error
	ResetAll(ctx context.Context) error
}

// Config configures the HTTP server.
type Config struct {
	TLS            *tls.Config
	Addr           string
	AllowOrigins   []string
	MaxUploadBytes int64
}

// Server serves the ledger API.
type Server struct {
	ledger Ledger
	router *gin.Engine
	cfg    Config
}

// NewServer builds the router.
func NewServer(l Ledger, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", PINHeader},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	s := &Server{ledger: l, router: r, cfg: cfg}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/api/health", s.health)

	api := s.router.Group("/api", s.requirePIN)

	api.GET("/summary", s.summary)

	api.GET("/accounts", s.listAccounts)
	api.POST("/accounts", s.createAccount)
	api.PATCH("/accounts/:id", s.editAccount)
	api.DELETE("/accounts/:id", s.deleteAccount)

	api.GET("/transactions", s.listTransactions)
	api.POST("/transactions", s.createTransaction)
	api.PUT("/transactions/:id", s.editTransaction)
	api.DELETE("/transactions/:id", s.deleteTransaction)

	api.GET("/rules", s.listRules)
	api.GET("/rules/suggestions", s.suggestRules)
	api.POST("/rules", s.addRule)
	api.DELETE("/rules/:id", s.deleteRule)

	api.GET("/categories", s.listCategories)

	api.GET("/settings", s.getSettings)
	api.PATCH("/settings", s.updateSettings)

	api.POST("/attachments", s.uploadAttachment)
	api.GET("/attachments/:id", s.getAttachment)

	api.GET("/export", s.export)
	api.POST("/import", s.importBackup)
	api.POST("/reset", s.reset)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.cfg.TLS,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLS != nil {
			slog.Info("HTTPS server listening", "addr", s.cfg.Addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		slog.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) requirePIN(c *gin.Context) {
	if !s.ledger.VerifyPIN(c.GetHeader(PINHeader)) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "PIN required"})
		return
	}
	c.Next()
}
