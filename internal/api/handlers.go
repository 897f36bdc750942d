package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/reconcile"
	"github.com/Veraticus/the-balance-must-flow/internal/rules"
	"github.com/Veraticus/the-balance-must-flow/internal/service"
)

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason, "field": ve.Field})
		return
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrHasDependentTransactions):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, reconcile.ErrInvalidVersion), errors.Is(err, reconcile.ErrInvalidBackup):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrInvalidPIN):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	common.LogError(err, "Request failed", common.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	st := s.ledger.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"primaryActive": st.PrimaryActive,
		"storage":       st.Mode.String(),
		"reason":        st.Reason,
		"since":         st.Since,
	})
}

func (s *Server) summary(c *gin.Context) {
	sum := s.ledger.Summary()
	c.JSON(http.StatusOK, gin.H{
		"netWorth":  sum.NetWorth,
		"cardBills": sum.CardBills,
		"available": sum.Available,
		"accounts":  sum.Accounts,
		"cards":     sum.CardsCount,
	})
}

func (s *Server) listAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.Accounts())
}

func (s *Server) createAccount(c *gin.Context) {
	var in ledger.AccountInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := s.ledger.CreateAccount(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

func (s *Server) editAccount(c *gin.Context) {
	var edit service.AccountEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := s.ledger.EditAccount(c.Request.Context(), c.Param("id"), edit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (s *Server) deleteAccount(c *gin.Context) {
	if err := s.ledger.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listTransactions(c *gin.Context) {
	txs := s.ledger.Transactions()
	if account := c.Query("account"); account != "" {
		filtered := txs[:0]
		for _, tx := range txs {
			if tx.Touches(account) {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	c.JSON(http.StatusOK, txs)
}

func (s *Server) createTransaction(c *gin.Context) {
	s.submitTransaction(c, false)
}

func (s *Server) editTransaction(c *gin.Context) {
	s.submitTransaction(c, true)
}

func (s *Server) submitTransaction(c *gin.Context, isEdit bool) {
	var in ledger.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if isEdit {
		in.ID = c.Param("id")
	}
	tx, err := s.ledger.SubmitTransaction(c.Request.Context(), in, isEdit)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if isEdit {
		status = http.StatusOK
	}
	c.JSON(status, tx)
}

func (s *Server) deleteTransaction(c *gin.Context) {
	if err := s.ledger.DeleteTransaction(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listRules(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.Rules())
}

func (s *Server) suggestRules(c *gin.Context) {
	minOccurrences := 0
	if v := c.Query("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min must be a positive integer", "field": "min"})
			return
		}
		minOccurrences = n
	}
	suggestions := s.ledger.SuggestRules(minOccurrences)
	if suggestions == nil {
		suggestions = []rules.Suggestion{}
	}
	c.JSON(http.StatusOK, suggestions)
}

func (s *Server) addRule(c *gin.Context) {
	var in service.RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	rule, err := s.ledger.AddRule(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	if err := s.ledger.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.Categories())
}

func (s *Server) getSettings(c *gin.Context) {
	settings := s.ledger.Settings()
	settings.PINHash = ""
	c.JSON(http.StatusOK, settings)
}

func (s *Server) updateSettings(c *gin.Context) {
	var u service.SettingsUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		badRequest(c, err)
		return
	}
	settings, err := s.ledger.UpdateSettings(c.Request.Context(), u)
	if err != nil {
		writeError(c, err)
		return
	}
	settings.PINHash = ""
	c.JSON(http.StatusOK, settings)
}

func (s *Server) uploadAttachment(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		badRequest(c, err)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
		return
	}

	id, err := s.ledger.AddAttachment(c.Request.Context(), c.ContentType(), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "stored": id != ""})
}

func (s *Server) getAttachment(c *gin.Context) {
	a, err := s.ledger.Attachment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, a.MimeType, a.Data)
}

func (s *Server) export(c *gin.Context) {
	doc, err := s.ledger.ExportSnapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="balance-backup-%s.json"`, doc.ExportedAt[:10]))
	c.JSON(http.StatusOK, doc)
}

func (s *Server) importBackup(c *gin.Context) {
	mode, err := reconcile.ParseMode(c.DefaultQuery("mode", string(reconcile.ModeMerge)))
	if err != nil {
		badRequest(c, err)
		return
	}
	doc, err := reconcile.Decode(c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.ledger.ImportSnapshot(c.Request.Context(), doc, mode); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":         mode,
		"accounts":     len(s.ledger.Accounts()),
		"transactions": len(s.ledger.Transactions()),
	})
}

func (s *Server) reset(c *gin.Context) {
	if err := s.ledger.ResetAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
