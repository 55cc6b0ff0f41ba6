package http_api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/core-coin/bursa/internal/bursa"
	"github.com/core-coin/bursa/internal/connector"
	"github.com/core-coin/bursa/internal/controller"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/validation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryResponse is the body of /api/v1/history.
type HistoryResponse struct {
	Account   string                    `json:"account"`
	Snapshots []*models.BalanceSnapshot `json:"snapshots"`
}

func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// state returns the current view.
func (s *HTTPServer) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.bursa.View())
}

// connect presses the connect control. The activation runs in the
// background, so the response carries the activating view.
func (s *HTTPServer) connect(c *gin.Context) {
	if err := s.bursa.Connect(); err != nil {
		if errors.Is(err, controller.ErrControlDisabled) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": s.bursa.View()})
			return
		}
		s.logger.Errorw("Failed to connect", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect"})
		return
	}
	c.JSON(http.StatusAccepted, s.bursa.View())
}

func (s *HTTPServer) disconnect(c *gin.Context) {
	if err := s.bursa.Disconnect(); err != nil {
		if errors.Is(err, connector.ErrNotActive) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Errorw("Failed to disconnect", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}
	c.JSON(http.StatusOK, s.bursa.View())
}

// history returns the recorded balances of an account, newest first.
// The account defaults to the connected one.
func (s *HTTPServer) history(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		account = s.bursa.View().Account
	}
	if account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account is required"})
		return
	}
	if err := validation.ValidateAddress(account); err != nil {
		s.logger.Debugw("Invalid address", "error", err, "address", account)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format: " + err.Error()})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit)})
			return
		}
		limit = n
	}

	snapshots, err := s.bursa.History(account, limit)
	if err != nil {
		if errors.Is(err, bursa.ErrHistoryDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		s.logger.Errorw("Failed to get history", "error", err, "account", account)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get history"})
		return
	}
	if snapshots == nil {
		snapshots = []*models.BalanceSnapshot{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Account: account, Snapshots: snapshots})
}
