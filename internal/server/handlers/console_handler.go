package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
	"github.com/mamadbah2/greenconsole/internal/service/console"
	"github.com/mamadbah2/greenconsole/pkg/clients/greenapi"
)

// ConsoleService is the facade surface the HTTP layer drives.
type ConsoleService interface {
	Dispatch(ctx context.Context, method greenapi.Method, form models.Form) (models.Outcome, error)
	LoadCredentials(ctx context.Context) models.Credentials
	SaveCredentials(ctx context.Context, creds models.Credentials)
	DebugEnabled() bool
}

// ConsoleHandler exposes the console commands over HTTP.
type ConsoleHandler struct {
	svc    ConsoleService
	logger *zap.Logger
}

// NewConsoleHandler constructs the HTTP handler adapter.
func NewConsoleHandler(svc ConsoleService, logger *zap.Logger) *ConsoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleHandler{svc: svc, logger: logger}
}

// GetCredentials returns the stored credentials, or an empty record.
func (h *ConsoleHandler) GetCredentials(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.LoadCredentials(c.Request.Context()))
}

// PutCredentials replaces the stored credentials.
func (h *ConsoleHandler) PutCredentials(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		h.logger.Warn("invalid credentials payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.svc.SaveCredentials(c.Request.Context(), creds)
	c.JSON(http.StatusOK, creds.Trimmed())
}

// ValidateField checks one field value.
func (h *ConsoleHandler) ValidateField(c *gin.Context) {
	var req models.ValidateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.JSON(http.StatusOK, console.Validate(req.Field, req.Value))
}

// FormatPhone strips non-digits from a raw phone input.
func (h *ConsoleHandler) FormatPhone(c *gin.Context) {
	var req models.FormatPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"digits": console.FormatPhoneInput(req.Raw)})
}

// Call dispatches one gateway method with the posted form.
func (h *ConsoleHandler) Call(c *gin.Context) {
	method, err := greenapi.ParseMethod(c.Param("method"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var form models.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		h.logger.Warn("invalid call payload", zap.String("method", string(method)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := h.svc.Dispatch(c.Request.Context(), method, form)
	if err != nil {
		var vErr *console.ValidationError
		switch {
		case errors.Is(err, console.ErrBusy):
			c.JSON(http.StatusConflict, out)
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"notice": out.Notice, "fields": vErr.Fields})
		default:
			h.logger.Error("dispatch failed", zap.String("method", string(method)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, out)
		}
		return
	}

	status := http.StatusOK
	if out.Envelope != nil && out.Envelope.Status == models.StatusError {
		status = http.StatusBadGateway
	}
	c.JSON(status, out)
}

// Fixture returns the auto-fill form. It only exists in diagnostic mode.
func (h *ConsoleHandler) Fixture(c *gin.Context) {
	if !h.svc.DebugEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, console.Fixture())
}
