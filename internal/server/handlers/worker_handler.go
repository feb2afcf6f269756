package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
	"github.com/mamadbah2/greenconsole/internal/offline"
)

// MessagePoster delivers control messages to the cache worker.
type MessagePoster interface {
	PostMessage(ctx context.Context, msg models.ControlMessage) (any, error)
}

// WorkerHandler relays page control messages to the cache worker.
type WorkerHandler struct {
	worker MessagePoster
	logger *zap.Logger
}

// NewWorkerHandler constructs the control message adapter.
func NewWorkerHandler(worker MessagePoster, logger *zap.Logger) *WorkerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerHandler{worker: worker, logger: logger}
}

// PostMessage handles one control message and renders the worker's reply.
func (h *WorkerHandler) PostMessage(c *gin.Context) {
	var msg models.ControlMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		h.logger.Warn("invalid control message", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	reply, err := h.worker.PostMessage(c.Request.Context(), msg)
	switch {
	case errors.Is(err, offline.ErrUnknownMessage), errors.Is(err, offline.ErrForeignURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, offline.ErrNoController):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("control message failed", zap.String("type", string(msg.Type)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "control message failed"})
	default:
		c.JSON(http.StatusOK, reply)
	}
}
