package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/repository/sheets"
	"github.com/mamadbah2/greenconsole/internal/service/reporting"
)

const (
	defaultJournalLimit = 20
	maxJournalLimit     = 100
	defaultReportDays   = 7
	maxReportDays       = 90
)

// JournalReader lists recorded calls.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]sheets.JournalEntry, error)
}

// CallReporter aggregates recorded calls over a period.
type CallReporter interface {
	CallReport(ctx context.Context, start, end time.Time) (reporting.Report, error)
}

// JournalHandler exposes the call journal. With a nil reader every route answers 404.
type JournalHandler struct {
	reader   JournalReader
	reporter CallReporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewJournalHandler constructs the journal adapter.
func NewJournalHandler(reader JournalReader, reporter CallReporter, logger *zap.Logger) *JournalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalHandler{reader: reader, reporter: reporter, logger: logger, now: time.Now}
}

// Recent lists the most recent recorded calls, newest first.
func (h *JournalHandler) Recent(c *gin.Context) {
	if h.reader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}

	limit, ok := positiveQuery(c, "limit", defaultJournalLimit, maxJournalLimit)
	if !ok {
		return
	}

	entries, err := h.reader.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed reading journal", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to read journal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Report aggregates the calls of the last n days.
func (h *JournalHandler) Report(c *gin.Context) {
	if h.reporter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}

	days, ok := positiveQuery(c, "days", defaultReportDays, maxReportDays)
	if !ok {
		return
	}

	end := h.now().UTC()
	report, err := h.reporter.CallReport(c.Request.Context(), end.AddDate(0, 0, -days), end)
	if err != nil {
		h.logger.Error("failed building call report", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to build report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func positiveQuery(c *gin.Context, key string, fallback, ceiling int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a positive integer"})
		return 0, false
	}
	return min(n, ceiling), true
}
