package sheets

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

// maxSummaryLength is counted in runes.
const maxSummaryLength = 200

// JournalEntry is one recorded gateway call.
type JournalEntry struct {
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	Status    string `json:"status"`
	Summary   string `json:"summary"`
}

// Journal appends every console envelope to the journal sheet.
type Journal struct {
	repo Repository
}

// NewJournal wraps the journal sheet.
func NewJournal(repo Repository) *Journal {
	return &Journal{repo: repo}
}

// Record appends one row: timestamp, method, status and a short summary.
func (j *Journal) Record(ctx context.Context, env models.Envelope) error {
	row := []interface{}{env.Timestamp, env.Method, string(env.Status), summarize(env)}
	if err := j.repo.AppendRow(ctx, row); err != nil {
		return fmt.Errorf("journal %s: %w", env.Method, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := j.repo.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	entries := make([]JournalEntry, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(entries) < limit; i-- {
		row := rows[i]
		if len(row) < 3 {
			continue
		}
		entry := JournalEntry{
			Timestamp: fmt.Sprint(row[0]),
			Method:    fmt.Sprint(row[1]),
			Status:    fmt.Sprint(row[2]),
		}
		if len(row) > 3 {
			entry.Summary = fmt.Sprint(row[3])
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func summarize(env models.Envelope) string {
	var s string
	if env.Error != nil {
		s = env.Error.Name + ": " + env.Error.Message
	} else {
		s = strings.TrimSpace(string(env.Data))
	}
	if utf8.RuneCountInString(s) > maxSummaryLength {
		s = string([]rune(s)[:maxSummaryLength])
	}
	return s
}
