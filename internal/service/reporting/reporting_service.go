package reporting

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
	repo "github.com/mamadbah2/greenconsole/internal/repository/sheets"
)

const dateLayout = "2006-01-02"

// MethodStats counts journal rows for one gateway method.
type MethodStats struct {
	Method    string `json:"method"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Report aggregates journaled calls over a period.
type Report struct {
	From        string             `json:"from"`
	To          string             `json:"to"`
	Total       int                `json:"total"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	SuccessRate float64            `json:"successRate"`
	Methods     []MethodStats      `json:"methods"`
	LastFailure *repo.JournalEntry `json:"lastFailure,omitempty"`
}

// Service computes call activity from the journal sheet.
type Service struct {
	repo   repo.Repository
	logger *zap.Logger
}

// NewService wires a new reporting service instance over the journal sheet.
func NewService(repository repo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repository, logger: logger}
}

// CallReport aggregates the journal rows whose timestamp falls within [start, end].
func (s *Service) CallReport(ctx context.Context, start, end time.Time) (Report, error) {
	rows, err := s.repo.Rows(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load journal rows: %w", err)
	}

	report := Report{From: start.Format(dateLayout), To: end.Format(dateLayout), Methods: []MethodStats{}}
	byMethod := map[string]*MethodStats{}

	for _, row := range rows {
		if len(row) < 3 {
			continue
		}

		ts, err := parseTimestamp(row[0])
		if err != nil {
			s.logger.Debug("skip journal row with invalid timestamp", zap.Any("value", row[0]), zap.Error(err))
			continue
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}

		method := fmt.Sprint(row[1])
		stats, ok := byMethod[method]
		if !ok {
			stats = &MethodStats{Method: method}
			byMethod[method] = stats
		}

		switch models.EnvelopeStatus(fmt.Sprint(row[2])) {
		case models.StatusSuccess:
			stats.Succeeded++
			report.Succeeded++
		case models.StatusError:
			stats.Failed++
			report.Failed++
			entry := repo.JournalEntry{Timestamp: fmt.Sprint(row[0]), Method: method, Status: string(models.StatusError)}
			if len(row) > 3 {
				entry.Summary = fmt.Sprint(row[3])
			}
			report.LastFailure = &entry
		default:
			s.logger.Debug("skip journal row with unknown status", zap.Any("value", row[2]))
			continue
		}
		report.Total++
	}

	for _, stats := range byMethod {
		if stats.Succeeded+stats.Failed > 0 {
			report.Methods = append(report.Methods, *stats)
		}
	}
	slices.SortFunc(report.Methods, func(a, b MethodStats) int { return strings.Compare(a.Method, b.Method) })

	if report.Total > 0 {
		rate := float64(report.Succeeded) / float64(report.Total) * 100
		report.SuccessRate = math.Round(rate*100) / 100
	}

	return report, nil
}

// WeeklySummary renders the last seven days of activity as one line of text.
func (s *Service) WeeklySummary(ctx context.Context, now time.Time) (string, error) {
	report, err := s.CallReport(ctx, now.AddDate(0, 0, -7), now)
	if err != nil {
		return "", err
	}

	if report.Total == 0 {
		return fmt.Sprintf("Calls (%s-%s): no calls recorded.", report.From, report.To), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Calls (%s-%s): %d total, %d succeeded, %d failed (%.2f%% success).",
		report.From, report.To, report.Total, report.Succeeded, report.Failed, report.SuccessRate)
	for _, m := range report.Methods {
		fmt.Fprintf(&b, " %s %d/%d.", m.Method, m.Succeeded, m.Succeeded+m.Failed)
	}
	return b.String(), nil
}

func parseTimestamp(value interface{}) (time.Time, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339, str)
}
