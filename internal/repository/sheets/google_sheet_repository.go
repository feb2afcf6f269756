package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/greenconsole/internal/config"
)

// JournalHeader labels the journal columns. EnsureHeader writes it to an empty
// journal and Rows leaves it out.
var JournalHeader = []interface{}{"Timestamp", "Method", "Status", "Summary"}

// Repository is the journal sheet: an append-only table of call rows.
type Repository interface {
	AppendRow(ctx context.Context, row []interface{}) error
	Rows(ctx context.Context) ([][]interface{}, error)
}

// GoogleSheetRepository keeps the call journal in one range of a spreadsheet.
type GoogleSheetRepository struct {
	values        *sheetsapi.SpreadsheetsValuesService
	spreadsheetID string
	journalRange  string
	logger        *zap.Logger
}

// NewGoogleSheetRepository opens the journal spreadsheet. opts are applied after
// the credentials file, e.g. to point the client at another endpoint.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Range == "" {
		return nil, errors.New("journal range must not be empty")
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if cfg.CredentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	service, err := sheetsapi.NewService(ctx, append(clientOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		values:        service.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		journalRange:  cfg.Range,
		logger:        logger.With(zap.String("range", cfg.Range)),
	}, nil
}

// EnsureHeader writes JournalHeader when the journal holds no rows yet.
func (r *GoogleSheetRepository) EnsureHeader(ctx context.Context) error {
	resp, err := r.values.Get(r.spreadsheetID, r.journalRange).MajorDimension("ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read journal range %s: %w", r.journalRange, err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	if err := r.append(ctx, JournalHeader); err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	r.logger.Info("journal header written")
	return nil
}

// AppendRow adds one call row below the last journal row. Cells are stored RAW so
// a summary starting with "=" stays text.
func (r *GoogleSheetRepository) AppendRow(ctx context.Context, row []interface{}) error {
	if err := r.append(ctx, row); err != nil {
		return fmt.Errorf("append journal row: %w", err)
	}

	r.logger.Debug("journal row appended", zap.Int("cells", len(row)))
	return nil
}

// Rows returns the journal rows in sheet order, header excluded.
func (r *GoogleSheetRepository) Rows(ctx context.Context) ([][]interface{}, error) {
	resp, err := r.values.Get(r.spreadsheetID, r.journalRange).MajorDimension("ROWS").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read journal range %s: %w", r.journalRange, err)
	}

	rows := resp.Values
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}
	return rows, nil
}

func (r *GoogleSheetRepository) append(ctx context.Context, row []interface{}) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{row}}

	_, err := r.values.Append(r.spreadsheetID, r.journalRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func isHeader(row []interface{}) bool {
	return len(row) > 0 && strings.EqualFold(fmt.Sprint(row[0]), fmt.Sprint(JournalHeader[0]))
}
