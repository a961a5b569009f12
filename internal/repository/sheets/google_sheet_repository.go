package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/selfcheckout/internal/config"
	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

const (
	salesWriteRange = "Sales!A:G"
	timestampFormat = "2006-01-02 15:04:05"
)

// valuesAppender is the slice of the Sheets API used by the exporter.
type valuesAppender interface {
	Append(ctx context.Context, spreadsheetID, sheetRange string, rows [][]interface{}) error
}

// GoogleSheetRepository appends sale rows through the official Google Sheets API.
type GoogleSheetRepository struct {
	values        valuesAppender
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed exporter.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return newRepository(apiAppender{service: service}, cfg.SpreadsheetID, logger), nil
}

func newRepository(values valuesAppender, spreadsheetID string, logger *zap.Logger) *GoogleSheetRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSheetRepository{values: values, spreadsheetID: spreadsheetID, logger: logger}
}

// ExportSales appends one row per sale in a single API call:
// timestamp, sale id, token id, units, subtotal, tax, total. Rows are never updated or
// deduplicated; exporting the same sales twice writes them twice.
func (r *GoogleSheetRepository) ExportSales(ctx context.Context, sales []models.SaleRecord) error {
	if len(sales) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(sales))
	for _, sale := range sales {
		rows = append(rows, SaleRow(sale))
	}

	if err := r.values.Append(ctx, r.spreadsheetID, salesWriteRange, rows); err != nil {
		return err
	}

	r.logger.Debug("sales appended to sheet", zap.String("range", salesWriteRange), zap.Int("rows", len(rows)))
	return nil
}

// SaleRow renders a sale as spreadsheet cells.
func SaleRow(sale models.SaleRecord) []interface{} {
	return []interface{}{
		sale.Timestamp.UTC().Format(timestampFormat),
		sale.ID,
		sale.TokenID,
		sale.ItemCount(),
		sale.Subtotal.String(),
		sale.TaxTotal.String(),
		sale.Total.String(),
	}
}

type apiAppender struct {
	service *sheetsapi.Service
}

func (a apiAppender) Append(ctx context.Context, spreadsheetID, sheetRange string, rows [][]interface{}) error {
	payload := &sheetsapi.ValueRange{Values: rows}

	call := a.service.Spreadsheets.Values.Append(spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append rows into range %s: %w", sheetRange, err)
	}
	return nil
}
