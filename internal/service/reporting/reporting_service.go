// Package reporting builds the staff dashboard, the sales log views and the daily
// report, with an optional natural-language summary.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	defaultSummaryTimeout = 10 * time.Second
)

// Summary fallbacks shown when the AI collaborator cannot answer.
const (
	SummaryUnavailable = "AI insights unavailable (offline or missing API key)."
	SummaryFailed      = "Could not generate insights at this moment."
)

// Summarizer turns a prompt into prose.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Exporter mirrors sales into an external sheet.
type Exporter interface {
	ExportSales(ctx context.Context, sales []models.SaleRecord) error
}

// Store is the read side of the catalog and ledger plus the report archive.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListSales(ctx context.Context) ([]models.SaleRecord, error)
	ListTokens(ctx context.Context) ([]models.ExitToken, error)
	repository.ReportStore
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	LowStockThreshold int
	SummaryTimeout    time.Duration
	Location          *time.Location
}

// Service exposes lightweight analytics for staff.
type Service struct {
	store      Store
	summarizer Summarizer
	exporter   Exporter
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a new reporting service instance. summarizer and exporter may be nil.
func NewService(store Store, summarizer Summarizer, exporter Exporter, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = defaultSummaryTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{store: store, summarizer: summarizer, exporter: exporter, opts: opts, logger: logger, now: time.Now}
}

// Dashboard aggregates the ledger and flags products at or below the low-stock threshold.
func (s *Service) Dashboard(ctx context.Context) (models.Dashboard, error) {
	sales, err := s.store.ListSales(ctx)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("load sales: %w", err)
	}
	tokens, err := s.store.ListTokens(ctx)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("load tokens: %w", err)
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("load products: %w", err)
	}

	now := s.now()
	dash := models.Dashboard{SalesCount: len(sales), LowStock: make([]models.Product, 0), GeneratedAt: now.UTC()}
	for _, sale := range sales {
		dash.Revenue += sale.Total
	}
	for _, token := range tokens {
		if token.EffectiveStatus(now) == models.TokenActive {
			dash.ActiveTokens++
		}
	}
	for _, p := range products {
		if p.Stock <= s.opts.LowStockThreshold {
			dash.LowStock = append(dash.LowStock, p)
		}
	}
	sort.SliceStable(dash.LowStock, func(i, j int) bool { return dash.LowStock[i].Stock < dash.LowStock[j].Stock })
	return dash, nil
}

// ListSales returns the sales log, newest first.
func (s *Service) ListSales(ctx context.Context) ([]models.SaleRecord, error) {
	sales, err := s.store.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Timestamp.After(sales[j].Timestamp) })
	return sales, nil
}

// SalesBetween returns the sales in [start, end), oldest first.
func (s *Service) SalesBetween(ctx context.Context, start, end time.Time) ([]models.SaleRecord, error) {
	sales, err := s.store.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	out := make([]models.SaleRecord, 0)
	for _, sale := range sales {
		if !sale.Timestamp.Before(start) && sale.Timestamp.Before(end) {
			out = append(out, sale)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Location is the timezone days are cut in.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// DayBounds returns the start and end of the calendar day containing t in the
// reporting timezone.
func (s *Service) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.opts.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.opts.Location)
	return start, start.AddDate(0, 0, 1)
}

// SalesOn returns the sales of the day containing day.
func (s *Service) SalesOn(ctx context.Context, day time.Time) ([]models.SaleRecord, error) {
	start, end := s.DayBounds(day)
	return s.SalesBetween(ctx, start, end)
}

// Today returns the current day's sales.
func (s *Service) Today(ctx context.Context) ([]models.SaleRecord, error) {
	return s.SalesOn(ctx, s.now())
}

type saleDigest struct {
	Total     string `json:"total"`
	ItemCount int    `json:"itemCount"`
	Time      string `json:"time"`
}

// Summary asks the summarizer for a two-sentence performance summary. It never
// fails: a missing summarizer or any error degrades to a fixed message.
func (s *Service) Summary(ctx context.Context, sales []models.SaleRecord) string {
	if s.summarizer == nil {
		return SummaryUnavailable
	}

	digest := make([]saleDigest, 0, len(sales))
	for _, sale := range sales {
		digest = append(digest, saleDigest{
			Total:     sale.Total.String(),
			ItemCount: len(sale.Items),
			Time:      sale.Timestamp.In(s.opts.Location).Format(timeLayout),
		})
	}
	payload, err := json.Marshal(digest)
	if err != nil {
		s.logger.Warn("encode sales digest", zap.Error(err))
		return SummaryFailed
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SummaryTimeout)
	defer cancel()

	prompt := "Analyze these retail sales from today and provide a 2-sentence summary of performance: " + string(payload)
	text, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		s.logger.Warn("sales summary failed", zap.Error(err))
		return SummaryFailed
	}
	if text = strings.TrimSpace(text); text == "" {
		return SummaryFailed
	}
	return text
}

// BuildDailyReport aggregates one day of sales and attaches the summary.
func (s *Service) BuildDailyReport(ctx context.Context, day time.Time) (models.DailyReport, []models.SaleRecord, error) {
	sales, err := s.SalesOn(ctx, day)
	if err != nil {
		return models.DailyReport{}, nil, err
	}

	start, _ := s.DayBounds(day)
	report := models.DailyReport{Date: start, SalesCount: len(sales), CreatedAt: s.now().UTC()}
	for _, sale := range sales {
		report.UnitsSold += sale.ItemCount()
		report.Subtotal += sale.Subtotal
		report.TaxTotal += sale.TaxTotal
		report.Revenue += sale.Total
	}

	if len(sales) == 0 {
		report.Summary = fmt.Sprintf("No sales on %s.", start.Format(dateLayout))
	} else {
		report.Summary = s.Summary(ctx, sales)
	}
	return report, sales, nil
}

// RunDailyReport builds, archives and exports the report for day. Export failures are
// logged; the archived report is kept. It is the only path that writes to the sheet
// mirror, and the mirror is append-only: running it twice for a day appends the day's
// rows twice.
func (s *Service) RunDailyReport(ctx context.Context, day time.Time) (models.DailyReport, error) {
	report, sales, err := s.BuildDailyReport(ctx, day)
	if err != nil {
		return models.DailyReport{}, err
	}
	if err := s.store.SaveDailyReport(ctx, report); err != nil {
		return models.DailyReport{}, fmt.Errorf("save daily report: %w", err)
	}

	if s.exporter != nil && len(sales) > 0 {
		if err := s.exporter.ExportSales(ctx, sales); err != nil {
			s.logger.Error("daily sheet export failed", zap.Error(err))
		}
	}

	s.logger.Info("daily report saved",
		zap.String("date", report.Date.Format(dateLayout)),
		zap.Int("sales", report.SalesCount),
		zap.Stringer("revenue", report.Revenue),
	)
	return report, nil
}
