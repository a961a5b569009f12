// Package app assembles the stores, publishers and services from configuration. Both
// binaries build on it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/config"
	"github.com/mamadbah2/selfcheckout/internal/events"
	"github.com/mamadbah2/selfcheckout/internal/metrics"
	"github.com/mamadbah2/selfcheckout/internal/repository"
	"github.com/mamadbah2/selfcheckout/internal/repository/memory"
	"github.com/mamadbah2/selfcheckout/internal/repository/mongodb"
	"github.com/mamadbah2/selfcheckout/internal/repository/postgres"
	"github.com/mamadbah2/selfcheckout/internal/repository/sheets"
	"github.com/mamadbah2/selfcheckout/internal/service/cart"
	"github.com/mamadbah2/selfcheckout/internal/service/checkout"
	"github.com/mamadbah2/selfcheckout/internal/service/inventory"
	"github.com/mamadbah2/selfcheckout/internal/service/reporting"
	"github.com/mamadbah2/selfcheckout/internal/service/verification"
	"github.com/mamadbah2/selfcheckout/pkg/clients/anthropic"
)

// OpenStore connects the backend selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.NewStore(), nil
	case config.DriverMongoDB:
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := postgres.NewRepository(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// NewPublisher connects the broker selected by EVENTS_DRIVER.
func NewPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsNone, "":
		return events.Nop{}, nil
	case config.EventsNATS:
		pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.Topic)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case config.EventsKafka:
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}

// Services groups the wired domain services.
type Services struct {
	Store        repository.Store
	Emitter      *events.Emitter
	Metrics      *metrics.Metrics
	Sessions     *cart.SessionManager
	Cart         *cart.Engine
	Checkout     *checkout.Service
	Verification *verification.Service
	Inventory    *inventory.Service
	Reporting    *reporting.Service
}

// Build connects every collaborator named in cfg and wires the services. Optional
// collaborators (summarizer, sheet mirror) are skipped with a warning when not
// configured.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	publisher, err := NewPublisher(cfg.Events)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("connect %s publisher: %w", cfg.Events.Driver, err)
	}

	var summarizer reporting.Summarizer
	if cfg.AI.AnthropicKey != "" {
		summarizer = anthropic.NewClient(cfg.AI.AnthropicKey, cfg.AI.BaseURL)
		logger.Info("anthropic ai client enabled")
	} else {
		logger.Warn("anthropic api key missing, sales summaries disabled")
	}

	var exporter reporting.Exporter
	if cfg.Sheets.Enabled() {
		sheetRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named("repo.sheets"))
		if err != nil {
			_ = publisher.Close()
			_ = store.Close(ctx)
			return nil, fmt.Errorf("init sheets repository: %w", err)
		}
		exporter = sheetRepo
	}

	m := metrics.New()
	emitter := events.NewEmitter(publisher, logger.Named("events"))

	return &Services{
		Store:    store,
		Emitter:  emitter,
		Metrics:  m,
		Sessions: cart.NewSessionManager(),
		Cart:     cart.NewEngine(store, logger.Named("svc.cart")),
		Checkout: checkout.NewService(store, logger.Named("svc.checkout"),
			checkout.WithValidity(cfg.Checkout.TokenValidity),
			checkout.WithEvents(emitter),
			checkout.WithMetrics(m),
		),
		Verification: verification.NewService(store, emitter, m, logger.Named("svc.verification")),
		Inventory:    inventory.NewService(store, logger.Named("svc.inventory")),
		Reporting: reporting.NewService(store, summarizer, exporter, reporting.Options{
			LowStockThreshold: cfg.Reporting.LowStockThreshold,
			SummaryTimeout:    cfg.Reporting.SummaryTimeout,
			Location:          cfg.Location(),
		}, logger.Named("svc.reporting")),
	}, nil
}

// SeedCatalog loads the configured seed (or the default catalog) into the store.
func (s *Services) SeedCatalog(ctx context.Context, path string) (int, error) {
	products, err := inventory.LoadSeed(path)
	if err != nil {
		return 0, err
	}
	return s.Inventory.Seed(ctx, products)
}

// Close drains pending events and closes the store.
func (s *Services) Close(ctx context.Context) error {
	emitErr := s.Emitter.Close()
	storeErr := s.Store.Close(ctx)
	if emitErr != nil {
		return emitErr
	}
	return storeErr
}
