package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/app"
	"github.com/mamadbah2/selfcheckout/internal/config"
	"github.com/mamadbah2/selfcheckout/internal/scheduler"
	"github.com/mamadbah2/selfcheckout/internal/server/handlers"
	"github.com/mamadbah2/selfcheckout/internal/server/router"
	"github.com/mamadbah2/selfcheckout/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	svc, err := app.Build(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to wire services", zap.Error(err))
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()
	baseLogger.Info("store ready", zap.String("driver", cfg.Store.Driver), zap.String("events", cfg.Events.Driver))

	if products, err := svc.Inventory.List(context.Background()); err != nil {
		baseLogger.Fatal("failed to read catalog", zap.Error(err))
	} else if len(products) == 0 || cfg.Store.SeedPath != "" {
		added, err := svc.SeedCatalog(context.Background(), cfg.Store.SeedPath)
		if err != nil {
			baseLogger.Fatal("failed to seed catalog", zap.Error(err))
		}
		baseLogger.Info("catalog seeded", zap.Int("added", added))
	}

	cartHandler := handlers.NewCartHandler(svc.Sessions, svc.Cart, svc.Checkout, baseLogger.Named("handlers.cart"))
	adminHandler := handlers.NewAdminHandler(svc.Verification, svc.Inventory, svc.Reporting, baseLogger.Named("handlers.admin"))
	engine := router.New(cartHandler, adminHandler, router.Options{
		AdminPIN:     cfg.Server.AdminPIN,
		AllowOrigins: cfg.Server.CORSAllowOrigins,
		Metrics:      svc.Metrics,
	}, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(scheduler.Config{
		ExpirySweepSchedule: cfg.Reporting.ExpirySweepSchedule,
		ReportSchedule:      cfg.Reporting.CronSchedule,
		Location:            cfg.Location(),
	}, svc.Verification, svc.Reporting, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
