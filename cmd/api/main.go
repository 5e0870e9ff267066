package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/vitrineshop/inventory-api/internal/app"
	"github.com/vitrineshop/inventory-api/internal/clock"
	"github.com/vitrineshop/inventory-api/internal/config"
	"github.com/vitrineshop/inventory-api/internal/storage/postgres"
	transporthttp "github.com/vitrineshop/inventory-api/internal/transport/http"
	"github.com/vitrineshop/inventory-api/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config.LoadDotEnv(logger)
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.WithError(err).Fatal("db ping")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	clk := clock.NewSystem()
	ledgerRepo := postgres.NewLedgerRepository(pool)
	reservationRepo := postgres.NewReservationRepository(pool)
	variantRepo := postgres.NewVariantRepository(pool)

	reservationSvc := app.NewReservationService(reservationRepo, ledgerRepo, clk,
		app.WithReservationTTL(cfg.ReservationTTL))
	checkoutSvc := app.NewCheckoutService(reservationRepo, ledgerRepo, reservationSvc, clk)
	adminSvc := app.NewAdminService(variantRepo, ledgerRepo, clk)

	sweeper := app.NewSweeper(reservationRepo, reservationSvc, clk, logger,
		app.WithSweepInterval(cfg.SweepInterval),
		app.WithSweepBatchSize(cfg.SweepBatchSize))
	sweeper.Start()
	defer sweeper.Stop()

	handler := transporthttp.NewRouter(reservationSvc, checkoutSvc, adminSvc, cfg.CORSOrigins, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.WithField("port", cfg.Port).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server shutdown error")
	}
	logger.Info("server stopped")
}
