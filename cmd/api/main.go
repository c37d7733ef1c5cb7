package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/agentrun/billing-engine/docs"
	"github.com/agentrun/billing-engine/internal/api"
	"github.com/agentrun/billing-engine/internal/core/ports"
	billingmongo "github.com/agentrun/billing-engine/internal/infrastructure/db/mongo"
	billingredis "github.com/agentrun/billing-engine/internal/infrastructure/db/redis"
	"github.com/agentrun/billing-engine/internal/infrastructure/notify"
	"github.com/agentrun/billing-engine/internal/infrastructure/queue"
	"github.com/agentrun/billing-engine/internal/pkg/config"
	"github.com/agentrun/billing-engine/pkg/logger"
)

// @title           Billing Engine API
// @version         1.0
// @description     Credit metering and billing ledger for agent runtime.
//
// @securityDefinitions.apikey BearerAuth
// @in    header
// @name  Authorization
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- MongoDB ---
	client, db, err := billingmongo.Connect(ctx, billingmongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	if err := billingmongo.NewBalanceRepository(db).EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("balance indexes failed")
	}
	if err := billingmongo.NewLedgerRepository(db).EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("ledger indexes failed")
	}

	// --- Redis ---
	rdb, err := billingredis.Connect(ctx, billingredis.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		_ = rdb.Close()
	}()

	// --- Notification delivery (fire-and-forget) ---
	// Billing must keep working when the broker is down, so a failed dial
	// degrades to a no-op publisher instead of aborting startup.
	var publisher ports.NotificationPublisher
	amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQP.URL, log)
	if err != nil {
		log.Warn().Err(err).Msg("amqp unavailable, notifications disabled")
		publisher = notify.NewNopPublisher(log)
	} else {
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	dispatcher := queue.NewDispatcher(cfg.Billing.NotifyWorkers, publisher, billingredis.NewNotificationDedup(rdb), log)
	dispatcher.Start(ctx)

	// --- HTTP server ---
	e := api.NewRouter(cfg, client, db, rdb, dispatcher, log)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("billing engine listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
		os.Exit(1)
	}
}
