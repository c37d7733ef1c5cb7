package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agentrun/billing-engine/internal/api/handler"
	"github.com/agentrun/billing-engine/internal/api/middleware"
	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
	"github.com/agentrun/billing-engine/internal/core/service"
	billingmongo "github.com/agentrun/billing-engine/internal/infrastructure/db/mongo"
	"github.com/agentrun/billing-engine/internal/infrastructure/http/handlers"
	"github.com/agentrun/billing-engine/internal/pkg/config"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg *config.Config, client *mongo.Client, db *mongo.Database, rdb *redis.Client, sink ports.NotificationSink, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("billing"))

	// --- Dependencies ---
	balanceRepo := billingmongo.NewBalanceRepository(db)
	ledgerRepo := billingmongo.NewLedgerRepository(db)
	sessionRepo := billingmongo.NewSessionRepository(db)
	txRunner := billingmongo.NewTxRunner(client)

	billingService := service.NewBillingService(balanceRepo, ledgerRepo, txRunner, sink, service.Config{
		RatePerMinute:       cfg.Billing.RatePerMinute,
		SignupBaseline:      cfg.Billing.SignupBaseline,
		LowThresholdPercent: cfg.Billing.LowThresholdPercent,
	}, log)
	sessionService := service.NewSessionService(sessionRepo, billingService, log)

	billingHandler := handler.NewBillingHandler(billingService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	authMiddleware := middleware.Auth(cfg.JWTSecret)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Billing routes ---
	v1 := e.Group("/v1", authMiddleware)
	v1.GET("/balance", billingHandler.GetBalance)
	v1.POST("/balance/check", billingHandler.CheckSufficient)
	v1.GET("/ledger", billingHandler.History)
	v1.POST("/sessions/:session_id/stop", sessionHandler.Stop)
	v1.POST("/credits", billingHandler.AddCredits, middleware.RBAC(domain.RoleAdmin))

	return e
}
