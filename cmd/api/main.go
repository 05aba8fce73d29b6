package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/omaldonado/crewdispatch-backend/api/routes"
	"github.com/omaldonado/crewdispatch-backend/internal/assignments"
	"github.com/omaldonado/crewdispatch-backend/internal/escalation"
	"github.com/omaldonado/crewdispatch-backend/internal/funnel"
	"github.com/omaldonado/crewdispatch-backend/internal/matching"
	"github.com/omaldonado/crewdispatch-backend/internal/negotiation"
	"github.com/omaldonado/crewdispatch-backend/internal/tenant"
	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/migrate"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	policies := tenant.NewResolver(dbClient.DB(), cfg.Matching)
	funnelSvc := funnel.NewService(dbClient.DB())

	escalationSvc, err := escalation.NewService(outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create escalation service", err)
		os.Exit(1)
	}

	assignmentsRepo := assignments.NewRepository(dbClient.DB())
	assignmentsSvc, err := assignments.NewService(
		assignmentsRepo,
		dbClient,
		outboxSvc,
		policies,
		matching.NewFilter(cfg.Matching),
		matching.NewScorer(cfg.Matching),
		funnelSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create assignments service", err)
		os.Exit(1)
	}

	negotiationSvc, err := negotiation.NewService(
		assignmentsRepo,
		dbClient,
		outboxSvc,
		policies,
		escalationSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create negotiation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, assignmentsSvc, negotiationSvc, funnelSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
