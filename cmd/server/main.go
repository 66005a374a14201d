package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/linkboard/dashboard/config"
	appmodel "github.com/linkboard/dashboard/internal/app/model"
	apprepository "github.com/linkboard/dashboard/internal/app/repository"
	appserver "github.com/linkboard/dashboard/internal/app/server"
	appservice "github.com/linkboard/dashboard/internal/app/service"
	"github.com/linkboard/dashboard/internal/infra/logger"
	infraNATS "github.com/linkboard/dashboard/internal/infra/nats"
	infraPostgres "github.com/linkboard/dashboard/internal/infra/postgres"
	infraPrometheus "github.com/linkboard/dashboard/internal/infra/prometheus"
	infraRedis "github.com/linkboard/dashboard/internal/infra/redis"
	"go.uber.org/zap"
)

const (
	linkFilterCapacity          = 1_000_000
	linkFilterFalsePositiveRate = 0.01
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("lifecycle_workers", cfg.Consumer.LifecycleWorkers),
		zap.Int("click_workers", cfg.Consumer.ClickWorkers),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.DashboardLink{}, &appmodel.CityStat{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully")

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewDashboardLinkRepository(gormDB)

	linkFilter := appservice.NewLinkFilter(linkFilterCapacity, linkFilterFalsePositiveRate)
	knownIDs, err := linkRepo.AllLinkIDs(ctx)
	if err != nil {
		log.Fatal("Failed to seed link filter", zap.Error(err))
	}
	linkFilter.Seed(knownIDs)
	log.Info("Seeded link filter", zap.Int("known_links", len(knownIDs)))

	projector := appservice.NewProjector(log, linkRepo, linkFilter)

	lifecycleConsumer := appservice.NewLifecycleConsumer(js, log, projector,
		cfg.Consumer.LifecycleWorkers, cfg.Consumer.FetchBatch)
	if err := lifecycleConsumer.Start(); err != nil {
		log.Fatal("Failed to start lifecycle consumer", zap.Error(err))
	}
	defer lifecycleConsumer.Stop()

	clickConsumer := appservice.NewClickConsumer(js, log, projector,
		cfg.Consumer.ClickWorkers, cfg.Consumer.FetchBatch)
	if err := clickConsumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}
	defer clickConsumer.Stop()

	dashboardService := appservice.NewDashboardService(log, linkRepo)

	server := appserver.New(appserver.Dependencies{
		Logger:    log,
		Postgres:  pool,
		Redis:     redisClient,
		Dashboard: dashboardService,
	})

	if err := server.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
