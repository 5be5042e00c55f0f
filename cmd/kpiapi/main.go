package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/analytics"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/console/server"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/engine"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/infra"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/ingest"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Fatal("database.url (DATABASE_URL) is required")
	}

	// 2. Postgres: проверяем соединение с таймаутом и создаем схему
	db, err := postgres.Open(cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	events := postgres.NewEventRepo(db)
	kpis := postgres.NewKPIRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := kpis.Ping(ctx); err != nil {
		cancel()
		logger.Fatal("database unreachable", zap.Error(err))
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		cancel()
		logger.Fatal("failed to init schema", zap.Error(err))
	}
	cancel()
	logger.Info("database initialized")

	// 3. Буфер записи; после каждой пачки просим дашборды обновиться
	var onFlush ingest.FlushHook
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		onFlush = func(ctx context.Context, written int) {
			if err := engine.PublishRefresh(ctx, rdb, infra.RedisChanDashboardRefresh, "events"); err != nil {
				logger.Warn("failed to publish refresh signal", zap.Int("written", written), zap.Error(err))
			}
		}
	}
	buffer := ingest.NewBuffer(events, ingest.Options{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
		OnFlush:       onFlush,
	}, logger)
	buffer.Start()

	// 4. HTTP API
	h := analytics.NewHandler(analytics.NewService(kpis), events, buffer, cfg.Analytics.Version, cfg.Analytics.DefaultHours, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(server.TracingMiddleware)
	r.Use(server.RequestLogger(logger.Named("analytics-http")))
	r.Use(middleware.Recoverer)
	r.Mount("/", h.Routes())

	srv := &http.Server{
		Addr:         cfg.Analytics.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 5. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("analytics api started", zap.String("addr", srv.Addr), zap.String("version", cfg.Analytics.Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("analytics api stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// Новых запросов нет, дописываем остаток буфера
	buffer.Stop()
	logger.Info("analytics api exited properly")
}
