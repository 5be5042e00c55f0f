package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/connectors"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/console/handler"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/console/server"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/console/web"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/display"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/engine"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/infra"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/kpi"
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

	loc, err := cfg.Dashboard.Location()
	if err != nil {
		logger.Fatal("invalid dashboard timezone", zap.Error(err))
	}

	// Контекст жизненного цикла фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Источник отчетов
	client, err := connectors.NewKPIClient(connectors.ClientConfig{
		BaseURL:         cfg.Dashboard.BackendURL,
		BreakerFailures: cfg.Dashboard.BreakerFailures,
		BreakerCooldown: cfg.Dashboard.BreakerCooldown,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create kpi client", zap.Error(err))
	}

	// 4. Цели отображения: строятся один раз по разметке
	dash, err := display.NewDashboard(web.Index, kpi.NewFormatter(cfg.Dashboard.Locale), display.NewSVGRenderer(0, 0), logger)
	if err != nil {
		logger.Fatal("failed to bind dashboard", zap.Error(err))
	}
	page, err := display.NewPage(web.Index, "/dashboard/charts", cfg.Dashboard.RefreshInterval)
	if err != nil {
		logger.Fatal("failed to prepare page", zap.Error(err))
	}

	// 5. Контроллер обновлений
	ctrl := engine.NewController(client, dash, engine.Options{
		RefreshInterval: cfg.Dashboard.RefreshInterval,
		FetchTimeout:    cfg.Dashboard.FetchTimeout,
		Location:        loc,
	}, metrics, logger)

	if cfg.Dashboard.Terminal {
		ctrl.AddPublisher(display.NewTerminalPrinter(os.Stdout, dash.Cards.Bindings()))
	}

	// Опционально: внешние сигналы обновления через Redis
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		go engine.NewRemoteTrigger(rdb, infra.RedisChanDashboardRefresh, ctrl, logger).Start(appCtx)
	}

	loopDone := make(chan struct{})
	go func() {
		ctrl.Run(appCtx)
		close(loopDone)
	}()

	// 6. HTTP Server
	limiter := rate.NewLimiter(rate.Limit(cfg.Dashboard.ManualRefreshRPS), cfg.Dashboard.ManualRefreshBurst)
	dashH := handler.NewDashboardHandler(ctrl, page, web.Style, limiter, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewConsoleServer(logger, reg, dashH),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("dashboard started",
			zap.String("addr", srv.Addr),
			zap.String("backend", client.URL()),
			zap.Duration("refresh_interval", ctrl.Interval()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("dashboard stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	cancel()
	<-loopDone
	logger.Info("dashboard exited properly")
}
