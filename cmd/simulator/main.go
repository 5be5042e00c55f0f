package main

import (
	"context"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/infra"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/simulator"
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

	sc := cfg.Simulator
	seed := sc.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	// 2. Генератор и прогон
	runner, err := simulator.NewRunner(simulator.NewGenerator(seed, sc.Clients), simulator.Options{
		TargetURL:       sc.TargetURL,
		EventsPerSecond: sc.EventsPerSecond,
		BatchSize:       sc.BatchSize,
		Duration:        sc.Duration,
	}, logger)
	if err != nil {
		logger.Fatal("failed to init simulator", zap.Error(err))
	}

	// Ctrl+C завершает прогон досрочно, итог все равно печатается
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := runner.Run(ctx)
	logger.Info("check events", zap.String("url", sc.TargetURL+"/api/events"), zap.Int("accepted", st.Accepted))
}
