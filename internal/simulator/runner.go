package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/analytics"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// BulkPath: эндпоинт пакетной записи analytics API.
const BulkPath = "/api/events/bulk"

// Options описывает прогон симуляции.
type Options struct {
	TargetURL       string
	EventsPerSecond float64
	BatchSize       int
	// Duration: 0 означает до отмены ctx.
	Duration time.Duration
	// ProgressEvery: раз в сколько пачек писать прогресс.
	ProgressEvery int
	HTTPClient    *http.Client
}

// Stats: итог прогона.
type Stats struct {
	Sent     int
	Accepted int
	Failed   int // пачки, отвергнутые транспортом или бэкендом
	Elapsed  time.Duration
}

// Rate: фактическая скорость, событий в секунду.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Accepted) / s.Elapsed.Seconds()
}

type Runner struct {
	gen     *Generator
	opts    Options
	url     string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewRunner(gen *Generator, opts Options, logger *zap.Logger) (*Runner, error) {
	if opts.TargetURL == "" {
		return nil, errors.New("simulator: target url is required")
	}
	if opts.EventsPerSecond <= 0 {
		return nil, fmt.Errorf("simulator: events per second must be positive, got %v", opts.EventsPerSecond)
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.ProgressEvery < 1 {
		opts.ProgressEvery = 20
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &Runner{
		gen:  gen,
		opts: opts,
		url:  strings.TrimRight(opts.TargetURL, "/") + BulkPath,
		http: hc,
		// burst = размер пачки, иначе WaitN никогда не дождется
		limiter: rate.NewLimiter(rate.Limit(opts.EventsPerSecond), opts.BatchSize),
		logger:  logger.Named("simulator"),
	}, nil
}

// Run шлет пачки с заданной скоростью, пока не истечет Duration или не отменят ctx.
// Отказ одной пачки не останавливает прогон.
func (r *Runner) Run(ctx context.Context) Stats {
	if r.opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Duration)
		defer cancel()
	}

	r.logger.Info("traffic simulation started",
		zap.String("target", r.url),
		zap.Float64("events_per_second", r.opts.EventsPerSecond),
		zap.Int("batch_size", r.opts.BatchSize),
		zap.Duration("duration", r.opts.Duration))

	start := time.Now()
	var st Stats
	for batches := 1; ; batches++ {
		// 1. Ждем токены на всю пачку
		if err := r.limiter.WaitN(ctx, r.opts.BatchSize); err != nil {
			break
		}

		// 2. Отправляем
		batch := r.gen.Batch(r.opts.BatchSize)
		accepted, err := r.Send(ctx, batch)
		if err != nil && ctx.Err() != nil {
			// прогон закончился посреди запроса, пачку не считаем
			break
		}
		st.Sent += len(batch)
		st.Accepted += accepted
		if err != nil {
			st.Failed++
			r.logger.Warn("batch rejected", zap.Int("accepted", accepted), zap.Error(err))
		}

		// 3. Прогресс
		if batches%r.opts.ProgressEvery == 0 {
			elapsed := time.Since(start)
			r.logger.Info("simulation progress",
				zap.Int("events", st.Accepted),
				zap.Float64("eps", float64(st.Accepted)/elapsed.Seconds()),
				zap.Duration("elapsed", elapsed))
		}
	}
	st.Elapsed = time.Since(start)

	r.logger.Info("traffic simulation finished",
		zap.Int("sent", st.Sent),
		zap.Int("accepted", st.Accepted),
		zap.Int("failed_batches", st.Failed),
		zap.Float64("eps", st.Rate()),
		zap.Duration("elapsed", st.Elapsed))
	return st
}

// Send отправляет одну пачку. На 202 и 503 возвращает число принятых бэкендом событий.
func (r *Runner) Send(ctx context.Context, batch []domain.EventCreate) (int, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("simulator: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("simulator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VehicleConnect-Simulator/1")

	resp, err := r.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("simulator: post batch: %w", err)
	}
	defer resp.Body.Close()

	var out analytics.BulkResponse
	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusServiceUnavailable:
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
			return 0, fmt.Errorf("simulator: decode bulk response: %w", err)
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return out.Accepted, fmt.Errorf("simulator: buffer full, %d of %d accepted", out.Accepted, len(batch))
		}
		return out.Accepted, nil
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return 0, fmt.Errorf("simulator: unexpected status %d", resp.StatusCode)
	}
}
