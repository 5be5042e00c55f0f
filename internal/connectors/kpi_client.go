package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// ReportPath: путь эндпоинта отчета на бэкенде.
const ReportPath = "/api/analytics/kpis"

const maxReportBytes = 1 << 20

// ClientConfig описывает подключение к бэкенду KPI.
type ClientConfig struct {
	BaseURL string

	// BreakerFailures: сколько отказов подряд открывают предохранитель. 0, без него.
	BreakerFailures uint32
	// BreakerCooldown: через сколько открытый предохранитель пробует снова.
	BreakerCooldown time.Duration

	// HTTPClient можно подменить в тестах. Таймаут на клиенте не ставим:
	// дедлайн приходит через ctx от контроллера.
	HTTPClient *http.Client
}

// KPIClient реализует ReportFetcher поверх HTTP.
type KPIClient struct {
	url    string
	http   *http.Client
	cb     *gobreaker.CircuitBreaker
	schema *gojsonschema.Schema
	logger *zap.Logger
}

func NewKPIClient(cfg ClientConfig, logger *zap.Logger) (*KPIClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("kpi client: base url is required")
	}

	schema, err := compileReportSchema()
	if err != nil {
		return nil, fmt.Errorf("kpi client: compile report schema: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	c := &KPIClient{
		url:    strings.TrimRight(cfg.BaseURL, "/") + ReportPath,
		http:   hc,
		schema: schema,
		logger: logger.Named("kpi-client"),
	}

	if cfg.BreakerFailures > 0 {
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		threshold := cfg.BreakerFailures
		c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kpi-backend",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Кривой документ или 4xx, бэкенд жив, предохранитель не трогаем
			IsSuccessful: func(err error) bool {
				var fe *FetchError
				if !errors.As(err, &fe) {
					return err == nil
				}
				return fe.Kind == KindParse || (fe.Kind == KindHTTP && fe.Status < 500)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	return c, nil
}

// URL: полный адрес эндпоинта отчета.
func (c *KPIClient) URL() string { return c.url }

// Fetch выполняет ровно один запрос. Любой отказ возвращается как *FetchError.
func (c *KPIClient) Fetch(ctx context.Context) (*domain.KpiReport, error) {
	if c.cb == nil {
		return c.fetch(ctx)
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, networkError(err)
		}
		return nil, err
	}
	return res.(*domain.KpiReport), nil
}

func (c *KPIClient) fetch(ctx context.Context) (*domain.KpiReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, networkError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReportBytes))
		return nil, httpError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return nil, networkError(err)
	}

	return c.decode(body)
}

func (c *KPIClient) decode(body []byte) (*domain.KpiReport, error) {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, parseError(fmt.Errorf("decode report: %w", err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, parseError(fmt.Errorf("report shape invalid: %s", strings.Join(msgs, "; ")))
	}

	var report domain.KpiReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, parseError(fmt.Errorf("decode report: %w", err))
	}
	return &report, nil
}
