package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// windowStatsQuery: все агрегаты окна одним проходом.
// PERCENTILE_CONT дает линейную интерполяцию между соседними значениями.
const windowStatsQuery = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE NOT success),
	AVG(response_time_ms),
	PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY response_time_ms),
	PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY response_time_ms),
	COUNT(DISTINCT client_id),
	MIN(timestamp),
	MAX(timestamp)
FROM api_events
WHERE timestamp > $1`

type KPIRepo struct {
	db *sql.DB
}

func NewKPIRepo(db *sql.DB) *KPIRepo {
	return &KPIRepo{db: db}
}

// WindowStats считает агрегаты по событиям новее since.
func (r *KPIRepo) WindowStats(ctx context.Context, since time.Time) (domain.WindowStats, error) {
	var (
		s             domain.WindowStats
		avg, p95, p99 sql.NullFloat64
		first, last   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, windowStatsQuery, since).Scan(
		&s.Total, &s.Failed, &avg, &p95, &p99, &s.UniqueClients, &first, &last,
	)
	if err != nil {
		return domain.WindowStats{}, fmt.Errorf("postgres: failed to aggregate events: %w", err)
	}

	s.AvgLatency = nullable(avg)
	s.P95Latency = nullable(p95)
	s.P99Latency = nullable(p99)
	if first.Valid && last.Valid {
		s.First, s.Last = first.Time, last.Time
	}
	return s, nil
}

// Ping проверяет доступность базы при старте
func (r *KPIRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
