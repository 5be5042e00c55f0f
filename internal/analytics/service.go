package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// StatsReader: источник агрегатов окна (Postgres).
type StatsReader interface {
	WindowStats(ctx context.Context, since time.Time) (domain.WindowStats, error)
}

type Service struct {
	stats StatsReader
	now   func() time.Time
}

func NewService(stats StatsReader) *Service {
	return &Service{stats: stats, now: func() time.Time { return time.Now().UTC() }}
}

// Report: полный отчет для дашборда за последние hours часов.
func (s *Service) Report(ctx context.Context, hours int) (*domain.AnalyticsReport, error) {
	now := s.now()
	stats, err := s.window(ctx, now, hours)
	if err != nil {
		return nil, err
	}
	return &domain.AnalyticsReport{
		ReportTimestamp:     now,
		AnalysisPeriodHours: hours,
		TotalEventsAnalyzed: stats.Total,
		OperationalKPIs:     OperationalKPIs(stats),
	}, nil
}

// Operational: только карта KPI.
func (s *Service) Operational(ctx context.Context, hours int) (domain.KpiMap, error) {
	stats, err := s.window(ctx, s.now(), hours)
	if err != nil {
		return nil, err
	}
	return OperationalKPIs(stats), nil
}

func (s *Service) window(ctx context.Context, now time.Time, hours int) (domain.WindowStats, error) {
	if hours <= 0 {
		return domain.WindowStats{}, fmt.Errorf("hours must be positive, got %d", hours)
	}
	return s.stats.WindowStats(ctx, now.Add(-time.Duration(hours)*time.Hour))
}

// OperationalKPIs переводит агрегаты окна в KPI отчета. Дробные значения
// округляются до двух знаков.
func OperationalKPIs(s domain.WindowStats) domain.KpiMap {
	if s.Total <= 0 {
		return domain.KpiMap{
			domain.KeyAvgLatency:         0.0,
			domain.KeyP95Latency:         0.0,
			domain.KeyP99Latency:         0.0,
			domain.KeyErrorRatePercent:   0.0,
			domain.KeyTotalRequests:      int64(0),
			domain.KeySuccessfulRequests: int64(0),
			domain.KeyFailedRequests:     int64(0),
			domain.KeySuccessRate:        100.0,
			domain.KeyAvailability:       100.0,
			domain.KeyUniqueClients:      int64(0),
			domain.KeyRequestsPerMinute:  0.0,
		}
	}

	errorRate := float64(s.Failed) / float64(s.Total) * 100

	rpm := 0.0
	if span := s.Last.Sub(s.First).Minutes(); span > 0 {
		rpm = float64(s.Total) / span
	}

	return domain.KpiMap{
		domain.KeyAvgLatency:         round2(s.AvgLatency),
		domain.KeyP95Latency:         round2(s.P95Latency),
		domain.KeyP99Latency:         round2(s.P99Latency),
		domain.KeyErrorRatePercent:   roundTo2(errorRate),
		domain.KeyTotalRequests:      s.Total,
		domain.KeySuccessfulRequests: s.Total - s.Failed,
		domain.KeyFailedRequests:     s.Failed,
		domain.KeySuccessRate:        roundTo2(100 - errorRate),
		domain.KeyAvailability:       roundTo2(100 - errorRate),
		domain.KeyUniqueClients:      s.UniqueClients,
		domain.KeyRequestsPerMinute:  roundTo2(rpm),
	}
}

// round2: nil (нет ни одной задержки в окне) уходит в JSON как null.
func round2(v *float64) any {
	if v == nil {
		return nil
	}
	return roundTo2(*v)
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
