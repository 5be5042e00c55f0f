package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

type fakeStats struct {
	stats domain.WindowStats
	err   error
	since time.Time
}

func (f *fakeStats) WindowStats(_ context.Context, since time.Time) (domain.WindowStats, error) {
	f.since = since
	return f.stats, f.err
}

func fptr(v float64) *float64 { return &v }

func TestOperationalKPIs(t *testing.T) {
	first := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	kpis := OperationalKPIs(domain.WindowStats{
		Total:         200,
		Failed:        7,
		AvgLatency:    fptr(80.12345),
		P95Latency:    fptr(150.499),
		P99Latency:    fptr(320),
		UniqueClients: 42,
		First:         first,
		Last:          first.Add(30 * time.Minute),
	})

	want := map[string]float64{
		domain.KeyAvgLatency:         80.12,
		domain.KeyP95Latency:         150.5,
		domain.KeyP99Latency:         320,
		domain.KeyErrorRatePercent:   3.5,
		domain.KeySuccessRate:        96.5,
		domain.KeyAvailability:       96.5,
		domain.KeyTotalRequests:      200,
		domain.KeySuccessfulRequests: 193,
		domain.KeyFailedRequests:     7,
		domain.KeyUniqueClients:      42,
		domain.KeyRequestsPerMinute:  6.67,
	}
	for key, v := range want {
		got, ok := kpis.Number(key)
		if !ok || got != v {
			t.Fatalf("%s: expected %v, got %v (%v)", key, v, kpis[key], ok)
		}
	}
}

func TestOperationalKPIsEmptyWindow(t *testing.T) {
	kpis := OperationalKPIs(domain.WindowStats{})

	if v, _ := kpis.Number(domain.KeyAvailability); v != 100 {
		t.Fatalf("empty window availability must be 100, got %v", v)
	}
	if v, ok := kpis.Number(domain.KeyAvgLatency); !ok || v != 0 {
		t.Fatalf("empty window avg latency must be 0, got %v", kpis[domain.KeyAvgLatency])
	}
	if v, _ := kpis.Number(domain.KeyTotalRequests); v != 0 {
		t.Fatalf("expected zero requests, got %v", v)
	}
}

func TestOperationalKPIsWithoutLatencies(t *testing.T) {
	kpis := OperationalKPIs(domain.WindowStats{Total: 3, First: time.Now(), Last: time.Now()})

	if kpis[domain.KeyP99Latency] != nil {
		t.Fatalf("missing latencies must stay null, got %v", kpis[domain.KeyP99Latency])
	}
	if v, _ := kpis.Number(domain.KeyRequestsPerMinute); v != 0 {
		t.Fatalf("zero span must give zero rpm, got %v", v)
	}
}

func TestServiceReport(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	stats := &fakeStats{stats: domain.WindowStats{Total: 10, Failed: 1}}
	svc := NewService(stats)
	svc.now = func() time.Time { return now }

	report, err := svc.Report(context.Background(), 6)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !stats.since.Equal(now.Add(-6 * time.Hour)) {
		t.Fatalf("unexpected window start %v", stats.since)
	}
	if report.AnalysisPeriodHours != 6 || report.TotalEventsAnalyzed != 10 || !report.ReportTimestamp.Equal(now) {
		t.Fatalf("unexpected report %+v", report)
	}
	if v, _ := report.OperationalKPIs.Number(domain.KeyErrorRatePercent); v != 10 {
		t.Fatalf("expected error rate 10, got %v", v)
	}

	if _, err := svc.Report(context.Background(), 0); err == nil {
		t.Fatalf("expected error for non-positive hours")
	}

	stats.err = errors.New("db down")
	if _, err := svc.Operational(context.Background(), 24); err == nil {
		t.Fatalf("expected repository error to propagate")
	}
}
