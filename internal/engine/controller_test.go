package engine

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/connectors"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/display"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/kpi"
)

const markup = `<html><body>
<p data-status></p>
<p id="avg" data-kpi="avg_latency_ms"></p>
<p id="p95" data-kpi="p95_latency_ms"></p>
<p id="p99" data-kpi="p99_latency_ms"></p>
<p id="total" data-kpi="total_requests"></p>
<p id="err" data-kpi="error_rate_percent"></p>
</body></html>`

type nopRenderer struct{}

func (nopRenderer) Redraw(kind display.ChartKind, _ display.Dataset) ([]byte, error) {
	return []byte(kind), nil
}

type fetchResult struct {
	report *domain.KpiReport
	err    error
}

// scriptedFetcher отдает результаты по очереди, последний повторяется.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *scriptedFetcher) Fetch(ctx context.Context) (*domain.KpiReport, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, &connectors.FetchError{Kind: connectors.KindNetwork, Cause: ctx.Err()}
		}
	}

	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	r := f.results[i]
	return r.report, r.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	frames []display.Frame
}

func (p *recordingPublisher) Publish(f display.Frame) {
	p.mu.Lock()
	p.frames = append(p.frames, f)
	p.mu.Unlock()
}

func fullReport() *domain.KpiReport {
	return &domain.KpiReport{
		ReportTimestamp: domain.Timestamp{Time: time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC), Raw: "2026-10-14T09:30:00Z"},
		OperationalKPIs: domain.KpiMap{
			domain.KeyAvgLatency:       80.04,
			domain.KeyP95Latency:       150.06,
			domain.KeyP99Latency:       320.0,
			domain.KeyTotalRequests:    200.0,
			domain.KeyErrorRatePercent: 5.0,
		},
	}
}

func newTestController(t *testing.T, f ReportFetcher, opts Options) (*Controller, *Metrics) {
	t.Helper()
	dash, err := display.NewDashboard([]byte(markup), kpi.NewFormatter("en"), nopRenderer{}, zap.NewNop())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	m := NewMetrics(prometheus.NewRegistry())
	return NewController(f, dash, opts, m, zap.NewNop()), m
}

func TestRefreshSuccessRendersCardsChartsAndStatus(t *testing.T) {
	ctrl, m := newTestController(t, &scriptedFetcher{results: []fetchResult{{report: fullReport()}}}, Options{})

	out, ok := ctrl.Refresh(context.Background(), SourceManual)
	if !ok || out.Err != nil {
		t.Fatalf("expected successful refresh, got ok=%v err=%v", ok, out.Err)
	}

	v := ctrl.View()
	wantCards := map[display.CardRef]string{
		"avg":   "80.0 ms",
		"p95":   "150.1 ms",
		"p99":   "320.0 ms",
		"total": "200",
		"err":   "5.0%",
	}
	if !reflect.DeepEqual(v.Cards, wantCards) {
		t.Fatalf("unexpected cards %v", v.Cards)
	}
	if got := v.Latency.Values; !reflect.DeepEqual(got, []float64{80.04, 150.06, 320}) {
		t.Fatalf("unexpected latency dataset %v", got)
	}
	if got := v.Split.Values; !reflect.DeepEqual(got, []float64{190, 10}) {
		t.Fatalf("unexpected split dataset %v", got)
	}
	if v.Status != "Last updated: 10/14/2026, 9:30:00 AM" {
		t.Fatalf("unexpected status %q", v.Status)
	}
	if v.State != "idle" || v.Version != 1 || v.ReportTimestamp == nil {
		t.Fatalf("unexpected view meta %+v", v)
	}

	if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected success counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.KPIValue.WithLabelValues(domain.KeyTotalRequests)); got != 200 {
		t.Fatalf("expected kpi gauge 200, got %v", got)
	}
	if cnt := testutil.CollectAndCount(m.RefreshDuration); cnt != 1 {
		t.Fatalf("expected duration histogram to be collected, got %d", cnt)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedFetcher{results: []fetchResult{{report: fullReport()}}}, Options{})

	ctrl.Refresh(context.Background(), SourceManual)
	first := ctrl.View()
	ctrl.Refresh(context.Background(), SourceManual)
	second := ctrl.View()

	if !reflect.DeepEqual(first.Frame, second.Frame) {
		t.Fatalf("same report rendered differently:\n%+v\n%+v", first.Frame, second.Frame)
	}
}

func TestManualTriggerWhileRefreshingIsDropped(t *testing.T) {
	f := &scriptedFetcher{
		results: []fetchResult{{report: fullReport()}},
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	ctrl, m := newTestController(t, f, Options{})

	if !ctrl.Trigger(SourceManual) {
		t.Fatalf("first trigger must be accepted")
	}
	<-f.started

	if ctrl.State() != StateRefreshing {
		t.Fatalf("expected Refreshing state")
	}
	if ctrl.Trigger(SourceManual) {
		t.Fatalf("second trigger must be dropped while refreshing")
	}
	if ctrl.Trigger(SourceTimer) {
		t.Fatalf("timer tick must be dropped while refreshing")
	}
	if _, ok := ctrl.Refresh(context.Background(), SourceManual); ok {
		t.Fatalf("synchronous refresh must be dropped while refreshing")
	}

	v := ctrl.View()
	if v.Version != 0 || v.Status != StatusLoading {
		t.Fatalf("no transition expected before the first fetch completes, got %+v", v)
	}

	close(f.release)
	ctrl.Wait()

	if f.Calls() != 1 {
		t.Fatalf("expected exactly one outstanding fetch, got %d", f.Calls())
	}
	if ctrl.State() != StateIdle {
		t.Fatalf("expected Idle after completion")
	}
	if got := testutil.ToFloat64(m.TriggersDropped.WithLabelValues(SourceManual)); got != 2 {
		t.Fatalf("expected 2 dropped manual triggers, got %v", got)
	}
	if got := testutil.ToFloat64(m.TriggersDropped.WithLabelValues(SourceTimer)); got != 1 {
		t.Fatalf("expected 1 dropped timer trigger, got %v", got)
	}

	// После завершения новый триггер снова принимается
	if !ctrl.Trigger(SourceManual) {
		t.Fatalf("trigger after completion must be accepted")
	}
	<-f.started
	ctrl.Wait()
}

func TestFailurePreservesPriorState(t *testing.T) {
	errs := []error{
		&connectors.FetchError{Kind: connectors.KindHTTP, Status: http.StatusBadGateway},
		&connectors.FetchError{Kind: connectors.KindNetwork, Cause: errors.New("connection refused")},
		&connectors.FetchError{Kind: connectors.KindParse, Cause: errors.New("bad json")},
	}

	for _, fetchErr := range errs {
		t.Run(string(connectors.KindOf(fetchErr)), func(t *testing.T) {
			f := &scriptedFetcher{results: []fetchResult{{report: fullReport()}, {err: fetchErr}}}
			ctrl, m := newTestController(t, f, Options{})

			ctrl.Refresh(context.Background(), SourceManual)
			before := ctrl.View()

			out, ok := ctrl.Refresh(context.Background(), SourceTimer)
			if !ok || out.Err == nil {
				t.Fatalf("expected failed refresh, got ok=%v err=%v", ok, out.Err)
			}
			after := ctrl.View()

			if !reflect.DeepEqual(before.Cards, after.Cards) {
				t.Fatalf("cards changed on failure: %v -> %v", before.Cards, after.Cards)
			}
			if !reflect.DeepEqual(before.Latency, after.Latency) || !reflect.DeepEqual(before.Split, after.Split) {
				t.Fatalf("charts changed on failure")
			}
			if after.Status != StatusError {
				t.Fatalf("expected error status, got %q", after.Status)
			}
			if after.State != "idle" || after.LastError != string(connectors.KindOf(fetchErr)) {
				t.Fatalf("unexpected view after failure %+v", after)
			}
			if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues(string(connectors.KindOf(fetchErr)))); got != 1 {
				t.Fatalf("expected failure counter 1, got %v", got)
			}
		})
	}
}

func TestPartialReport(t *testing.T) {
	report := fullReport()
	delete(report.OperationalKPIs, domain.KeyP99Latency)
	ctrl, _ := newTestController(t, &scriptedFetcher{results: []fetchResult{{report: report}}}, Options{})

	ctrl.Refresh(context.Background(), SourceManual)
	v := ctrl.View()

	if got := v.Latency.Values; !reflect.DeepEqual(got, []float64{80.04, 150.06, 0}) {
		t.Fatalf("expected avg and p95 bars with p99 defaulted, got %v", got)
	}
	if v.Cards["p99"] != "--" {
		t.Fatalf("expected placeholder for p99 card, got %q", v.Cards["p99"])
	}
	if v.Cards["avg"] != "80.0 ms" {
		t.Fatalf("other cards must still render, got %q", v.Cards["avg"])
	}
}

func TestRefreshTimeoutReturnsToIdle(t *testing.T) {
	f := &scriptedFetcher{
		results: []fetchResult{{report: fullReport()}},
		release: make(chan struct{}),
	}
	ctrl, _ := newTestController(t, f, Options{FetchTimeout: 20 * time.Millisecond})

	out, ok := ctrl.Refresh(context.Background(), SourceManual)
	if !ok {
		t.Fatalf("refresh must start")
	}
	var fe *connectors.FetchError
	if !errors.As(out.Err, &fe) || !fe.Timeout() {
		t.Fatalf("expected timeout error, got %v", out.Err)
	}
	if ctrl.State() != StateIdle {
		t.Fatalf("controller must return to Idle after timeout")
	}
	if ctrl.View().Status != StatusError {
		t.Fatalf("expected error status after timeout")
	}
}

func TestUnparseableTimestampShowsRaw(t *testing.T) {
	report := fullReport()
	report.ReportTimestamp = domain.Timestamp{Raw: "yesterday"}
	ctrl, _ := newTestController(t, &scriptedFetcher{results: []fetchResult{{report: report}}}, Options{})

	ctrl.Refresh(context.Background(), SourceManual)
	v := ctrl.View()
	if v.Status != "Last updated: yesterday" || v.ReportTimestamp != nil {
		t.Fatalf("unexpected status for raw timestamp: %+v", v)
	}
}

func TestNilReportIsParseError(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedFetcher{results: []fetchResult{{}}}, Options{})
	out, _ := ctrl.Refresh(context.Background(), SourceManual)
	if connectors.KindOf(out.Err) != connectors.KindParse {
		t.Fatalf("expected parse error for empty report, got %v", out.Err)
	}
}

func TestRunRefreshesImmediatelyAndPeriodically(t *testing.T) {
	f := &scriptedFetcher{
		results: []fetchResult{{report: fullReport()}},
		started: make(chan struct{}, 16),
	}
	ctrl, _ := newTestController(t, f, Options{RefreshInterval: 10 * time.Millisecond})
	pub := &recordingPublisher{}
	ctrl.AddPublisher(pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-f.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("refresh %d did not happen", i)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.frames) < 2 {
		t.Fatalf("expected publisher to receive frames, got %d", len(pub.frames))
	}
}

func TestTriggerAfterRunStoppedIsIgnored(t *testing.T) {
	f := &scriptedFetcher{
		results: []fetchResult{{report: fullReport()}},
		started: make(chan struct{}, 16),
	}
	ctrl, _ := newTestController(t, f, Options{RefreshInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()

	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("startup refresh did not happen")
	}
	cancel()
	<-done

	calls := f.Calls()
	if ctrl.Trigger(SourceRemote) {
		t.Fatalf("trigger after shutdown must be refused")
	}
	ctrl.Wait()
	if f.Calls() != calls {
		t.Fatalf("no fetch expected after shutdown, got %d calls (was %d)", f.Calls(), calls)
	}
	if ctrl.State() != StateIdle {
		t.Fatalf("expected Idle after shutdown, got %s", ctrl.State())
	}
}
