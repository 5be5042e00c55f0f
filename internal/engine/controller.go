package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/connectors"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/display"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/kpi"
)

// Источники триггеров обновления.
const (
	SourceStartup = "startup"
	SourceTimer   = "timer"
	SourceManual  = "manual"
	SourceRemote  = "remote"
)

const (
	// StatusError: фиксированная строка статуса при любом отказе.
	StatusError = "Error loading KPIs"
	// StatusLoading: до первого завершенного цикла.
	StatusLoading = "Loading..."

	statusPrefix = "Last updated: "

	// TimestampLayout: время отчета в строке статуса, всегда в форме en-US.
	// dashboard.locale влияет только на группировку чисел.
	TimestampLayout = "1/2/2006, 3:04:05 PM"

	DefaultRefreshInterval = 30 * time.Second
)

// ReportFetcher: источник отчетов (HTTP-клиент бэкенда).
type ReportFetcher interface {
	Fetch(ctx context.Context) (*domain.KpiReport, error)
}

// Publisher получает кадр после каждого завершенного цикла.
type Publisher interface {
	Publish(frame display.Frame)
}

type State int32

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "refreshing"
	}
	return "idle"
}

type Options struct {
	RefreshInterval time.Duration
	// FetchTimeout ограничивает один запрос. 0 отключает ограничение: зависший
	// запрос держит контроллер в Refreshing бесконечно.
	FetchTimeout time.Duration
	// Location: часовой пояс строки статуса.
	Location *time.Location
}

// Outcome: итог одного цикла.
type Outcome struct {
	CycleID  string
	Source   string
	Report   *domain.KpiReport
	Err      error
	Duration time.Duration
}

// View: согласованный снимок для HTTP и подписчиков.
type View struct {
	display.Frame
	State           string     `json:"state"`
	Version         uint64     `json:"version"`
	ReportTimestamp *time.Time `json:"report_timestamp,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// Controller реализует DashboardController: расписание, single-flight и раскладка отчета.
type Controller struct {
	fetcher    ReportFetcher
	dash       *display.Dashboard
	opts       Options
	metrics    *Metrics
	logger     *zap.Logger
	publishers []Publisher

	// Единственный механизм защиты от наложения: CAS на флаге
	refreshing atomic.Bool

	// frameMu делает запись отчета атомарной для читателей (нет «рваных» кадров)
	frameMu   sync.RWMutex
	version   uint64
	reportAt  *time.Time
	lastError string

	// baseMu упорядочивает wg.Add и остановку Run
	baseMu  sync.Mutex
	base    context.Context
	stopped bool
	wg      sync.WaitGroup
}

func NewController(fetcher ReportFetcher, dash *display.Dashboard, opts Options, metrics *Metrics, logger *zap.Logger) *Controller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	dash.Board.SetStatus(StatusLoading)

	return &Controller{
		fetcher: fetcher,
		dash:    dash,
		opts:    opts,
		metrics: metrics,
		logger:  logger.Named("dashboard-controller"),
		base:    context.Background(),
	}
}

// AddPublisher регистрирует подписчика. Вызывать до Run.
func (c *Controller) AddPublisher(p Publisher) {
	c.publishers = append(c.publishers, p)
}

func (c *Controller) State() State {
	if c.refreshing.Load() {
		return StateRefreshing
	}
	return StateIdle
}

// Interval: период автоматического обновления.
func (c *Controller) Interval() time.Duration { return c.opts.RefreshInterval }

// Run делает одно немедленное обновление и затем обновляет по таймеру,
// пока не отменят ctx. Тик во время активного обновления отбрасывается.
func (c *Controller) Run(ctx context.Context) {
	c.baseMu.Lock()
	c.base = ctx
	c.baseMu.Unlock()

	c.logger.Info("dashboard refresh loop started", zap.Duration("interval", c.opts.RefreshInterval))
	c.Trigger(SourceStartup)

	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.baseMu.Lock()
			c.stopped = true
			c.baseMu.Unlock()
			c.wg.Wait()
			c.logger.Info("dashboard refresh loop stopped")
			return
		case <-ticker.C:
			c.Trigger(SourceTimer)
		}
	}
}

// Trigger переводит Idle -> Refreshing и запускает цикл в фоне.
// false: обновление уже идет, триггер отброшен (не ставится в очередь),
// или цикл Run уже остановлен.
func (c *Controller) Trigger(source string) bool {
	c.baseMu.Lock()
	if c.stopped {
		c.baseMu.Unlock()
		c.logger.Debug("refresh loop stopped, trigger ignored", zap.String("source", source))
		return false
	}
	if !c.acquire(source) {
		c.baseMu.Unlock()
		return false
	}
	ctx := c.base
	c.wg.Add(1)
	c.baseMu.Unlock()

	go func() {
		defer c.wg.Done()
		c.refresh(ctx, source)
	}()
	return true
}

// Refresh: синхронный вариант Trigger.
func (c *Controller) Refresh(ctx context.Context, source string) (Outcome, bool) {
	if !c.acquire(source) {
		return Outcome{}, false
	}
	return c.refresh(ctx, source), true
}

// Wait дожидается фоновых циклов, запущенных через Trigger.
func (c *Controller) Wait() { c.wg.Wait() }

// View читает все цели под тем же замком, под которым пишется отчет.
func (c *Controller) View() View {
	c.frameMu.RLock()
	defer c.frameMu.RUnlock()

	v := View{
		Frame:     c.dash.Frame(),
		State:     c.State().String(),
		Version:   c.version,
		LastError: c.lastError,
	}
	if c.reportAt != nil {
		t := *c.reportAt
		v.ReportTimestamp = &t
	}
	return v
}

// ChartImage: последняя отрисовка графика.
func (c *Controller) ChartImage(kind display.ChartKind) ([]byte, bool) {
	c.frameMu.RLock()
	defer c.frameMu.RUnlock()
	return c.dash.Charts.Image(kind)
}

func (c *Controller) acquire(source string) bool {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.metrics.TriggersDropped.WithLabelValues(source).Inc()
		c.logger.Debug("refresh already in flight, trigger dropped", zap.String("source", source))
		return false
	}
	c.metrics.Refreshing.Set(1)
	return true
}

// refresh выполняется с захваченным флагом и всегда возвращает контроллер в Idle.
func (c *Controller) refresh(ctx context.Context, source string) Outcome {
	start := time.Now()
	out := Outcome{CycleID: uuid.New().String(), Source: source}
	log := c.logger.With(zap.String("cycle_id", out.CycleID), zap.String("source", source))

	defer func() {
		out.Duration = time.Since(start)
		c.metrics.RefreshDuration.Observe(out.Duration.Seconds())
		c.metrics.Refreshing.Set(0)
		c.refreshing.Store(false)
	}()

	fetchCtx := ctx
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	report, err := c.fetcher.Fetch(fetchCtx)
	if err == nil && report == nil {
		err = &connectors.FetchError{Kind: connectors.KindParse, Cause: errors.New("empty report")}
	}
	if err != nil {
		out.Err = err
		c.fail(err, log)
		c.publish()
		return out
	}

	out.Report = report
	c.apply(report)
	log.Info("dashboard refreshed",
		zap.Int("kpis", len(report.OperationalKPIs)),
		zap.String("report_timestamp", report.ReportTimestamp.Raw))
	c.publish()
	return out
}

// apply раскладывает один и тот же отчет по карточкам и графикам.
func (c *Controller) apply(report *domain.KpiReport) {
	kpis := report.OperationalKPIs
	split := kpi.SplitFromKPIs(kpis)

	c.frameMu.Lock()
	c.dash.Cards.Render(kpis)
	c.dash.Charts.SetLatency(
		kpis.Lookup(domain.KeyAvgLatency),
		kpis.Lookup(domain.KeyP95Latency),
		kpis.Lookup(domain.KeyP99Latency),
	)
	c.dash.Charts.SetSuccessSplit(split.Success, split.Errors)
	c.dash.Board.SetStatus(statusPrefix + c.formatTimestamp(report.ReportTimestamp))
	c.version++
	if report.ReportTimestamp.Valid() {
		t := report.ReportTimestamp.Time
		c.reportAt = &t
	} else {
		c.reportAt = nil
	}
	c.lastError = ""
	c.frameMu.Unlock()

	c.metrics.RefreshTotal.WithLabelValues("success").Inc()
	c.metrics.LastSuccess.SetToCurrentTime()
	c.metrics.KPIValue.Reset()
	for key := range kpis {
		if v, ok := kpis.Number(key); ok {
			c.metrics.KPIValue.WithLabelValues(key).Set(v)
		}
	}
}

// fail меняет только строку статуса: карточки и графики остаются прежними.
func (c *Controller) fail(err error, log *zap.Logger) {
	kind := connectors.KindOf(err)

	fields := []zap.Field{zap.String("kind", string(kind)), zap.Error(err)}
	var fe *connectors.FetchError
	if errors.As(err, &fe) {
		if fe.Status != 0 {
			fields = append(fields, zap.Int("status", fe.Status))
		}
		if fe.Timeout() {
			fields = append(fields, zap.Bool("timeout", true))
		}
	}
	log.Warn("dashboard refresh failed", fields...)

	c.frameMu.Lock()
	c.dash.Board.SetStatus(StatusError)
	c.lastError = string(kind)
	c.frameMu.Unlock()

	c.metrics.RefreshTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Controller) publish() {
	if len(c.publishers) == 0 {
		return
	}
	frame := c.View().Frame
	for _, p := range c.publishers {
		p.Publish(frame)
	}
}

func (c *Controller) formatTimestamp(ts domain.Timestamp) string {
	if ts.Valid() {
		return ts.Time.In(c.opts.Location).Format(TimestampLayout)
	}
	if ts.Raw != "" {
		return ts.Raw
	}
	return "unknown"
}
