package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Refreshes: завершенные циклы по исходу (success, http_error, network_error, parse_error)
	RefreshTotal *prometheus.CounterVec

	// Latency: сколько занял цикл fetch + render
	RefreshDuration prometheus.Histogram

	// Single-flight: триггеры, отброшенные во время активного обновления
	TriggersDropped *prometheus.CounterVec

	// Состояние контроллера (0 - Idle, 1 - Refreshing)
	Refreshing prometheus.Gauge

	// Unix-время последнего успешного обновления
	LastSuccess prometheus.Gauge

	// Текущие числовые KPI последнего отчета
	KPIValue *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RefreshTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kpidash_refresh_total",
			Help: "Completed dashboard refresh cycles by outcome.",
		}, []string{"outcome"}),

		RefreshDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "kpidash_refresh_duration_seconds",
			Help:    "Duration of fetch and render of one refresh cycle.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		TriggersDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kpidash_triggers_dropped_total",
			Help: "Refresh triggers dropped because a refresh was already in flight.",
		}, []string{"source"}),

		Refreshing: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kpidash_refreshing",
			Help: "1 while a refresh is in flight.",
		}),

		LastSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kpidash_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		}),

		KPIValue: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "kpidash_kpi_value",
			Help: "Numeric KPI values of the current report.",
		}, []string{"key"}),
	}
}
