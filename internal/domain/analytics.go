package domain

import "time"

// WindowStats: сырые агрегаты по событиям окна, до округления.
type WindowStats struct {
	Total         int64
	Failed        int64
	AvgLatency    *float64 // nil, если нет ни одной задержки
	P95Latency    *float64
	P99Latency    *float64
	UniqueClients int64
	First         time.Time
	Last          time.Time
}

// AnalyticsReport: тело GET /api/analytics/kpis.
type AnalyticsReport struct {
	ReportTimestamp     time.Time `json:"report_timestamp"`
	AnalysisPeriodHours int       `json:"analysis_period_hours"`
	TotalEventsAnalyzed int64     `json:"total_events_analyzed"`
	OperationalKPIs     KpiMap    `json:"operational_kpis"`
}
