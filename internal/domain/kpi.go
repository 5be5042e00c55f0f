package domain

import (
	"encoding/json"
	"math"
)

// Ключи KPI, которые дашборд использует напрямую (графики и расчет сплита).
// Остальные ключи попадают только в карточки через декларативные привязки.
const (
	KeyAvgLatency       = "avg_latency_ms"
	KeyP95Latency       = "p95_latency_ms"
	KeyP99Latency       = "p99_latency_ms"
	KeyTotalRequests    = "total_requests"
	KeyErrorRatePercent = "error_rate_percent"

	KeySuccessfulRequests = "successful_requests"
	KeyFailedRequests     = "failed_requests"
	KeySuccessRate        = "success_rate_percent"
	KeyAvailability       = "availability_percent"
	KeyUniqueClients      = "unique_clients"
	KeyRequestsPerMinute  = "requests_per_minute"
)

// KpiReport: один снимок от бэкенда. После получения не меняется,
// живет ровно один цикл обновления.
type KpiReport struct {
	ReportTimestamp Timestamp `json:"report_timestamp"`
	OperationalKPIs KpiMap    `json:"operational_kpis"`
}

// KpiMap: метрика -> значение. Числа из JSON приходят как float64,
// null остается nil. Набор ключей не фиксирован.
type KpiMap map[string]any

// Number возвращает числовое значение ключа.
// false: если ключа нет, он null или не число.
func (m KpiMap) Number(key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	return ToFloat(v)
}

// Lookup: то же самое, но в виде указателя (nil = отсутствует).
func (m KpiMap) Lookup(key string) *float64 {
	f, ok := m.Number(key)
	if !ok {
		return nil
	}
	return &f
}

// ToFloat приводит числовые типы, которые встречаются после json.Unmarshal
// или в тестах, к float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Finite отбрасывает NaN и бесконечности.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
