package kpi

import (
	"math"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// Split: данные для кольцевой диаграммы успех/ошибки.
type Split struct {
	Success int64 `json:"success"`
	Errors  int64 `json:"errors"`
}

// DeriveSplit считает errors = round(T*R/100) (округление от нуля),
// ограничивает [0, T] и success = max(T-errors, 0).
// Отрицательные и нечисловые входы считаются нулем.
func DeriveSplit(total, errorRatePercent float64) Split {
	// int64 не вмещает больше 2^63-1
	t := math.Min(sanitize(math.Round(total)), maxCount)
	r := errorRatePercent
	if !domain.Finite(r) {
		r = 0
	}

	errs := math.Round(t * r / 100)
	errs = math.Min(math.Max(errs, 0), t)

	return Split{
		Success: int64(math.Min(math.Max(t-errs, 0), maxCount)),
		Errors:  int64(errs),
	}
}

// SplitFromKPIs берет total_requests и error_rate_percent из отчета.
func SplitFromKPIs(kpis domain.KpiMap) Split {
	total, _ := kpis.Number(domain.KeyTotalRequests)
	rate, _ := kpis.Number(domain.KeyErrorRatePercent)
	return DeriveSplit(total, rate)
}

// Наибольший float64, точно представимый в int64 (2^63-1024).
const maxCount = float64(math.MaxInt64 - 1023)

func sanitize(v float64) float64 {
	if !domain.Finite(v) || v < 0 {
		return 0
	}
	return v
}
