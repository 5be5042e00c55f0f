package kpi

import (
	"math"
	"testing"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

func TestDeriveSplit(t *testing.T) {
	cases := []struct {
		name  string
		total float64
		rate  float64
		want  Split
	}{
		{"regular", 200, 5.0, Split{Success: 190, Errors: 10}},
		{"zero rate", 200, 0, Split{Success: 200, Errors: 0}},
		{"zero total", 0, 5.0, Split{Success: 0, Errors: 0}},
		{"malformed rate", 200, 150, Split{Success: 0, Errors: 200}},
		{"negative rate", 200, -3, Split{Success: 200, Errors: 0}},
		{"half rounds away from zero", 10, 25, Split{Success: 7, Errors: 3}},
		{"negative total", -5, 10, Split{Success: 0, Errors: 0}},
		{"nan rate", 100, math.NaN(), Split{Success: 100, Errors: 0}},
		{"total beyond int64", 1e19, 0, Split{Success: math.MaxInt64 - 1023, Errors: 0}},
		{"infinite total", math.Inf(1), 5, Split{Success: 0, Errors: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveSplit(tc.total, tc.rate)
			if got != tc.want {
				t.Fatalf("DeriveSplit(%v, %v) = %+v, want %+v", tc.total, tc.rate, got, tc.want)
			}
		})
	}
}

func TestDeriveSplitHugeTotalNeverNegative(t *testing.T) {
	for _, total := range []float64{1e19, 1e20, 1e300, math.MaxFloat64} {
		got := DeriveSplit(total, 5)
		if got.Success < 0 || got.Errors < 0 {
			t.Fatalf("DeriveSplit(%g, 5) = %+v, want non-negative", total, got)
		}
		if got.Success < got.Errors {
			t.Fatalf("DeriveSplit(%g, 5) = %+v, success must dominate at 5%%", total, got)
		}
	}
}

func TestSplitFromKPIsMissingKeys(t *testing.T) {
	got := SplitFromKPIs(domain.KpiMap{domain.KeyTotalRequests: 50.0})
	if got != (Split{Success: 50}) {
		t.Fatalf("missing error rate must count as zero, got %+v", got)
	}

	got = SplitFromKPIs(domain.KpiMap{domain.KeyErrorRatePercent: 12.0, domain.KeyTotalRequests: nil})
	if got != (Split{}) {
		t.Fatalf("missing total must give empty split, got %+v", got)
	}
}
