package simulator

import (
	"math"
	"regexp"
	"slices"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestLatencyRangeFor(t *testing.T) {
	cases := map[string]LatencyRange{
		"/api/vehicle/status":      {20, 80},
		"/api/charging/status":     {20, 80}, // status совпадает раньше charging
		"/api/vehicle/location":    {50, 200},
		"/api/vehicle/diagnostics": {100, 400},
		"/api/remote/lock":         {30, 100},
		"/api/remote/climate":      {60, 250},
		"/api/navigation/route":    {200, 800},
		"/api/user/profile":        {25, 90},
		"/API/User/Profile":        {25, 90},
		"/api/unknown":             {30, 150},
	}
	for endpoint, want := range cases {
		if got := LatencyRangeFor(endpoint); got != want {
			t.Fatalf("LatencyRangeFor(%q) = %+v, want %+v", endpoint, got, want)
		}
	}
}

func TestLatencyWithinRange(t *testing.T) {
	g := NewGenerator(1, 100)
	for _, endpoint := range append(slices.Clone(Endpoints), "/api/other") {
		r := LatencyRangeFor(endpoint)
		for range 500 {
			v := g.Latency(endpoint)
			if v < r.Min || v > r.Max {
				t.Fatalf("%s: latency %v outside [%v, %v]", endpoint, v, r.Min, r.Max)
			}
			if math.Abs(v*100-math.Round(v*100)) > 1e-6 {
				t.Fatalf("%s: latency %v has more than 2 decimals", endpoint, v)
			}
		}
	}
}

func TestStatusDistribution(t *testing.T) {
	g := NewGenerator(42, 100)

	const n = 100000
	var ok, client, server int
	for range n {
		code, success, msg := g.Status()
		switch {
		case success:
			if code != 200 || msg != nil {
				t.Fatalf("success must be 200 without message, got %d %v", code, msg)
			}
			ok++
		case slices.Contains(clientErrorCodes, code):
			if msg == nil || *msg != "Client error" {
				t.Fatalf("client error %d with message %v", code, msg)
			}
			client++
		case slices.Contains(serverErrorCodes, code):
			if msg == nil || *msg != "Server error" {
				t.Fatalf("server error %d with message %v", code, msg)
			}
			server++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}

	if share := float64(ok) / n; share < 0.975 || share > 0.985 {
		t.Fatalf("success share %.4f, want about 0.98", share)
	}
	if client == 0 || server == 0 {
		t.Fatalf("expected both error classes, got client=%d server=%d", client, server)
	}
}

func TestEventsAreValidRequests(t *testing.T) {
	g := NewGenerator(7, 100)
	v := validator.New()
	id := regexp.MustCompile(`^vehicle_\d{5}$`)

	for _, ev := range g.Batch(1000) {
		if err := v.Struct(ev); err != nil {
			t.Fatalf("generated event rejected by validator: %v (%+v)", err, ev)
		}
		if !id.MatchString(ev.ClientID) || ev.ClientID < "vehicle_00001" || ev.ClientID > "vehicle_00100" {
			t.Fatalf("unexpected client id %q", ev.ClientID)
		}
		if *ev.Success != (ev.StatusCode == 200) {
			t.Fatalf("success flag does not match status %d", ev.StatusCode)
		}
	}
}

func TestGeneratorDeterministicBySeed(t *testing.T) {
	a, b := NewGenerator(99, 100).Batch(50), NewGenerator(99, 100).Batch(50)
	for i := range a {
		if a[i].Endpoint != b[i].Endpoint || a[i].ClientID != b[i].ClientID || *a[i].ResponseTimeMs != *b[i].ResponseTimeMs {
			t.Fatalf("event %d differs for the same seed: %+v vs %+v", i, a[i], b[i])
		}
	}
}
