// Package simulator генерирует реалистичный трафик vehicle API для analytics API.
package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// Endpoints: эндпоинты, по которым ходят машины.
var Endpoints = []string{
	"/api/vehicle/status",
	"/api/vehicle/location",
	"/api/vehicle/diagnostics",
	"/api/charging/status",
	"/api/remote/lock",
	"/api/remote/climate",
	"/api/navigation/route",
	"/api/user/profile",
}

var methods = []string{"GET", "POST", "PUT", "DELETE"}

var (
	clientErrorCodes = []int{400, 401, 403, 404, 429}
	serverErrorCodes = []int{500, 502, 503, 504}
)

const (
	msgClientError = "Client error"
	msgServerError = "Server error"
)

// LatencyRange: диапазон задержки в мс.
type LatencyRange struct {
	Min, Max float64
}

// Порядок важен: первое совпадение по подстроке пути
var latencyRanges = []struct {
	marker string
	rng    LatencyRange
}{
	{"status", LatencyRange{20, 80}},
	{"location", LatencyRange{50, 200}},
	{"diagnostics", LatencyRange{100, 400}},
	{"charging", LatencyRange{40, 120}},
	{"lock", LatencyRange{30, 100}},
	{"climate", LatencyRange{60, 250}},
	{"route", LatencyRange{200, 800}},
	{"profile", LatencyRange{25, 90}},
}

var defaultLatency = LatencyRange{30, 150}

// LatencyRangeFor возвращает диапазон задержки для пути.
func LatencyRangeFor(endpoint string) LatencyRange {
	e := strings.ToLower(endpoint)
	for _, l := range latencyRanges {
		if strings.Contains(e, l.marker) {
			return l.rng
		}
	}
	return defaultLatency
}

// Generator не потокобезопасен: один генератор на горутину.
type Generator struct {
	rnd     *rand.Rand
	clients int
}

// NewGenerator: clients машин vehicle_00001..vehicle_N (минимум одна).
func NewGenerator(seed uint64, clients int) *Generator {
	if clients < 1 {
		clients = 1
	}
	return &Generator{
		rnd:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clients: clients,
	}
}

// Latency: равномерно в диапазоне эндпоинта, 2 знака после запятой.
func (g *Generator) Latency(endpoint string) float64 {
	r := LatencyRangeFor(endpoint)
	v := r.Min + g.rnd.Float64()*(r.Max-r.Min)
	return math.Round(v*100) / 100
}

// Status: 98% успех, 1% ошибки клиента, 1% ошибки сервера.
func (g *Generator) Status() (code int, success bool, errMsg *string) {
	p := g.rnd.Float64()
	switch {
	case p < 0.98:
		return 200, true, nil
	case p < 0.99:
		msg := msgClientError
		return clientErrorCodes[g.rnd.IntN(len(clientErrorCodes))], false, &msg
	default:
		msg := msgServerError
		return serverErrorCodes[g.rnd.IntN(len(serverErrorCodes))], false, &msg
	}
}

// ClientID: vehicle_00042.
func (g *Generator) ClientID() string {
	return fmt.Sprintf("vehicle_%05d", g.rnd.IntN(g.clients)+1)
}

// Event собирает одно событие.
func (g *Generator) Event() domain.EventCreate {
	endpoint := Endpoints[g.rnd.IntN(len(Endpoints))]
	latency := g.Latency(endpoint)
	code, success, errMsg := g.Status()

	return domain.EventCreate{
		Endpoint:       endpoint,
		Method:         methods[g.rnd.IntN(len(methods))],
		StatusCode:     code,
		ResponseTimeMs: &latency,
		ClientID:       g.ClientID(),
		ErrorMessage:   errMsg,
		Success:        &success,
	}
}

// Batch: n событий.
func (g *Generator) Batch(n int) []domain.EventCreate {
	out := make([]domain.EventCreate, 0, n)
	for range n {
		out = append(out, g.Event())
	}
	return out
}
