package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/console/handler"
)

// ConsoleServer: HTTP-поверхность дашборда.
type ConsoleServer struct {
	router   *chi.Mux
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	dashHandler *handler.DashboardHandler // /dashboard
}

// NewConsoleServer инициализирует сервер дашборда со всеми зависимостями
func NewConsoleServer(logger *zap.Logger, gatherer prometheus.Gatherer, dashH *handler.DashboardHandler) *ConsoleServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &ConsoleServer{
		router:      chi.NewRouter(),
		logger:      logger.Named("console-http"),
		gatherer:    gatherer,
		dashHandler: dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// --- 3. Дашборд ---
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard/", http.StatusFound)
	})
	r.Mount("/dashboard", s.dashHandler.Routes())
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
