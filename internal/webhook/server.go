package webhook

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter assembles the full HTTP surface: unauthenticated health
// checks and inbound channel webhooks, plus the bearer-authenticated admin
// API. Middleware order matters: request id and recovery first, then the
// access log, then per-group auth.
func NewRouter(appLogger zerolog.Logger, inbound *InboundHandler, admin *AdminHandler, bearerTokens []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(appLogger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/{platform}/{business_id}", inbound.ServeHTTP)

	r.Route("/admin", func(r chi.Router) {
		r.Use(bearerAuth(bearerTokens))
		admin.Routes(r)
	})

	return r
}
