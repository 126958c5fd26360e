package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"remithub/gateway/middleware"
	"remithub/native/escrow"
	"remithub/native/hub"
)

// Config carries the engines and shared middleware the router mounts.
type Config struct {
	Escrow        *escrow.Engine
	Hub           *hub.Hub
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

// New assembles the public API surface: escrow operations under
// /v1/escrow, invoices, remittances, batches and conversions under
// /v1/hub, plus /healthz and /metrics.
func New(cfg Config) (http.Handler, error) {
	if cfg.Escrow == nil {
		return nil, errors.New("routes: nil escrow engine")
	}
	if cfg.Hub == nil {
		return nil, errors.New("routes: nil hub")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	escrowBridge := newEscrowRoutes(cfg.Escrow)
	r.Route("/v1/escrow", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware("escrow"))
		}
		if obs != nil {
			sr.Use(obs.Middleware("escrow"))
		}
		escrowBridge.mount(sr)
	})

	hubBridge := newHubRoutes(cfg.Hub)
	r.Route("/v1/hub", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware("hub"))
		}
		if obs != nil {
			sr.Use(obs.Middleware("hub"))
		}
		hubBridge.mount(sr)
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}
