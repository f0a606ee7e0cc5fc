package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Health serves the liveness, readiness and metrics endpoints every
// service exposes. Liveness always answers; readiness pings the
// backing stores so load balancers stop routing before a restart.
type Health struct {
	Service string
	DB      *pgxpool.Pool
	Redis   *redis.Client
}

func (h Health) Mount(router chi.Router) {
	router.Get("/health", h.health)
	router.Get("/ready", h.ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

func (h Health) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok", "service": h.Service})
}

func (h Health) ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			detail(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			detail(w, r, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ready", "service": h.Service})
}
