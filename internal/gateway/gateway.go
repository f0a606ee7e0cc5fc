// Package gateway is the single public entrypoint of the platform. It
// reverse-proxies each path family to the owning service, aggregates
// their health and serves the API docs. No business logic: requests
// pass through untouched, bearer tokens included.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booking-system/internal/config"
)

const probeTimeout = 3 * time.Second

type upstream struct {
	name  string
	base  string
	proxy *httputil.ReverseProxy
}

type Gateway struct {
	log       *zap.Logger
	client    *resty.Client
	upstreams []upstream
}

func New(services config.Services, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{
		log: logger,
		client: resty.New().
			SetTimeout(probeTimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, def := range []struct{ name, base string }{
		{"tenant", services.Tenant},
		{"user", services.User},
		{"resource", services.Resource},
		{"booking", services.Booking},
	} {
		proxy, err := g.newProxy(def.name, def.base)
		if err != nil {
			return nil, err
		}
		g.upstreams = append(g.upstreams, upstream{name: def.name, base: def.base, proxy: proxy})
	}
	return g, nil
}

func (g *Gateway) newProxy(name, base string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse %s service url %q: %w", name, base, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.log.Warn("upstream unreachable",
			zap.String("service", name),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintln(w, `{"detail":"upstream unavailable"}`)
	}
	return proxy, nil
}

// Mount attaches the proxy routes and the gateway's own endpoints.
// Both /categories and /resources land on the resource service; it
// owns the catalog.
func (g *Gateway) Mount(router chi.Router) {
	byName := make(map[string]*httputil.ReverseProxy, len(g.upstreams))
	for _, up := range g.upstreams {
		byName[up.name] = up.proxy
	}

	for _, m := range []struct{ prefix, service string }{
		{"/tenants", "tenant"},
		{"/users", "user"},
		{"/categories", "resource"},
		{"/resources", "resource"},
		{"/bookings", "booking"},
	} {
		proxy := byName[m.service]
		router.Handle(m.prefix, proxy)
		router.Handle(m.prefix+"/*", proxy)
	}

	router.Get("/health", g.health)
	router.Get("/ready", g.ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	g.mountDocs(router)
}

type healthReport struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// health probes every upstream in parallel and reports per-service
// status. The gateway itself answers 200 either way; "degraded" in
// the body is the operator's signal.
func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	statuses := make([]string, len(g.upstreams))
	eg, ctx := errgroup.WithContext(ctx)
	for i, up := range g.upstreams {
		i, up := i, up
		eg.Go(func() error {
			resp, err := g.client.R().SetContext(ctx).Get(up.base + "/health")
			if err != nil || resp.StatusCode() != http.StatusOK {
				statuses[i] = "down"
				return nil
			}
			statuses[i] = "ok"
			return nil
		})
	}
	_ = eg.Wait()

	report := healthReport{Status: "ok", Services: make(map[string]string, len(g.upstreams))}
	for i, up := range g.upstreams {
		report.Services[up.name] = statuses[i]
		if statuses[i] != "ok" {
			report.Status = "degraded"
		}
	}
	render.JSON(w, r, report)
}

func (g *Gateway) ready(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ready", "service": "gateway"})
}
