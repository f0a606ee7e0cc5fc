// Package app assembles the binaries. Each Run function loads
// configuration, wires stores, services, consumers and the HTTP
// server, then blocks until the context is cancelled or a component
// fails.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"booking-system/internal/config"
	"booking-system/pkg/log"
	"booking-system/pkg/tracing"
)

// Context is the root context of a binary, cancelled by SIGINT or
// SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// bootstrap loads configuration and builds the logger and tracer
// every binary starts from. The returned cleanup flushes both.
func bootstrap(ctx context.Context, service string) (config.Config, *zap.Logger, func(), error) {
	cfg, err := config.New(service)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, err := log.New(service, cfg.App.Environment)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	shutdownTracing, err := tracing.Init(ctx, service, cfg.App.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	cleanup := func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return cfg, logger, cleanup, nil
}

// consumerName identifies this instance inside its consumer groups,
// so redeliveries after a crash land on the restarted pod.
func consumerName(service string) string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return service + "-" + host
	}
	return service + "-" + uuid.NewString()[:8]
}

// traced wraps the router with server-side span creation.
func traced(service string, h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, service)
}
