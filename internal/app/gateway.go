package app

import (
	"context"

	"go.uber.org/zap"

	"booking-system/internal/gateway"
	"booking-system/internal/handler"
	"booking-system/pkg/server"
)

// RunGateway serves the public entrypoint. It holds no stores of its
// own; everything is proxied.
func RunGateway(ctx context.Context) error {
	const service = "gateway"
	cfg, logger, cleanup, err := bootstrap(ctx, service)
	if err != nil {
		return err
	}
	defer cleanup()

	gw, err := gateway.New(cfg.Services, logger)
	if err != nil {
		return err
	}

	router := handler.New(service, logger, cfg.CORS)
	gw.Mount(router)

	srv := server.New(cfg.App.Addr(), traced(service, router), logger)
	logger.Info("gateway starting", zap.String("addr", cfg.App.Addr()))
	return srv.Run(ctx)
}
