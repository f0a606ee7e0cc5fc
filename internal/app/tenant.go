package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booking-system/internal/auth"
	"booking-system/internal/domain/event"
	"booking-system/internal/handler"
	"booking-system/internal/outbox"
	"booking-system/internal/repository/postgres"
	tenants "booking-system/internal/tenants/service"
	"booking-system/migrations"
	"booking-system/pkg/cache"
	"booking-system/pkg/server"
	"booking-system/pkg/store"
	"booking-system/pkg/stream"
	"booking-system/pkg/webhook"
)

// RunTenant serves the tenant registry: tenants, their settings and
// their webhooks. It also consumes booking events to dispatch the
// tenant's webhooks.
func RunTenant(ctx context.Context) error {
	const service = "tenant"
	cfg, logger, cleanup, err := bootstrap(ctx, service)
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := store.Postgres(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(cfg.Database.URL, migrations.FS, "tenant"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	rdb, err := store.Redis(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	manager, err := auth.NewManager(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.ExpireHours)
	if err != nil {
		return err
	}

	c := cache.New(rdb, logger, cfg.Cache.SettingsTTLSeconds, cfg.Cache.AvailabilityTTLSeconds)
	svc := tenants.New(
		postgres.NewTenantRepository(db),
		postgres.NewWebhookRepository(db),
		c,
		webhook.NewSender(logger),
		logger,
		cfg.Redis.DeletionStream,
	)

	router := handler.New(service, logger, cfg.CORS)
	handler.Health{Service: service, DB: db, Redis: rdb}.Mount(router)
	router.Mount("/tenants", handler.NewTenants(svc, manager, logger).Routes())

	relay := outbox.NewRelay(postgres.NewOutboxRepository(db), stream.NewPublisher(rdb, logger), logger)

	consumer := stream.NewConsumer(rdb, cfg.Redis.BookingStream, "tenant-service", consumerName(service), logger)
	for _, kind := range []string{
		event.BookingCreated, event.BookingUpdated,
		event.BookingCancelled, event.BookingStatusChanged,
	} {
		consumer.Handle(kind, svc.HandleBookingEvent)
	}

	srv := server.New(cfg.App.Addr(), traced(service, router), logger)
	logger.Info("tenant service starting", zap.String("addr", cfg.App.Addr()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	return g.Wait()
}
