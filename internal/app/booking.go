package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booking-system/internal/auth"
	bookings "booking-system/internal/bookings/service"
	"booking-system/internal/clients"
	"booking-system/internal/domain/event"
	"booking-system/internal/handler"
	"booking-system/internal/outbox"
	"booking-system/internal/repository/postgres"
	"booking-system/migrations"
	"booking-system/pkg/cache"
	"booking-system/pkg/server"
	"booking-system/pkg/store"
	"booking-system/pkg/stream"
)

// RunBooking serves the admission engine. Deletion events cascade
// into cancellations; the outbox relay moves staged booking events
// onto the stream.
func RunBooking(ctx context.Context) error {
	const service = "booking"
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
	if err := store.Migrate(cfg.Database.URL, migrations.FS, "booking"); err != nil {
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
	svc := bookings.New(
		postgres.NewBookingRepository(db),
		clients.NewResourceClient(cfg.Services.Resource),
		clients.NewSettingsProvider(c, clients.NewTenantClient(cfg.Services.Tenant)),
		clients.NewUserClient(cfg.Services.User),
		logger,
		cfg.Redis.BookingStream,
	)

	router := handler.New(service, logger, cfg.CORS)
	handler.Health{Service: service, DB: db, Redis: rdb}.Mount(router)
	router.Mount("/bookings", handler.NewBookings(svc, manager, logger).Routes())

	relay := outbox.NewRelay(postgres.NewOutboxRepository(db), stream.NewPublisher(rdb, logger), logger)

	deletionConsumer := stream.NewConsumer(rdb, cfg.Redis.DeletionStream, "booking-service", consumerName(service), logger)
	deletionConsumer.Handle(event.ResourceDeleted, svc.HandleDeletionEvent)
	deletionConsumer.Handle(event.UserDeleted, svc.HandleDeletionEvent)
	deletionConsumer.Handle(event.TenantDeleted, svc.HandleDeletionEvent)

	srv := server.New(cfg.App.Addr(), traced(service, router), logger)
	logger.Info("booking service starting", zap.String("addr", cfg.App.Addr()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return deletionConsumer.Run(gctx) })
	return g.Wait()
}
