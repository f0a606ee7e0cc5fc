package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booking-system/internal/auth"
	"booking-system/internal/clients"
	"booking-system/internal/domain/event"
	"booking-system/internal/handler"
	"booking-system/internal/outbox"
	"booking-system/internal/repository/postgres"
	users "booking-system/internal/users/service"
	"booking-system/migrations"
	"booking-system/pkg/server"
	"booking-system/pkg/store"
	"booking-system/pkg/stream"
)

// RunUser serves profiles and authentication. It consumes booking
// events for notification logging and tenant.deleted to purge the
// deleted tenant's users.
func RunUser(ctx context.Context) error {
	const service = "user"
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
	if err := store.Migrate(cfg.Database.URL, migrations.FS, "user"); err != nil {
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

	svc := users.New(
		postgres.NewUserRepository(db),
		clients.NewTenantClient(cfg.Services.Tenant),
		manager,
		logger,
		cfg.Redis.DeletionStream,
	)

	router := handler.New(service, logger, cfg.CORS)
	handler.Health{Service: service, DB: db, Redis: rdb}.Mount(router)
	router.Mount("/users", handler.NewUsers(svc, manager, logger).Routes())

	relay := outbox.NewRelay(postgres.NewOutboxRepository(db), stream.NewPublisher(rdb, logger), logger)

	bookingConsumer := stream.NewConsumer(rdb, cfg.Redis.BookingStream, "user-service", consumerName(service), logger)
	for _, kind := range []string{
		event.BookingCreated, event.BookingUpdated,
		event.BookingCancelled, event.BookingStatusChanged,
	} {
		bookingConsumer.Handle(kind, svc.HandleBookingEvent)
	}

	deletionConsumer := stream.NewConsumer(rdb, cfg.Redis.DeletionStream, "user-service-deletion", consumerName(service), logger)
	deletionConsumer.Handle(event.TenantDeleted, svc.HandleDeletionEvent)

	srv := server.New(cfg.App.Addr(), traced(service, router), logger)
	logger.Info("user service starting", zap.String("addr", cfg.App.Addr()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return bookingConsumer.Run(gctx) })
	g.Go(func() error { return deletionConsumer.Run(gctx) })
	return g.Wait()
}
