// Command reservationd runs the reservation background worker: it owns the
// database schema and the periodic expiry sweep, and prints every domain
// event it observes as a structured log line. The booking, decision,
// negotiation, and query services are consumed as a library by the frontends
// sharing this database.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/room-reservation/internal/config"
	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/expiry"
	"github.com/example/room-reservation/internal/persistence"
	"github.com/example/room-reservation/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	reservations := sqlite.NewReservationRepository(pool)
	catalog := sqlite.NewCatalogRepository(pool)

	rooms, err := catalog.ListRooms(ctx)
	if err != nil {
		logger.Error("failed to read room catalog", "error", err)
		os.Exit(1)
	}
	pending, err := reservations.ListReservations(ctx, persistence.ReservationFilter{
		Statuses: []persistence.ReservationStatus{persistence.StatusPending},
	})
	if err != nil {
		logger.Error("failed to count pending reservations", "error", err)
		os.Exit(1)
	}

	publisher := events.NewAsyncPublisher(cfg.EventBuffer, logger, events.SinkFunc(
		func(_ context.Context, event events.Event) {
			logger.Info("domain event",
				"type", string(event.Type),
				"reservation_id", event.Reservation.ID,
				"actor_id", event.ActorID)
		}))
	defer publisher.Close()

	reconciler := expiry.NewReconciler(reservations, publisher, time.Now, cfg.ExpiryInterval, logger)

	logger.Info("reservation worker started",
		"rooms", len(rooms),
		"pending_reservations", len(pending),
		"expiry_interval", cfg.ExpiryInterval.String())
	reconciler.Run(ctx)

	logger.Info("reservation worker stopped")
}
