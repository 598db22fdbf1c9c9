package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sportoase-service/internal/config"
	"sportoase-service/internal/events"
	blockCreate "sportoase-service/internal/http-server/handlers/blocks/create"
	blockDelete "sportoase-service/internal/http-server/handlers/blocks/delete"
	blockList "sportoase-service/internal/http-server/handlers/blocks/list"
	bookingCreate "sportoase-service/internal/http-server/handlers/bookings/create"
	bookingDelete "sportoase-service/internal/http-server/handlers/bookings/delete"
	bookingList "sportoase-service/internal/http-server/handlers/bookings/list"
	bookingMine "sportoase-service/internal/http-server/handlers/bookings/mine"
	notificationList "sportoase-service/internal/http-server/handlers/notifications/list"
	notificationRead "sportoase-service/internal/http-server/handlers/notifications/read"
	slotDay "sportoase-service/internal/http-server/handlers/slots/day"
	slotWeek "sportoase-service/internal/http-server/handlers/slots/week"
	timeslotList "sportoase-service/internal/http-server/handlers/timeslots/list"
	timeslotRename "sportoase-service/internal/http-server/handlers/timeslots/rename"
	"sportoase-service/internal/lock"
	"sportoase-service/internal/metrics"
	svc "sportoase-service/internal/service"
	"sportoase-service/internal/storage"
	"sportoase-service/internal/storage/memory"
	"sportoase-service/internal/storage/postgres"
	"sportoase-service/pkg/handlers/slogpretty"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/middleware/mwLogger"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type closableStore interface {
	storage.TxManager
	Close() error
}

type closableLocker interface {
	lock.Locker
	Close() error
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-CSRFToken, X-Iserv-User, X-Iserv-Name, X-Iserv-Groups")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting sportoase-service", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	store, err := setupStorage(cfg, log)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := setupLocker(cfg, log)
	if err != nil {
		log.Error("Failed to init slot lock", sl.Err(err))
		os.Exit(1)
	}

	var publisher events.Publisher = events.NopPublisher{}
	var natsPublisher *events.NatsPublisher
	if cfg.NatsURL != "" {
		natsPublisher, err = events.NewNatsPublisher(cfg.NatsURL, log)
		if err != nil {
			log.Error("Failed to connect to NATS", sl.Err(err))
			os.Exit(1)
		}
		publisher = natsPublisher
	}

	m := metrics.New()

	service := svc.NewService(log, store, locker, publisher, m, svc.Options{
		LockTTL:            cfg.Scheduling.LockTTL,
		LockWait:           cfg.Scheduling.LockWait,
		WeekDays:           cfg.Scheduling.WeekDays,
		ListLimit:          cfg.Scheduling.ListLimit,
		DefaultBlockReason: cfg.Scheduling.DefaultBlockReason,
		Location:           cfg.Location(),
	})

	if _, err := service.SeedCatalog(context.Background(), svc.DefaultTimeslots(cfg.Scheduling.DefaultMaxStudents)); err != nil {
		log.Error("Failed to seed timeslot catalog", sl.Err(err))
		os.Exit(1)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(m.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", m.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(CORS)
		r.Use(mwAuth.New(log, mwAuth.Options{
			UserHeader:   cfg.Auth.UserHeader,
			NameHeader:   cfg.Auth.NameHeader,
			GroupsHeader: cfg.Auth.GroupsHeader,
			AdminGroup:   cfg.Auth.AdminGroup,
		}))

		// Availability
		r.Get("/slots", slotDay.New(log, service))
		r.Get("/slots/week", slotWeek.New(log, service))

		// Catalog
		r.Get("/timeslots", timeslotList.New(log, service))
		r.Put("/timeslots/{weekday}/{period}", timeslotRename.New(log, service))

		// Bookings
		r.Post("/bookings", bookingCreate.New(log, service))
		r.Get("/bookings/mine", bookingMine.New(log, service))
		r.Get("/bookings", bookingList.New(log, service))
		r.Delete("/bookings/{id}", bookingDelete.New(log, service))

		// Blocks
		r.Post("/blocks", blockCreate.New(log, service))
		r.Get("/blocks", blockList.New(log, service))
		r.Delete("/blocks/{date}/{period}", blockDelete.New(log, service))

		// Notifications
		r.Get("/notifications", notificationList.New(log, service))
		r.Post("/notifications/{id}/read", notificationRead.New(log, service))
	})

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if natsPublisher != nil {
		natsPublisher.Close()
		log.Info("NATS connection drained")
	}

	if err := locker.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	if err := store.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	log.Info("Shutdown finished, server stopped")
}

func setupStorage(cfg *config.Config, log *slog.Logger) (closableStore, error) {
	switch cfg.StorageDriver {
	case "memory":
		// Local development and tests only: one process-wide write mutex, nothing persisted.
		log.Warn("Using in-memory storage, not for production: data is lost on restart and all writes are serialized")
		return memory.New(), nil
	default:
		pg, err := postgres.New(cfg.StoragePath, cfg.Scheduling.DBLockTimeout)
		if err != nil {
			return nil, err
		}

		if cfg.MigrateOnStart {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
			defer cancel()

			if err := postgres.Migrate(ctx, pg.DB()); err != nil {
				_ = pg.Close()
				return nil, err
			}
			log.Info("Database migrations applied")
		}

		return pg, nil
	}
}

func setupLocker(cfg *config.Config, log *slog.Logger) (closableLocker, error) {
	if cfg.RedisAddr == "" {
		log.Warn("No redis_addr configured, slot locks are process local")
		return lock.NewLocalLock(), nil
	}

	return lock.NewRedisLock(cfg.RedisAddr)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
