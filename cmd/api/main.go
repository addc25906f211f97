package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/scanlogin/internal/http/handlers"
	imw "github.com/diagnosis/scanlogin/internal/http/middleware"
	"github.com/diagnosis/scanlogin/internal/notify"
	"github.com/diagnosis/scanlogin/internal/repo/postgres"
	"github.com/diagnosis/scanlogin/internal/ticket"
	"github.com/diagnosis/scanlogin/pkg/config"
	"github.com/diagnosis/scanlogin/pkg/database"
	"github.com/diagnosis/scanlogin/pkg/logger"
	mw "github.com/diagnosis/scanlogin/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	// Ticket store: Redis in production, in-memory fallback for dev.
	var (
		store     ticket.Store
		rateStore imw.RateLimitStore
	)
	if cfg.Redis.URL != "" {
		client, err := ticket.ConnectRedis(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		store = ticket.NewRedisStore(client)
		rateStore = imw.NewRedisRateLimitStore(client)
	} else {
		logger.Warn("REDIS_URL not set, using in-memory ticket store (single instance only)")
		store = ticket.NewMemoryStore()
		rateStore = imw.NewMemoryRateLimitStore()
	}

	// Principal directory: Postgres when configured, empty static map in dev.
	var dir ticket.Directory
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dir = postgres.NewPrincipalRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, all principals get the default redirect")
		dir = ticket.StaticDirectory{}
	}

	// Notification channel: local hub, bridged over NATS when configured.
	hub := notify.NewHub()
	var notifier notify.Notifier = hub
	if cfg.NATS.URL != "" {
		natsNotifier, err := notify.NewNATSNotifier(cfg.NATS.URL, hub)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	ticketService := ticket.NewService(store, dir, notifier, cfg.Ticket)
	ticketHandler := handlers.NewTicketHandler(ticketService, notifier, cfg.Ticket.TTL)

	createLimiter := imw.NewRateLimiter(rateStore, imw.RateLimitConfig{
		Requests: cfg.Limits.CreatePerMinute,
		Window:   time.Minute,
		KeyFunc:  imw.IPKeyFunc("create"),
	})
	confirmLimiter := imw.NewRateLimiter(rateStore, imw.RateLimitConfig{
		Requests: cfg.Limits.ConfirmPerMinute,
		Window:   time.Minute,
		KeyFunc: imw.ConfirmKeyFunc(func(r *http.Request) string {
			return chi.URLParam(r, "id")
		}),
	})

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Ticket-ID", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/tickets", func(r chi.Router) {
		r.With(createLimiter.Middleware()).Post("/", ticketHandler.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", ticketHandler.Get)
			r.Get("/subscribe", ticketHandler.Subscribe)
			r.Post("/consume", ticketHandler.Consume)

			r.With(
				confirmLimiter.Middleware(),
				imw.RequireJWT(cfg.Auth.JWTSecret),
			).Post("/confirm", ticketHandler.Confirm)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Info("Starting scanlogin service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("Shutting down scanlogin service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service error", "error", err)
		os.Exit(1)
	}
}
