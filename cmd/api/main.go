package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devmalhar/ticketdesk/internal/auth"
	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/db"
	httpx "github.com/devmalhar/ticketdesk/internal/http"
	"github.com/devmalhar/ticketdesk/internal/notifications"
	"github.com/devmalhar/ticketdesk/internal/observability"
	"github.com/devmalhar/ticketdesk/internal/otp"
	"github.com/devmalhar/ticketdesk/internal/queue/redisclient"
	"github.com/devmalhar/ticketdesk/internal/ratelimit"
	"github.com/devmalhar/ticketdesk/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	// tracing is opt-in via OTLP_ENDPOINT
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "ticketdesk-api", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	seedCtx, cancelSeed := config.WithTimeout(5 * time.Second)

	if err := db.EnsureAdminUser(seedCtx, pool, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	}
	cancelSeed()

	// metrics

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(registry)

	// repos

	usersRepo := postgres.NewUsersRepo(pool, prom)
	ticketsRepo := postgres.NewTicketsRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	// redis backs the reset limiter and the readiness probe

	redisClient := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	resetLimiter := ratelimit.New(redisClient.Raw(), ratelimit.Config{
		MaxRequests: 5,
		Window:      15 * time.Minute,
	})

	mailer := notifications.NewProtectedNotifier(notifications.NewLogNotifier(), notifications.ProtectedNotifierConfig{})

	resetSvc := otp.NewService(otp.Config{
		CodeTTL: cfg.OTPCodeTTL(),
		Grace:   cfg.OTPGrace(),
	}, usersRepo, mailer, log)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	router := httpx.NewRouter(httpx.Deps{
		Cfg:          cfg,
		JWT:          jwtManager,
		Users:        usersRepo,
		Tickets:      ticketsRepo,
		Jobs:         jobsRepo,
		Reset:        resetSvc,
		ResetLimiter: resetLimiter,
		Prom:         prom,
		PromRegistry: registry,
		DBPing:       pool.Ping,
		RedisPing:    redisClient.Ping,
		CORSOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
