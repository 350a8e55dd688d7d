package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/db"
	"github.com/devmalhar/ticketdesk/internal/notifications"
	"github.com/devmalhar/ticketdesk/internal/observability"
	"github.com/devmalhar/ticketdesk/internal/queue/worker"
	"github.com/devmalhar/ticketdesk/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	jobsRepo := postgres.NewJobsRepo(pool, nil)
	usersRepo := postgres.NewUsersRepo(pool, nil)
	ticketsRepo := postgres.NewTicketsRepo(pool, nil)

	notifier := notifications.NewProtectedNotifier(notifications.NewLogNotifier(), notifications.ProtectedNotifierConfig{})

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  200 * time.Millisecond,
		WorkerID:      workerID,
		Concurrency:   4,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, usersRepo, ticketsRepo, notifier, observability.NewJobMetrics(), log)

	// health endpoint on a side port
	go func() {
		srv := &http.Server{
			Addr:              ":9091",
			Handler:           w.HealthHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	log.Info("worker shutdown complete")
}
