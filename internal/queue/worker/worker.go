package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/job"
	"github.com/devmalhar/ticketdesk/internal/domain/ticket"
	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/notifications"
	"github.com/devmalhar/ticketdesk/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type UsersRepository interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TicketsRepository interface {
	GetByID(ctx context.Context, id string) (ticket.Ticket, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	users    UsersRepository
	tickets  TicketsRepository
	notifier notifications.Notifier
	metrics  *observability.JobMetrics
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(
	cfg Config,
	repo JobsRepository,
	users UsersRepository,
	tickets TicketsRepository,
	notifier notifications.Notifier,
	metrics *observability.JobMetrics,
	log *slog.Logger,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 60 * time.Second
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		users:    users,
		tickets:  tickets,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
	}
}

func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run polls for jobs with Concurrency goroutines until ctx is cancelled,
// then waits up to ShutdownGrace for in-flight jobs to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// one janitor loop requeues jobs whose lock went stale
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.janitorLoop(runCtx)
	}()

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.pollLoop(runCtx, slot)
		}(i)
	}

	<-ctx.Done()
	w.log.Info("worker received shutdown signal")
	w.setReady(false)
	cancel()

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("shutdown grace elapsed, abandoning in-flight jobs")
		return nil
	}
}

func (w *Worker) pollLoop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// drain until the queue comes back empty
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					w.log.Error("process job", "slot", slot, "error", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)

			if err != nil {
				if ctx.Err() == nil {
					w.log.Error("requeue stale jobs", "error", err)
				}
				continue
			}
			if n > 0 {
				w.log.Warn("requeued stale processing jobs", "count", n)
			}
		}
	}
}
