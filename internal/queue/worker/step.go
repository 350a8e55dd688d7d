package worker

import (
	"context"
	"errors"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/job"
	"github.com/devmalhar/ticketdesk/internal/jobs"
	"github.com/devmalhar/ticketdesk/internal/notifications"
)

// ProcessOne claims and runs a single job. The bool reports whether a job
// was actually claimed, so callers can keep draining while work remains.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.metrics.IncClaimed()
	started := time.Now()

	err = w.execute(ctx, j)
	w.metrics.ObserveDuration(time.Since(started))

	if err != nil {
		w.handleFailure(ctx, j, err)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		w.metrics.IncFailed()
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.metrics.IncDone()
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	if err := jobs.ValidatePayload(jobs.JobType(j.Type), payload); err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.UserSignupPayload:
		u, err := w.users.GetByID(ctx, p.UserID)

		if err != nil {
			return err
		}

		return w.notifier.SendWelcome(ctx, notifications.SendWelcomeInput{
			Email:  u.Email,
			Name:   u.Name,
			UserID: u.ID,
		})

	case jobs.TicketCreatedPayload:
		t, err := w.tickets.GetByID(ctx, p.TicketID)

		if err != nil {
			return err
		}

		u, err := w.users.GetByID(ctx, t.CreatedBy)

		if err != nil {
			return err
		}

		return w.notifier.SendTicketCreated(ctx, notifications.SendTicketCreatedInput{
			Email:       u.Email,
			Name:        u.Name,
			TicketID:    t.ID,
			TicketTitle: t.Title,
		})

	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) {
	// attempts counts completed tries; the claim we just burned is attempts+1
	nextAttempt := j.Attempts + 1

	if nextAttempt >= j.MaxAttempts {
		w.metrics.IncFailed()
		w.metrics.IncDeadLettered()
		w.log.Error("job dead-lettered",
			"job_id", j.ID, "type", j.Type, "attempts", nextAttempt, "error", cause)

		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			w.log.Error("mark failed", "job_id", j.ID, "error", err)
		}
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().UTC().Add(delay)

	w.metrics.IncRetried()
	w.log.Warn("job retry scheduled",
		"job_id", j.ID, "type", j.Type, "attempt", nextAttempt, "delay", delay, "error", cause)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error()); err != nil {
		w.log.Error("reschedule", "job_id", j.ID, "error", err)
	}
}
