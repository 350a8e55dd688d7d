package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/job"
	"github.com/devmalhar/ticketdesk/internal/domain/ticket"
	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/jobs"
	"github.com/devmalhar/ticketdesk/internal/notifications"
)

type fakeJobsRepo struct {
	claimFn      func(ctx context.Context, workerID string) (job.Job, error)
	doneIDs      []string
	failed       map[string]string
	rescheduled  map[string]time.Time
	requeueCount int64
}

func newFakeJobsRepo() *fakeJobsRepo {
	return &fakeJobsRepo{
		failed:      map[string]string{},
		rescheduled: map[string]time.Time{},
	}
}

func (f *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, workerID)
	}
	return job.Job{}, job.ErrJobNotFound
}

func (f *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	f.doneIDs = append(f.doneIDs, id)
	return nil
}

func (f *fakeJobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	f.rescheduled[id] = runAt
	return nil
}

func (f *fakeJobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	return f.requeueCount, nil
}

type fakeUsersRepo struct {
	users map[string]user.User
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

type fakeTicketsRepo struct {
	tickets map[string]ticket.Ticket
}

func (f *fakeTicketsRepo) GetByID(ctx context.Context, id string) (ticket.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return ticket.Ticket{}, ticket.ErrNotFound
	}
	return t, nil
}

type fakeNotifier struct {
	welcomes []notifications.SendWelcomeInput
	created  []notifications.SendTicketCreatedInput
	sendErr  error
}

func (f *fakeNotifier) SendWelcome(ctx context.Context, input notifications.SendWelcomeInput) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.welcomes = append(f.welcomes, input)
	return nil
}

func (f *fakeNotifier) SendTicketCreated(ctx context.Context, input notifications.SendTicketCreatedInput) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.created = append(f.created, input)
	return nil
}

func (f *fakeNotifier) SendPasswordResetCode(ctx context.Context, email, name, code string) error {
	return f.sendErr
}

func signupJob(t *testing.T, userID string, attempts, maxAttempts int) job.Job {
	t.Helper()

	payload, err := jobs.EncodePayload(jobs.JobUserSignup, jobs.UserSignupPayload{
		UserID:      userID,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	j := job.New(job.CreateRequest{Type: string(jobs.JobUserSignup), Payload: payload, MaxAttempts: maxAttempts})
	j.Attempts = attempts
	return j
}

func newTestWorker(repo *fakeJobsRepo, notifier *fakeNotifier) *Worker {
	users := &fakeUsersRepo{users: map[string]user.User{
		"u1": {ID: "u1", Email: "u1@example.com", Name: "User One"},
	}}
	tickets := &fakeTicketsRepo{tickets: map[string]ticket.Ticket{
		"t1": {ID: "t1", Title: "Broken laptop", CreatedBy: "u1"},
	}}

	return New(Config{WorkerID: "test-worker"}, repo, users, tickets, notifier, nil, nil)
}

func TestProcessOneEmptyQueue(t *testing.T) {
	repo := newFakeJobsRepo()
	w := newTestWorker(repo, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatal("reported work on an empty queue")
	}
}

func TestProcessOneSignupSuccess(t *testing.T) {
	repo := newFakeJobsRepo()
	j := signupJob(t, "u1", 0, 5)

	claimed := false
	repo.claimFn = func(ctx context.Context, workerID string) (job.Job, error) {
		if claimed {
			return job.Job{}, job.ErrJobNotFound
		}
		claimed = true
		return j, nil
	}

	notifier := &fakeNotifier{}
	w := newTestWorker(repo, notifier)

	processed, err := w.ProcessOne(context.Background())

	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	if len(notifier.welcomes) != 1 || notifier.welcomes[0].Email != "u1@example.com" {
		t.Fatalf("welcome sends: %+v", notifier.welcomes)
	}
	if len(repo.doneIDs) != 1 || repo.doneIDs[0] != j.ID {
		t.Fatalf("done ids: %v", repo.doneIDs)
	}
}

func TestProcessOneFailureReschedules(t *testing.T) {
	repo := newFakeJobsRepo()
	j := signupJob(t, "u1", 0, 5)

	repo.claimFn = func(ctx context.Context, workerID string) (job.Job, error) {
		return j, nil
	}

	notifier := &fakeNotifier{sendErr: errors.New("smtp down")}
	w := newTestWorker(repo, notifier)

	processed, err := w.ProcessOne(context.Background())

	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	runAt, ok := repo.rescheduled[j.ID]
	if !ok {
		t.Fatal("job not rescheduled after a transient failure")
	}
	if !runAt.After(time.Now().UTC()) {
		t.Fatal("reschedule time not in the future")
	}
	if len(repo.failed) != 0 {
		t.Fatal("transient failure went straight to failed")
	}
}

func TestProcessOneDeadLettersAtMaxAttempts(t *testing.T) {
	repo := newFakeJobsRepo()
	j := signupJob(t, "u1", 4, 5) // this claim is the fifth and final try

	repo.claimFn = func(ctx context.Context, workerID string) (job.Job, error) {
		return j, nil
	}

	notifier := &fakeNotifier{sendErr: errors.New("smtp down")}
	w := newTestWorker(repo, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := repo.failed[j.ID]; !ok {
		t.Fatal("exhausted job was not marked failed")
	}
	if len(repo.rescheduled) != 0 {
		t.Fatal("exhausted job was rescheduled")
	}
}

func TestProcessOneBadPayloadFails(t *testing.T) {
	repo := newFakeJobsRepo()
	j := job.New(job.CreateRequest{Type: "no.such.job", Payload: []byte(`{}`), MaxAttempts: 1})

	repo.claimFn = func(ctx context.Context, workerID string) (job.Job, error) {
		return j, nil
	}

	w := newTestWorker(repo, &fakeNotifier{})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := repo.failed[j.ID]; !ok {
		t.Fatal("undecodable job not dead-lettered")
	}
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	prev := time.Duration(0)

	for attempt := 0; attempt < 6; attempt++ {
		d := ExponentialBackoff(attempt)

		if d < prev {
			t.Fatalf("backoff shrank at attempt %d: %v < %v", attempt, d, prev)
		}
		prev = d
	}

	if d := ExponentialBackoff(30); d > 5*time.Minute+time.Second {
		t.Fatalf("backoff exceeds cap: %v", d)
	}
}
