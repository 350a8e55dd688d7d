package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // open duration before probing
	HalfOpenMaxCalls int           // concurrent probes allowed in half-open
}

func (cfg ProtectedNotifierConfig) withDefaults() ProtectedNotifierConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return cfg
}

// ProtectedNotifier wraps a Notifier with a per-send timeout and a circuit
// breaker, so a stuck mail backend cannot pile up worker goroutines.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig

	mu           sync.Mutex
	state        breakerState
	failures     int
	openedAt     time.Time
	probesActive int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg.withDefaults(),
	}
}

func (n *ProtectedNotifier) SendWelcome(ctx context.Context, input SendWelcomeInput) error {
	return n.send(ctx, func(sendCtx context.Context) error {
		return n.inner.SendWelcome(sendCtx, input)
	})
}

func (n *ProtectedNotifier) SendTicketCreated(ctx context.Context, input SendTicketCreatedInput) error {
	return n.send(ctx, func(sendCtx context.Context) error {
		return n.inner.SendTicketCreated(sendCtx, input)
	})
}

func (n *ProtectedNotifier) SendPasswordResetCode(ctx context.Context, email, name, code string) error {
	return n.send(ctx, func(sendCtx context.Context) error {
		return n.inner.SendPasswordResetCode(sendCtx, email, name, code)
	})
}

func (n *ProtectedNotifier) send(ctx context.Context, fn func(context.Context) error) error {
	if !n.admit() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	err := fn(sendCtx)
	cancel()

	n.record(err)
	return err
}

func (n *ProtectedNotifier) admit() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case stateOpen:
		if time.Since(n.openedAt) < n.cfg.Cooldown {
			return false
		}
		n.state = stateHalfOpen
		n.probesActive = 0
		fallthrough
	case stateHalfOpen:
		if n.probesActive >= n.cfg.HalfOpenMaxCalls {
			return false
		}
		n.probesActive++
		return true
	default:
		return true
	}
}

func (n *ProtectedNotifier) record(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateHalfOpen && n.probesActive > 0 {
		n.probesActive--
	}

	if err == nil {
		n.failures = 0
		n.state = stateClosed
		return
	}

	n.failures++

	// a failed probe reopens immediately; otherwise open on the threshold
	if n.state == stateHalfOpen || n.failures >= n.cfg.FailureThreshold {
		n.state = stateOpen
		n.openedAt = time.Now()
	}
}
