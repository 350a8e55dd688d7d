package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics is the worker's lock-free in-process view of job outcomes,
// served from the worker's stats endpoint. Durations are tracked in
// nanoseconds.
type JobMetrics struct {
	claimed      atomic.Uint64
	done         atomic.Uint64
	failed       atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64

	durCount atomic.Uint64
	durTotal atomic.Int64
	durMax   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed()      { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()         { m.done.Add(1) }
func (m *JobMetrics) IncFailed()       { m.failed.Add(1) }
func (m *JobMetrics) IncRetried()      { m.retried.Add(1) }
func (m *JobMetrics) IncDeadLettered() { m.deadLettered.Add(1) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durCount.Add(1)
	m.durTotal.Add(ns)

	for {
		max := m.durMax.Load()
		if ns <= max || m.durMax.CompareAndSwap(max, ns) {
			return
		}
	}
}

// JobStats is a point-in-time copy of the counters. failed counts every job
// that ended in the failed state; deadLettered is the subset that exhausted
// its attempts.
type JobStats struct {
	Claimed         uint64
	Done            uint64
	Failed          uint64
	Retried         uint64
	DeadLettered    uint64
	DurationCount   uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
}

func (m *JobMetrics) Snapshot() JobStats {
	s := JobStats{
		Claimed:       m.claimed.Load(),
		Done:          m.done.Load(),
		Failed:        m.failed.Load(),
		Retried:       m.retried.Load(),
		DeadLettered:  m.deadLettered.Load(),
		DurationCount: m.durCount.Load(),
		MaxDuration:   time.Duration(m.durMax.Load()),
	}

	if s.DurationCount > 0 {
		s.AverageDuration = time.Duration(m.durTotal.Load() / int64(s.DurationCount))
	}

	return s
}
