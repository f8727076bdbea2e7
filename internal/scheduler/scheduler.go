package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs tickFn on a fixed interval or cron schedule, once
// immediately on Start and then at every activation.
type Scheduler struct {
	schedule Schedule
	desc     string
	tickFn   func(context.Context)

	running atomic.Bool
	lastRun atomic.Int64
	nextRun atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Status struct {
	Running  bool       `json:"running"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

func New(interval time.Duration, tickFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	return newScheduler(every{d: interval}, "every "+interval.String(), tickFn)
}

// NewFromSpec uses spec when set and falls back to interval otherwise.
func NewFromSpec(spec string, interval time.Duration, tickFn func(context.Context)) (*Scheduler, error) {
	if spec == "" {
		return New(interval, tickFn)
	}
	sched, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	return newScheduler(sched, spec, tickFn)
}

func newScheduler(sched Schedule, desc string, tickFn func(context.Context)) (*Scheduler, error) {
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		schedule: sched,
		desc:     desc,
		tickFn:   tickFn,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		slog.Info("scheduler started", "schedule", s.desc)

		s.safeTick(ctx)

		timer := time.NewTimer(s.untilNext())
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("scheduler stopping")
				s.nextRun.Store(0)
				return
			case <-timer.C:
				s.safeTick(ctx)
				timer.Reset(s.untilNext())
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:  s.running.Load(),
		Schedule: s.desc,
	}
	if v := s.lastRun.Load(); v != 0 {
		t := time.Unix(0, v).UTC()
		st.LastRun = &t
	}
	if v := s.nextRun.Load(); v != 0 && st.Running {
		t := time.Unix(0, v).UTC()
		st.NextRun = &t
	}
	return st
}

func (s *Scheduler) untilNext() time.Duration {
	now := time.Now()
	next := s.schedule.Next(now)
	if next.IsZero() {
		// cron schedules that can never fire again
		next = now.Add(24 * time.Hour)
	}
	s.nextRun.Store(next.UnixNano())

	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	s.lastRun.Store(start.UnixNano())
	s.tickFn(ctx)
	slog.Debug("scheduler tick completed", "duration_ms", time.Since(start).Milliseconds())
}
