package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/LeventeLantos/message-scheduler/internal/cache"
	"github.com/LeventeLantos/message-scheduler/internal/dispatch"
	"github.com/LeventeLantos/message-scheduler/internal/metrics"
	"github.com/LeventeLantos/message-scheduler/internal/model"
	"github.com/LeventeLantos/message-scheduler/internal/repo"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ch model.Channel, recipient, body string, subject *string) dispatch.Outcome
}

// Sweeper finds due schedules and dispatches each one once. Sweeps in one
// process never overlap.
type Sweeper struct {
	repo       repo.ScheduleRepository
	dispatcher Dispatcher
	cache      cache.DispatchCache
	workers    int
	limiter    *rate.Limiter
	now        func() time.Time

	mu sync.Mutex
}

func NewSweeper(r repo.ScheduleRepository, d Dispatcher) *Sweeper {
	return &Sweeper{
		repo:       r,
		dispatcher: d,
		cache:      cache.Nop{},
		workers:    1,
		now:        time.Now,
	}
}

func (s *Sweeper) WithCache(c cache.DispatchCache) *Sweeper {
	if c != nil {
		s.cache = c
	}
	return s
}

func (s *Sweeper) WithWorkers(n int) *Sweeper {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithRate paces dispatch starts; perSecond <= 0 means unlimited.
func (s *Sweeper) WithRate(perSecond float64) *Sweeper {
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	} else {
		s.limiter = nil
	}
	return s
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// Sweep dispatches every AGENDADO entry whose time has come and returns how
// many were attempted. Once ctx is done no new dispatch is started.
func (s *Sweeper) Sweep(ctx context.Context, trigger string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	cutoff := s.now().UTC()
	due, err := s.repo.ListDue(ctx, cutoff)
	if err != nil {
		slog.Error("sweep: list due failed", "trigger", trigger, "err", err)
		return 0, err
	}

	var attempted atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			if s.process(ctx, e, cutoff) {
				attempted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(attempted.Load())
	metrics.SweepsTotal.WithLabelValues(trigger).Inc()
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if len(due) > 0 || ctx.Err() != nil {
		slog.Info("sweep finished",
			"trigger", trigger,
			"due", len(due),
			"attempted", n,
			"interrupted", ctx.Err() != nil,
			"duration", time.Since(start),
		)
	}
	return n, nil
}

// process dispatches one entry and stores its result right away. It reports
// false when the entry was skipped.
func (s *Sweeper) process(ctx context.Context, listed model.ScheduleEntry, cutoff time.Time) bool {
	claimed, err := s.cache.Claim(ctx, listed.ID)
	switch {
	case err != nil:
		slog.Warn("sweep: claim failed, dispatching anyway", "id", listed.ID, "err", err)
	case !claimed:
		slog.Info("sweep: entry claimed by another sweeper", "id", listed.ID)
		return false
	}

	// In-flight work finishes and is recorded even if the sweep is interrupted.
	dctx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.cache.Release(dctx, listed.ID); err != nil {
			slog.Warn("sweep: release claim failed", "id", listed.ID, "err", err)
		}
	}()

	// The due list may be stale: another sweeper can have finished this entry
	// between our listing and our claim.
	e, err := s.repo.Get(ctx, listed.ID)
	if err != nil {
		slog.Warn("sweep: reload failed, skipping", "id", listed.ID, "err", err)
		return false
	}
	if e.Status != model.Scheduled || e.ScheduledAt.After(cutoff) {
		slog.Info("sweep: entry no longer due", "id", e.ID, "status", e.Status)
		return false
	}

	out := s.dispatcher.Dispatch(dctx, e.Channel, e.Recipient, e.Body, e.Subject)
	now := s.now().UTC()

	var changed bool
	if out.Success {
		changed, err = s.repo.MarkSent(dctx, e.ID, now)
	} else {
		changed, err = s.repo.MarkFailed(dctx, e.ID, out.ErrorDetail)
	}

	switch {
	case err != nil:
		slog.Error("sweep: storing result failed", "id", e.ID, "success", out.Success, "err", err)
	case !changed:
		metrics.SweepConflicts.Inc()
		slog.Warn("sweep: entry left AGENDADO while being dispatched", "id", e.ID, "success", out.Success)
	case out.Success:
		slog.Info("sweep: entry sent", "id", e.ID, "channel", e.Channel)
		if err := s.cache.StoreSent(dctx, e, out.RemoteID, now); err != nil {
			slog.Warn("sweep: cache store failed", "id", e.ID, "err", err)
		}
	default:
		slog.Warn("sweep: entry failed", "id", e.ID, "channel", e.Channel, "detail", out.ErrorDetail)
	}
	return true
}
