package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/metrics"
)

// OnceRunner runs fn once at a requested time. A run that starts later than
// at+expiry is dropped; the periodic schedule picks the work up instead.
type OnceRunner struct {
	fn     func(context.Context)
	expiry time.Duration
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

func NewOnceRunner(expiry time.Duration, fn func(context.Context)) (*OnceRunner, error) {
	if expiry <= 0 {
		return nil, errors.New("expiry must be > 0")
	}
	if fn == nil {
		return nil, errors.New("fn must not be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &OnceRunner{
		fn:     fn,
		expiry: expiry,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		timers: map[int64]*time.Timer{},
	}, nil
}

func (o *OnceRunner) WithClock(now func() time.Time) *OnceRunner {
	if now != nil {
		o.now = now
	}
	return o
}

// ScheduleOnce arms a run for at. Requests falling in the same second share
// one run, fired at the end of that second so every one of them is due.
func (o *OnceRunner) ScheduleOnce(_ context.Context, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errors.New("once runner closed")
	}

	slot := slotFor(at)
	key := slot.Unix()
	if _, ok := o.timers[key]; ok {
		return nil
	}

	delay := slot.Sub(o.now())
	if delay < 0 {
		delay = 0
	}
	o.timers[key] = time.AfterFunc(delay, func() { o.fire(key, slot) })

	metrics.OnceTriggers.WithLabelValues("scheduled").Inc()
	slog.Debug("one-off sweep scheduled", "at", at, "slot", slot, "delay", delay)
	return nil
}

// slotFor rounds at up to the next whole second.
func slotFor(at time.Time) time.Time {
	slot := at.Truncate(time.Second)
	if slot.Before(at) {
		slot = slot.Add(time.Second)
	}
	return slot
}

func (o *OnceRunner) fire(key int64, slot time.Time) {
	o.mu.Lock()
	delete(o.timers, key)
	closed := o.closed
	o.mu.Unlock()

	if closed {
		return
	}
	if late := o.now().Sub(slot); late > o.expiry {
		metrics.OnceTriggers.WithLabelValues("expired").Inc()
		slog.Warn("one-off sweep expired", "slot", slot, "late", late)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("one-off sweep panic recovered", "panic", r)
		}
	}()

	metrics.OnceTriggers.WithLabelValues("fired").Inc()
	o.fn(o.ctx)
}

func (o *OnceRunner) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.timers)
}

// Close stops pending runs and cancels the context of any run in progress.
func (o *OnceRunner) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	for key, t := range o.timers {
		t.Stop()
		delete(o.timers, key)
	}
	o.cancel()
}
