package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/dispatch"
	"github.com/LeventeLantos/message-scheduler/internal/model"
	"github.com/LeventeLantos/message-scheduler/internal/repo"
)

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.ScheduleEntry
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[int64]model.ScheduleEntry{}}
}

func (r *memRepo) Create(_ context.Context, e *model.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.rows[e.ID] = *e
	return nil
}

func (r *memRepo) Get(_ context.Context, id int64) (model.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return model.ScheduleEntry{}, repo.ErrNotFound
	}
	return e, nil
}

func (r *memRepo) List(_ context.Context, f model.ScheduleFilter) ([]model.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ScheduleEntry
	for _, e := range r.rows {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.ContactID > 0 && e.ContactID != f.ContactID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out, nil
}

func (r *memRepo) ListActive(_ context.Context) ([]model.ScheduleEntry, error) {
	return r.filter(func(e model.ScheduleEntry) bool { return e.Status == model.Scheduled }), nil
}

func (r *memRepo) ListDue(_ context.Context, now time.Time) ([]model.ScheduleEntry, error) {
	return r.filter(func(e model.ScheduleEntry) bool {
		return e.Status == model.Scheduled && !e.ScheduledAt.After(now)
	}), nil
}

func (r *memRepo) filter(keep func(model.ScheduleEntry) bool) []model.ScheduleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ScheduleEntry
	for _, e := range r.rows {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func (r *memRepo) swap(id int64, apply func(*model.ScheduleEntry)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.Status != model.Scheduled {
		return false
	}
	apply(&e)
	r.rows[id] = e
	return true
}

func (r *memRepo) UpdatePending(_ context.Context, upd model.ScheduleEntry, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[upd.ID]
	if !ok || e.Status != model.Scheduled || !e.ScheduledAt.After(now) {
		return false, nil
	}
	e.Subject, e.Body, e.ScheduledAt = upd.Subject, upd.Body, upd.ScheduledAt
	r.rows[upd.ID] = e
	return true, nil
}

func (r *memRepo) MarkCanceled(_ context.Context, id int64) (bool, error) {
	return r.swap(id, func(e *model.ScheduleEntry) { e.Status = model.Canceled }), nil
}

func (r *memRepo) MarkSent(_ context.Context, id int64, at time.Time) (bool, error) {
	return r.swap(id, func(e *model.ScheduleEntry) {
		e.Status = model.Sent
		e.SentAt = &at
		e.ErrorDetail = nil
	}), nil
}

func (r *memRepo) MarkFailed(_ context.Context, id int64, reason string) (bool, error) {
	return r.swap(id, func(e *model.ScheduleEntry) {
		e.Status = model.Failed
		e.ErrorDetail = &reason
		e.SentAt = nil
	}), nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memContacts map[int64]model.Contact

func (m memContacts) GetContact(_ context.Context, id int64) (model.Contact, error) {
	c, ok := m[id]
	if !ok {
		return model.Contact{}, repo.ErrNotFound
	}
	return c, nil
}

type memHistory struct {
	mu   sync.Mutex
	recs []model.DispatchRecord
}

func (h *memHistory) Append(_ context.Context, rec *model.DispatchRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.ID = int64(len(h.recs) + 1)
	h.recs = append(h.recs, *rec)
	return nil
}

func (h *memHistory) List(_ context.Context, limit, offset int) ([]model.DispatchRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.DispatchRecord(nil), h.recs...), nil
}

type dispatchCall struct {
	Channel   model.Channel
	Recipient string
	Body      string
	Subject   *string
}

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []dispatchCall
	outcome func(dispatchCall) dispatch.Outcome
	before  func(dispatchCall)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ch model.Channel, recipient, body string, subject *string) dispatch.Outcome {
	c := dispatchCall{Channel: ch, Recipient: recipient, Body: body, Subject: subject}
	if f.before != nil {
		f.before(c)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if f.outcome != nil {
		return f.outcome(c)
	}
	return dispatch.Outcome{Success: true, RemoteID: "remote-" + recipient}
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingTrigger struct {
	mu  sync.Mutex
	ats []time.Time
}

func (t *recordingTrigger) ScheduleOnce(_ context.Context, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ats = append(t.ats, at)
	return nil
}
