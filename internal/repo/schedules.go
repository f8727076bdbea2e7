package repo

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

var ErrNotFound = errors.New("not found")

// ScheduleRepository is the durable schedule store. Every status-changing
// method only writes while the entry is still AGENDADO and reports whether it
// did.
type ScheduleRepository interface {
	Create(ctx context.Context, e *model.ScheduleEntry) error
	Get(ctx context.Context, id int64) (model.ScheduleEntry, error)
	List(ctx context.Context, f model.ScheduleFilter) ([]model.ScheduleEntry, error)
	ListActive(ctx context.Context) ([]model.ScheduleEntry, error)
	ListDue(ctx context.Context, now time.Time) ([]model.ScheduleEntry, error)

	// UpdatePending rewrites an entry that is AGENDADO and not yet due at now.
	UpdatePending(ctx context.Context, e model.ScheduleEntry, now time.Time) (bool, error)
	MarkCanceled(ctx context.Context, id int64) (bool, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
}

type ContactDirectory interface {
	GetContact(ctx context.Context, id int64) (model.Contact, error)
}

type DispatchLog interface {
	Append(ctx context.Context, r *model.DispatchRecord) error
	List(ctx context.Context, limit, offset int) ([]model.DispatchRecord, error)
}
