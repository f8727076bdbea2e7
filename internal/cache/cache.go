package cache

import (
	"context"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

// DispatchCache records sent schedules and guards entries against being
// dispatched by two sweepers at once.
type DispatchCache interface {
	// Claim returns false when another sweeper already holds the entry.
	Claim(ctx context.Context, scheduleID int64) (bool, error)
	Release(ctx context.Context, scheduleID int64) error
	StoreSent(ctx context.Context, e model.ScheduleEntry, remoteID string, sentAt time.Time) error
}

// Nop is used when Redis is not configured: every claim succeeds and nothing
// is recorded.
type Nop struct{}

func (Nop) Claim(context.Context, int64) (bool, error) { return true, nil }

func (Nop) Release(context.Context, int64) error { return nil }

func (Nop) StoreSent(context.Context, model.ScheduleEntry, string, time.Time) error { return nil }
