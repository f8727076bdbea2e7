package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LeventeLantos/message-scheduler/internal/model"
	"github.com/LeventeLantos/message-scheduler/internal/repo"
)

// Trigger requests a one-off sweep at a given time.
type Trigger interface {
	ScheduleOnce(ctx context.Context, at time.Time) error
}

type CreateInput struct {
	Channel     string
	ContactID   int64
	Subject     *string
	Body        string
	ScheduledAt time.Time
}

type SendInput struct {
	Channel   string
	ContactID int64
	Subject   *string
	Body      string
}

type ScheduleService struct {
	schedules  repo.ScheduleRepository
	contacts   repo.ContactDirectory
	history    repo.DispatchLog
	dispatcher Dispatcher
	sweeper    *Sweeper
	bodyMax    int

	trigger  Trigger
	expedite time.Duration

	now func() time.Time
}

func NewScheduleService(
	schedules repo.ScheduleRepository,
	contacts repo.ContactDirectory,
	history repo.DispatchLog,
	dispatcher Dispatcher,
	sweeper *Sweeper,
	bodyMax int,
) *ScheduleService {
	if bodyMax <= 0 {
		bodyMax = 2000
	}
	return &ScheduleService{
		schedules:  schedules,
		contacts:   contacts,
		history:    history,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		bodyMax:    bodyMax,
		now:        time.Now,
	}
}

// WithTrigger asks t for a one-off sweep whenever an entry is due within window.
func (s *ScheduleService) WithTrigger(t Trigger, window time.Duration) *ScheduleService {
	s.trigger = t
	s.expedite = window
	return s
}

func (s *ScheduleService) WithClock(now func() time.Time) *ScheduleService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *ScheduleService) Create(ctx context.Context, in CreateInput) (model.ScheduleEntry, error) {
	ch, recipient, err := s.resolveRecipient(ctx, in.Channel, in.ContactID)
	if err != nil {
		return model.ScheduleEntry{}, err
	}

	now := s.now().UTC()
	if !in.ScheduledAt.After(now) {
		return model.ScheduleEntry{}, ErrPastSchedule
	}
	if err := s.validateBody(in.Body); err != nil {
		return model.ScheduleEntry{}, err
	}

	e := model.ScheduleEntry{
		ContactID:   in.ContactID,
		Channel:     ch,
		Recipient:   recipient,
		Subject:     normalizeSubject(in.Subject),
		Body:        in.Body,
		ScheduledAt: in.ScheduledAt.UTC(),
		Status:      model.Scheduled,
		CreatedAt:   now,
	}
	if err := s.schedules.Create(ctx, &e); err != nil {
		return model.ScheduleEntry{}, fmt.Errorf("create schedule: %w", err)
	}

	slog.Info("schedule created", "id", e.ID, "channel", e.Channel, "scheduled_at", e.ScheduledAt)
	s.expediteIfNear(ctx, e)
	return e, nil
}

func (s *ScheduleService) Get(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	e, err := s.schedules.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.ScheduleEntry{}, fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return e, err
}

// List returns entries newest scheduled_at first. An empty page is not an error.
func (s *ScheduleService) List(ctx context.Context, f model.ScheduleFilter) ([]model.ScheduleEntry, error) {
	out, err := s.schedules.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ScheduleEntry{}
	}
	return out, nil
}

func (s *ScheduleService) ListActive(ctx context.Context) ([]model.ScheduleEntry, error) {
	out, err := s.schedules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ScheduleEntry{}
	}
	return out, nil
}

func (s *ScheduleService) Update(ctx context.Context, id int64, p model.SchedulePatch) (model.ScheduleEntry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if e.Status != model.Scheduled {
		return model.ScheduleEntry{}, fmt.Errorf("schedule %d is %s: %w", id, e.Status, ErrInvalidState)
	}
	now := s.now().UTC()
	if !e.ScheduledAt.After(now) {
		return model.ScheduleEntry{}, fmt.Errorf("schedule %d is already due: %w", id, ErrInvalidState)
	}
	if p.ScheduledAt != nil && !p.ScheduledAt.After(now) {
		return model.ScheduleEntry{}, ErrPastSchedule
	}
	if p.Body != nil {
		if err := s.validateBody(*p.Body); err != nil {
			return model.ScheduleEntry{}, err
		}
	}

	p.Apply(&e)
	e.Subject = normalizeSubject(e.Subject)

	ok, err := s.schedules.UpdatePending(ctx, e, now)
	if err != nil {
		return model.ScheduleEntry{}, fmt.Errorf("update schedule: %w", err)
	}
	if !ok {
		return model.ScheduleEntry{}, fmt.Errorf("schedule %d changed concurrently: %w", id, ErrInvalidState)
	}

	slog.Info("schedule updated", "id", e.ID, "scheduled_at", e.ScheduledAt)
	if p.ScheduledAt != nil {
		s.expediteIfNear(ctx, e)
	}
	return e, nil
}

func (s *ScheduleService) Cancel(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if e.Status != model.Scheduled {
		return model.ScheduleEntry{}, fmt.Errorf("schedule %d is %s: %w", id, e.Status, ErrInvalidState)
	}

	ok, err := s.schedules.MarkCanceled(ctx, id)
	if err != nil {
		return model.ScheduleEntry{}, fmt.Errorf("cancel schedule: %w", err)
	}
	if !ok {
		return model.ScheduleEntry{}, fmt.Errorf("schedule %d changed concurrently: %w", id, ErrInvalidState)
	}

	e.Status = model.Canceled
	slog.Info("schedule canceled", "id", id)
	return e, nil
}

// Sweep runs a sweep now and returns the number of attempted entries.
func (s *ScheduleService) Sweep(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx, "manual")
}

// SendNow dispatches immediately without creating a schedule and records the
// attempt in the dispatch history.
func (s *ScheduleService) SendNow(ctx context.Context, in SendInput) (model.DispatchRecord, error) {
	ch, recipient, err := s.resolveRecipient(ctx, in.Channel, in.ContactID)
	if err != nil {
		return model.DispatchRecord{}, err
	}
	if err := s.validateBody(in.Body); err != nil {
		return model.DispatchRecord{}, err
	}

	subject := normalizeSubject(in.Subject)
	out := s.dispatcher.Dispatch(ctx, ch, recipient, in.Body, subject)

	contactID := in.ContactID
	rec := model.DispatchRecord{
		ContactID:    &contactID,
		Channel:      ch,
		Recipient:    recipient,
		Subject:      subject,
		Body:         in.Body,
		Status:       model.Sent,
		DispatchedAt: s.now().UTC(),
	}
	if !out.Success {
		detail := out.ErrorDetail
		rec.Status = model.Failed
		rec.ErrorDetail = &detail
	}

	if s.history != nil {
		if err := s.history.Append(context.WithoutCancel(ctx), &rec); err != nil {
			slog.Error("dispatch history append failed", "channel", ch, "err", err)
		}
	}

	if !out.Success {
		return rec, &DispatchError{Channel: ch, Detail: out.ErrorDetail}
	}
	return rec, nil
}

func (s *ScheduleService) History(ctx context.Context, limit, offset int) ([]model.DispatchRecord, error) {
	if s.history == nil {
		return []model.DispatchRecord{}, nil
	}
	out, err := s.history.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.DispatchRecord{}
	}
	return out, nil
}

// resolveRecipient freezes the contact's current address for the channel.
func (s *ScheduleService) resolveRecipient(ctx context.Context, rawChannel string, contactID int64) (model.Channel, string, error) {
	c, err := s.contacts.GetContact(ctx, contactID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", "", fmt.Errorf("contact %d: %w", contactID, ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("get contact: %w", err)
	}

	ch, ok := model.ParseChannel(rawChannel)
	if !ok {
		return "", "", ErrInvalidChannel
	}

	addr := c.AddressFor(ch)
	if addr == "" {
		return "", "", fmt.Errorf("contact %d has no %s address: %w", contactID, ch, ErrMissingRecipientAddress)
	}
	return ch, addr, nil
}

func (s *ScheduleService) validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidBody)
	}
	if n := utf8.RuneCountInString(body); n > s.bodyMax {
		return fmt.Errorf("%w: body exceeds %d characters (%d)", ErrInvalidBody, s.bodyMax, n)
	}
	return nil
}

func (s *ScheduleService) expediteIfNear(ctx context.Context, e model.ScheduleEntry) {
	if s.trigger == nil || s.expedite <= 0 {
		return
	}
	if e.ScheduledAt.Sub(s.now()) > s.expedite {
		return
	}
	if err := s.trigger.ScheduleOnce(ctx, e.ScheduledAt); err != nil {
		slog.Warn("one-off sweep request failed", "id", e.ID, "at", e.ScheduledAt, "err", err)
	}
}

func normalizeSubject(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
