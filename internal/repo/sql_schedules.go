package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

const scheduleColumns = `id, contact_id, channel, recipient, subject, body,
	scheduled_at, status, created_at, sent_at, error_detail`

type SQLScheduleRepo struct {
	db *DB
}

func NewSQLScheduleRepo(db *DB) *SQLScheduleRepo {
	return &SQLScheduleRepo{db: db}
}

func (r *SQLScheduleRepo) Create(ctx context.Context, e *model.ScheduleEntry) error {
	if e.Status == "" {
		e.Status = model.Scheduled
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.ScheduledAt = e.ScheduledAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()

	return r.db.QueryRowContext(ctx, r.db.rebind(`
		INSERT INTO scheduled_messages
			(contact_id, channel, recipient, subject, body, scheduled_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		e.ContactID,
		string(e.Channel),
		e.Recipient,
		nullString(e.Subject),
		e.Body,
		r.db.timeArg(e.ScheduledAt),
		string(e.Status),
		r.db.timeArg(e.CreatedAt),
	).Scan(&e.ID)
}

func (r *SQLScheduleRepo) Get(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE id = ?
	`), id)

	e, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduleEntry{}, ErrNotFound
	}
	return e, err
}

func (r *SQLScheduleRepo) List(ctx context.Context, f model.ScheduleFilter) ([]model.ScheduleEntry, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ContactID > 0 {
		where = append(where, "contact_id = ?")
		args = append(args, f.ContactID)
	}

	q := `SELECT ` + scheduleColumns + ` FROM scheduled_messages`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY scheduled_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return r.query(ctx, q, args...)
}

func (r *SQLScheduleRepo) ListActive(ctx context.Context) ([]model.ScheduleEntry, error) {
	return r.query(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE status = ?
		ORDER BY scheduled_at ASC, id ASC
	`, string(model.Scheduled))
}

func (r *SQLScheduleRepo) ListDue(ctx context.Context, now time.Time) ([]model.ScheduleEntry, error) {
	return r.query(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC
	`, string(model.Scheduled), r.db.timeArg(now))
}

// UpdatePending leaves due entries alone: a sweep may already be dispatching them.
func (r *SQLScheduleRepo) UpdatePending(ctx context.Context, e model.ScheduleEntry, now time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE scheduled_messages
		SET subject = ?, body = ?, scheduled_at = ?
		WHERE id = ? AND status = ? AND scheduled_at > ?
	`, nullString(e.Subject), e.Body, r.db.timeArg(e.ScheduledAt), e.ID, string(model.Scheduled), r.db.timeArg(now))
}

func (r *SQLScheduleRepo) MarkCanceled(ctx context.Context, id int64) (bool, error) {
	return r.exec(ctx, `
		UPDATE scheduled_messages
		SET status = ?
		WHERE id = ? AND status = ?
	`, string(model.Canceled), id, string(model.Scheduled))
}

func (r *SQLScheduleRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE scheduled_messages
		SET status = ?, sent_at = ?, error_detail = NULL
		WHERE id = ? AND status = ?
	`, string(model.Sent), r.db.timeArg(sentAt), id, string(model.Scheduled))
}

func (r *SQLScheduleRepo) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	return r.exec(ctx, `
		UPDATE scheduled_messages
		SET status = ?, error_detail = ?, sent_at = NULL
		WHERE id = ? AND status = ?
	`, string(model.Failed), reason, id, string(model.Scheduled))
}

func (r *SQLScheduleRepo) exec(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLScheduleRepo) query(ctx context.Context, q string, args ...any) ([]model.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleEntry
	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(s rowScanner) (model.ScheduleEntry, error) {
	var e model.ScheduleEntry
	var channel, status string
	var subject, errDetail sql.NullString
	var scheduledAt, createdAt, sentAt dbTime

	if err := s.Scan(
		&e.ID,
		&e.ContactID,
		&channel,
		&e.Recipient,
		&subject,
		&e.Body,
		&scheduledAt,
		&status,
		&createdAt,
		&sentAt,
		&errDetail,
	); err != nil {
		return model.ScheduleEntry{}, err
	}

	e.Channel = model.Channel(channel)
	e.Status = model.Status(status)
	e.Subject = stringPtr(subject)
	e.ErrorDetail = stringPtr(errDetail)
	e.ScheduledAt = scheduledAt.Time
	e.CreatedAt = createdAt.Time
	e.SentAt = sentAt.ptr()
	return e, nil
}
