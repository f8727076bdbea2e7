package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

type SQLDispatchLog struct {
	db *DB
}

func NewSQLDispatchLog(db *DB) *SQLDispatchLog {
	return &SQLDispatchLog{db: db}
}

func (l *SQLDispatchLog) Append(ctx context.Context, rec *model.DispatchRecord) error {
	if rec.DispatchedAt.IsZero() {
		rec.DispatchedAt = time.Now().UTC()
	}
	var contactID any
	if rec.ContactID != nil {
		contactID = *rec.ContactID
	}

	return l.db.QueryRowContext(ctx, l.db.rebind(`
		INSERT INTO dispatch_history
			(contact_id, channel, recipient, subject, body, status, error_detail, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		contactID,
		string(rec.Channel),
		rec.Recipient,
		nullString(rec.Subject),
		rec.Body,
		string(rec.Status),
		nullString(rec.ErrorDetail),
		l.db.timeArg(rec.DispatchedAt),
	).Scan(&rec.ID)
}

func (l *SQLDispatchLog) List(ctx context.Context, limit, offset int) ([]model.DispatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := l.db.QueryContext(ctx, l.db.rebind(`
		SELECT id, contact_id, channel, recipient, subject, body, status, error_detail, dispatched_at
		FROM dispatch_history
		ORDER BY dispatched_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DispatchRecord
	for rows.Next() {
		var rec model.DispatchRecord
		var contactID sql.NullInt64
		var channel, status string
		var subject, errDetail sql.NullString
		var at dbTime

		if err := rows.Scan(
			&rec.ID,
			&contactID,
			&channel,
			&rec.Recipient,
			&subject,
			&rec.Body,
			&status,
			&errDetail,
			&at,
		); err != nil {
			return nil, err
		}

		if contactID.Valid {
			id := contactID.Int64
			rec.ContactID = &id
		}
		rec.Channel = model.Channel(channel)
		rec.Status = model.Status(status)
		rec.Subject = stringPtr(subject)
		rec.ErrorDetail = stringPtr(errDetail)
		rec.DispatchedAt = at.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}
