package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

// SQLContactDirectory reads contacts owned by another part of the system.
type SQLContactDirectory struct {
	db *DB
}

func NewSQLContactDirectory(db *DB) *SQLContactDirectory {
	return &SQLContactDirectory{db: db}
}

func (d *SQLContactDirectory) GetContact(ctx context.Context, id int64) (model.Contact, error) {
	var c model.Contact
	var email, phone sql.NullString

	err := d.db.QueryRowContext(ctx, d.db.rebind(`
		SELECT id, name, email, phone
		FROM contacts
		WHERE id = ?
	`), id).Scan(&c.ID, &c.Name, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	if err != nil {
		return model.Contact{}, err
	}

	c.Email = email.String
	c.Phone = phone.String
	return c, nil
}
