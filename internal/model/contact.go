package model

import (
	"strings"
	"time"
)

type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AddressFor returns the contact's destination for ch, or "" when it has none.
func (c Contact) AddressFor(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return strings.TrimSpace(c.Email)
	case ChannelWhatsApp:
		return strings.TrimSpace(c.Phone)
	}
	return ""
}

// DispatchRecord is the history row written for every immediate send.
type DispatchRecord struct {
	ID           int64     `json:"id"`
	ContactID    *int64    `json:"contact_id,omitempty"`
	Channel      Channel   `json:"channel"`
	Recipient    string    `json:"recipient"`
	Subject      *string   `json:"subject,omitempty"`
	Body         string    `json:"body"`
	Status       Status    `json:"status"`
	ErrorDetail  *string   `json:"error_detail,omitempty"`
	DispatchedAt time.Time `json:"dispatched_at"`
}
