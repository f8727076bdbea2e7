package model

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// ParseChannel accepts the channel tokens case-insensitively.
func ParseChannel(raw string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail, true
	case ChannelWhatsApp:
		return ChannelWhatsApp, true
	}
	return "", false
}

// Status values are persisted and transmitted as these literal tokens.
type Status string

const (
	Scheduled Status = "AGENDADO"
	Sent      Status = "ENVIADO"
	Canceled  Status = "CANCELADO"
	Failed    Status = "ERRO"
)

// ParseStatus accepts both the stored tokens and their English names.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(Scheduled), "SCHEDULED":
		return Scheduled, true
	case string(Sent), "SENT":
		return Sent, true
	case string(Canceled), "CANCELED", "CANCELLED":
		return Canceled, true
	case string(Failed), "FAILED":
		return Failed, true
	}
	return "", false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == Sent || s == Canceled || s == Failed
}

type ScheduleEntry struct {
	ID          int64      `json:"id"`
	ContactID   int64      `json:"contact_id"`
	Channel     Channel    `json:"channel"`
	Recipient   string     `json:"recipient"`
	Subject     *string    `json:"subject,omitempty"`
	Body        string     `json:"body"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ErrorDetail *string    `json:"error_detail,omitempty"`
}

// ScheduleFilter narrows List. Zero values mean "any".
type ScheduleFilter struct {
	Status    Status
	ContactID int64
	Limit     int
	Offset    int
}

// SchedulePatch holds the fields an update may change; nil fields are left untouched.
type SchedulePatch struct {
	Subject     *string
	Body        *string
	ScheduledAt *time.Time
}

func (p SchedulePatch) Apply(e *ScheduleEntry) {
	if p.Subject != nil {
		s := *p.Subject
		e.Subject = &s
	}
	if p.Body != nil {
		e.Body = *p.Body
	}
	if p.ScheduledAt != nil {
		e.ScheduledAt = p.ScheduledAt.UTC()
	}
}
