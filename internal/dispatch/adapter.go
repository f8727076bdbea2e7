package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/client"
)

const DefaultSubject = "Automatic notification"

// Outcome is the result of one delivery attempt. Adapters never return
// errors; every failure ends up in ErrorDetail.
type Outcome struct {
	Success     bool
	ErrorDetail string
	RemoteID    string
}

func failed(detail string) Outcome {
	return Outcome{Success: false, ErrorDetail: detail}
}

type Adapter interface {
	Send(ctx context.Context, recipient string, subject *string, body string) Outcome
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

type Messenger interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

type EmailAdapter struct {
	mailer  Mailer
	timeout time.Duration
}

func NewEmailAdapter(m Mailer, timeout time.Duration) *EmailAdapter {
	return &EmailAdapter{mailer: m, timeout: timeout}
}

func (a *EmailAdapter) Send(ctx context.Context, recipient string, subject *string, body string) Outcome {
	subj := DefaultSubject
	if subject != nil && strings.TrimSpace(*subject) != "" {
		subj = *subject
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	id, err := a.mailer.Send(ctx, recipient, subj, body)
	if err != nil {
		slog.Warn("email send failed", "recipient", recipient, "err", err)
		return failed(describe("email", err))
	}

	slog.Info("email sent", "recipient", recipient, "message_id", id)
	return Outcome{Success: true, RemoteID: id}
}

type WhatsAppAdapter struct {
	messenger Messenger
	timeout   time.Duration
}

func NewWhatsAppAdapter(m Messenger, timeout time.Duration) *WhatsAppAdapter {
	return &WhatsAppAdapter{messenger: m, timeout: timeout}
}

// Send ignores subject; the messaging channel has no such field.
func (a *WhatsAppAdapter) Send(ctx context.Context, recipient string, _ *string, body string) Outcome {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	id, err := a.messenger.Send(ctx, recipient, body)
	if err != nil {
		slog.Warn("whatsapp send failed", "recipient", recipient, "err", err)
		return failed(describe("whatsapp", err))
	}

	slog.Info("whatsapp sent", "recipient", recipient, "message_id", id)
	return Outcome{Success: true, RemoteID: id}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 20 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func describe(channel string, err error) string {
	switch {
	case errors.Is(err, client.ErrNotConfigured):
		return fmt.Sprintf("%s adapter misconfigured: %v", channel, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s send timed out: %v", channel, err)
	}
	return err.Error()
}
