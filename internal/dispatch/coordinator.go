package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/metrics"
	"github.com/LeventeLantos/message-scheduler/internal/model"
)

const UnsupportedChannel = "unsupported channel"

// Coordinator routes a message to the adapter for its channel and makes
// exactly one attempt.
type Coordinator struct {
	email    Adapter
	whatsapp Adapter
}

func NewCoordinator(email, whatsapp Adapter) *Coordinator {
	return &Coordinator{email: email, whatsapp: whatsapp}
}

func (c *Coordinator) Dispatch(ctx context.Context, ch model.Channel, recipient, body string, subject *string) (out Outcome) {
	var adapter Adapter
	switch ch {
	case model.ChannelEmail:
		adapter = c.email
	case model.ChannelWhatsApp:
		adapter = c.whatsapp
	default:
		return failed(UnsupportedChannel)
	}
	if adapter == nil {
		return failed(fmt.Sprintf("no adapter configured for channel %s", ch))
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panic recovered", "channel", ch, "panic", r)
			out = failed(fmt.Sprintf("adapter panic: %v", r))
		}

		result := "sent"
		if !out.Success {
			result = "failed"
			if out.ErrorDetail == "" {
				out.ErrorDetail = "delivery failed"
			}
		}
		metrics.DispatchTotal.WithLabelValues(string(ch), result).Inc()
		metrics.DispatchDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
	}()

	return adapter.Send(ctx, recipient, subject, body)
}
