package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next activation after t. cron.Schedule satisfies it.
type Schedule interface {
	Next(t time.Time) time.Time
}

type every struct {
	d time.Duration
}

func (e every) Next(t time.Time) time.Time {
	return t.Add(e.d)
}

var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec accepts a Go duration ("90s", "5m") or a cron expression
// ("*/5 * * * *", "@hourly", "@every 1m").
func ParseSpec(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("schedule required")
	}

	if !strings.ContainsAny(s, " \t") && !strings.HasPrefix(s, "@") {
		d, err := time.ParseDuration(s)
		if err == nil {
			if d <= 0 {
				return nil, fmt.Errorf("interval must be > 0")
			}
			return every{d: d}, nil
		}
	}

	sched, err := specParser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *' or duration like '1m'): %w", raw, err)
	}
	return sched, nil
}
