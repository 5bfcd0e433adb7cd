// Package schedule parses the maintenance schedules in the config: cron
// expressions (including gronx tags such as @hourly) and fixed intervals
// written as "@every <duration>".
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

const (
	KindCron     = "cron"
	KindInterval = "interval"
)

type Schedule struct {
	Kind     string
	CronExpr string        // if Kind == cron
	Interval time.Duration // if Kind == interval
}

func Parse(raw string) (*Schedule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	if rest, ok := strings.CutPrefix(raw, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive")
		}
		return &Schedule{Kind: KindInterval, Interval: d}, nil
	}

	if !gronx.New().IsValid(raw) {
		return nil, fmt.Errorf("invalid cron expression: %s", raw)
	}
	return &Schedule{Kind: KindCron, CronExpr: raw}, nil
}

// Next returns the first run strictly after now.
func (s *Schedule) Next(now time.Time) (time.Time, error) {
	switch s.Kind {
	case KindInterval:
		return now.Add(s.Interval), nil
	case KindCron:
		next, err := gronx.NextTickAfter(s.CronExpr, now, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("next tick for %q: %w", s.CronExpr, err)
		}
		return next, nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}
}

// String returns a human-readable description.
func (s *Schedule) String() string {
	switch s.Kind {
	case KindCron:
		return s.CronExpr
	case KindInterval:
		d := s.Interval
		switch {
		case d%time.Hour == 0 && d >= time.Hour:
			h := int(d.Hours())
			if h == 1 {
				return "Every hour"
			}
			return fmt.Sprintf("Every %d hours", h)
		case d%time.Minute == 0 && d >= time.Minute:
			m := int(d.Minutes())
			if m == 1 {
				return "Every minute"
			}
			return fmt.Sprintf("Every %d minutes", m)
		default:
			return "Every " + d.String()
		}
	default:
		return s.Kind
	}
}
