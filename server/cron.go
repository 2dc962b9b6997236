package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedules use the five-field cron form (minute through day-of-week)
// and are always evaluated in UTC.
var cronExprParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// cronNextUTC returns the next fire time after now for expr, in UTC.
func cronNextUTC(expr string, now time.Time) (time.Time, error) {
	schedule, err := parseCronExpr(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now.UTC()), nil
}

func parseCronExpr(expr string) (cron.Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, errors.New("cron expression is empty")
	}
	if upper := strings.ToUpper(trimmed); strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, errors.New("timezone prefixes are not supported, cron expressions run in UTC")
	}

	schedule, err := cronExprParser.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", trimmed, err)
	}
	return schedule, nil
}
