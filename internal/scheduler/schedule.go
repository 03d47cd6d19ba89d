package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ParseSchedule parses a five-field cron expression (minute, hour,
// day-of-month, month, day-of-week). With utc set the expression is
// evaluated in UTC, otherwise in local time. A malformed expression is a
// startup-fatal configuration error.
func ParseSchedule(expr string, utc bool) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule: empty cron expression")
	}
	if utc && !strings.HasPrefix(expr, "TZ=") && !strings.HasPrefix(expr, "CRON_TZ=") {
		expr = "CRON_TZ=UTC " + expr
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}
