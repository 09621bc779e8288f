package archive

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ParseCron parses a standard 5-field cron expression
// ("minute hour day-of-month month day-of-week") or a descriptor such as
// "@daily".
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("archive: cron %q: %w", expr, err)
	}
	return sched, nil
}
