// Package scheduler implements the Scheduler of SPEC_FULL.md §4.5, grounded
// on the teacher's internal/cron package (haasonsaas/nexus), keeping its
// robfig/cron/v3-based expression parsing and functional-options
// construction while generalizing its three wire payload kinds to the
// spec's Heartbeat | AgentTurn | Notify variant and adding the stuck-job
// detection and tiered ring-buffer history the spec requires.
package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both 5-field (minute-first) and 6-field
// (second-first) expressions, matching SPEC_FULL.md §6's cron grammar.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// normalizeCronExpr prepends "0 " to a 5-field expression so the optional
// seconds field parses consistently (SPEC_FULL.md §4.5's next_run rule).
func normalizeCronExpr(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 5 {
		return "0 " + expr
	}
	return expr
}

// parseCron parses a 5- or 6-field cron expression. An invalid expression
// is a configuration error surfaced eagerly, per SPEC_FULL.md §7.
func parseCron(expr string) (cron.Schedule, error) {
	normalized := normalizeCronExpr(expr)
	sched, err := cronParser.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}
