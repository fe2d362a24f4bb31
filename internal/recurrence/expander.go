package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/PalisadoesFoundation/talawa-api-sub014/config"
)

// Expander turns a canonical rule string plus a date window into the
// ordered occurrence dates to materialize now.
type Expander struct {
	horizonMonths int
	maxInstances  int
}

// NewExpander creates an expander with the configured materialization
// bounds for unbounded rules.
func NewExpander(cfg config.RecurrenceConfig) *Expander {
	horizon := cfg.HorizonMonths
	if horizon <= 0 {
		horizon = 12
	}
	maxInstances := cfg.MaxInstances
	if maxInstances <= 0 {
		maxInstances = 100
	}
	return &Expander{horizonMonths: horizon, maxInstances: maxInstances}
}

// Expand returns the chronologically ordered occurrence dates of
// ruleString within [windowStart, windowEnd]. A nil windowEnd means the
// rule is unbounded; expansion then stops at the configured horizon and
// instance cap instead of running forever. Zero occurrences is a valid
// result, not an error.
func (e *Expander) Expand(ruleString string, windowStart time.Time, windowEnd *time.Time) ([]time.Time, error) {
	rule, err := rrule.StrToRRule(strings.TrimPrefix(ruleString, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("parse rule string %q: %w", ruleString, err)
	}

	start := windowStart.UTC()
	rule.DTStart(start)

	end := e.Horizon(start)
	capped := true
	if windowEnd != nil {
		end = windowEnd.UTC()
		capped = false
	}

	dates := rule.Between(start, end, true)
	if capped && len(dates) > e.maxInstances {
		dates = dates[:e.maxInstances]
	}
	return dates, nil
}

// ExpandFrom returns the occurrence dates of ruleString inside
// (after, until], keeping the pattern anchored at the series start. Used
// to extend an already materialized series: anchoring at the series
// start rather than the window start keeps interval arithmetic aligned
// with the existing instances.
func (e *Expander) ExpandFrom(ruleString string, seriesStart, after, until time.Time) ([]time.Time, error) {
	rule, err := rrule.StrToRRule(strings.TrimPrefix(ruleString, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("parse rule string %q: %w", ruleString, err)
	}
	rule.DTStart(seriesStart.UTC())

	dates := rule.Between(after.UTC().Add(time.Second), until.UTC(), true)
	if len(dates) > e.maxInstances {
		dates = dates[:e.maxInstances]
	}
	return dates, nil
}

// Horizon returns the materialization boundary for an unbounded rule
// anchored at from.
func (e *Expander) Horizon(from time.Time) time.Time {
	return from.UTC().AddDate(0, e.horizonMonths, 0)
}
