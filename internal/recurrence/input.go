// Package recurrence converts structured recurrence descriptions to and
// from canonical rule strings and expands them into occurrence dates.
package recurrence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
)

// Frequency is one of the four supported recurrence frequencies.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

var validFrequencies = map[Frequency]bool{Daily: true, Weekly: true, Monthly: true, Yearly: true}

// dayCodes index weekdays the way time.Weekday does (Sunday first).
var dayCodes = []string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// byDayRank orders day codes canonically (MO first, per RFC 5545 WKST).
var byDayRank = map[string]int{"MO": 0, "TU": 1, "WE": 2, "TH": 3, "FR": 4, "SA": 5, "SU": 6}

// Input is the structured recurrence description supplied by callers.
// The zero Interval means 1; Count == 0 means no count bound; a nil Until
// means no date bound. A rule with neither bound never ends and is only
// materialized up to the configured horizon.
type Input struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval,omitempty"`
	ByDay      []string   `json:"by_day,omitempty"` // "MO".."SU", optional ordinal prefix ("1MO", "-1SU")
	ByMonth    []int      `json:"by_month,omitempty"`
	ByMonthDay []int      `json:"by_month_day,omitempty"`
	Count      int        `json:"count,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
}

// Default synthesizes the fallback rule used when an event is created
// recurring without an explicit recurrence description: weekly, anchored
// on the weekday of the series start date.
func Default(start time.Time) Input {
	return Input{
		Frequency: Weekly,
		ByDay:     []string{DayCode(start)},
	}
}

// DayCode returns the two-letter day code for t's weekday.
func DayCode(t time.Time) string {
	return dayCodes[int(t.Weekday())]
}

// Normalized returns a copy with interval floored to 1 and the set fields
// sorted canonically, so equality and encoding are independent of the
// order optional fields were supplied in.
func (in Input) Normalized() Input {
	out := in
	if out.Interval < 1 {
		out.Interval = 1
	}
	if len(in.ByDay) > 0 {
		out.ByDay = append([]string(nil), in.ByDay...)
		sort.Slice(out.ByDay, func(i, j int) bool {
			return byDayLess(out.ByDay[i], out.ByDay[j])
		})
	}
	if len(in.ByMonth) > 0 {
		out.ByMonth = append([]int(nil), in.ByMonth...)
		sort.Ints(out.ByMonth)
	}
	if len(in.ByMonthDay) > 0 {
		out.ByMonthDay = append([]int(nil), in.ByMonthDay...)
		sort.Ints(out.ByMonthDay)
	}
	if in.Until != nil {
		u := in.Until.UTC()
		out.Until = &u
	}
	return out
}

func byDayLess(a, b string) bool {
	ao, ad := splitByDay(a)
	bo, bd := splitByDay(b)
	if byDayRank[ad] != byDayRank[bd] {
		return byDayRank[ad] < byDayRank[bd]
	}
	return ao < bo
}

// splitByDay separates an optional ordinal prefix from the day code,
// e.g. "-1SU" -> (-1, "SU"), "MO" -> (0, "MO").
func splitByDay(s string) (int, string) {
	if len(s) <= 2 {
		return 0, s
	}
	ord, err := strconv.Atoi(s[:len(s)-2])
	if err != nil {
		return 0, s
	}
	return ord, s[len(s)-2:]
}

// Never reports whether the rule has neither a count nor an until bound.
func (in Input) Never() bool {
	return in.Count == 0 && in.Until == nil
}

// Equal reports whether two inputs describe the same recurrence pattern.
// Comparison happens on normalized values, so it is insensitive to field
// ordering and to the interval-defaulting convention.
func (in Input) Equal(other Input) bool {
	a, b := in.Normalized(), other.Normalized()
	if a.Frequency != b.Frequency || a.Interval != b.Interval || a.Count != b.Count {
		return false
	}
	if (a.Until == nil) != (b.Until == nil) {
		return false
	}
	if a.Until != nil && !a.Until.Equal(*b.Until) {
		return false
	}
	return equalStrings(a.ByDay, b.ByDay) && equalInts(a.ByMonth, b.ByMonth) && equalInts(a.ByMonthDay, b.ByMonthDay)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Validate checks the structural validity of the input and returns one
// message per problem. An until date earlier than the series start is not
// a validation error: such a rule is well-formed and simply expands to
// zero occurrences.
func (in Input) Validate() []string {
	var errs []string
	if in.Frequency == "" {
		errs = append(errs, "Frequency is required")
	} else if !validFrequencies[in.Frequency] {
		errs = append(errs, fmt.Sprintf("Invalid frequency: %s", in.Frequency))
	}
	if in.Interval < 0 {
		errs = append(errs, "Recurrence interval must be at least 1")
	}
	if in.Count < 0 {
		errs = append(errs, "Recurrence count must be at least 1")
	}
	for _, d := range in.ByDay {
		_, code := splitByDay(d)
		if _, ok := byDayRank[code]; !ok {
			errs = append(errs, fmt.Sprintf("Invalid day code: %s", d))
		}
	}
	for _, m := range in.ByMonth {
		if m < 1 || m > 12 {
			errs = append(errs, fmt.Sprintf("Invalid month: %d", m))
		}
	}
	for _, d := range in.ByMonthDay {
		if d < 1 || d > 31 {
			errs = append(errs, fmt.Sprintf("Invalid month day: %d", d))
		}
	}
	if in.Frequency == Yearly && in.Never() {
		errs = append(errs, "Yearly events cannot be never-ending. Please specify an end date or count.")
	}
	return errs
}

// Encode serializes the input to the canonical rule string. The field
// order is fixed and the set fields are sorted, so any two inputs that
// are Equal encode identically.
func (in Input) Encode() string {
	n := in.Normalized()
	var b strings.Builder
	b.WriteString("RRULE:FREQ=")
	b.WriteString(string(n.Frequency))
	if n.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", n.Interval)
	}
	if n.Count > 0 {
		fmt.Fprintf(&b, ";COUNT=%d", n.Count)
	}
	if n.Until != nil {
		b.WriteString(";UNTIL=")
		b.WriteString(n.Until.UTC().Format("20060102T150405Z"))
	}
	if len(n.ByDay) > 0 {
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(n.ByDay, ","))
	}
	if len(n.ByMonth) > 0 {
		b.WriteString(";BYMONTH=")
		b.WriteString(joinInts(n.ByMonth))
	}
	if len(n.ByMonthDay) > 0 {
		b.WriteString(";BYMONTHDAY=")
		b.WriteString(joinInts(n.ByMonthDay))
	}
	return b.String()
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// FromRule reconstructs the structured input persisted on a rule record.
func FromRule(r *models.RecurrenceRule) Input {
	in := Input{
		Frequency:  Frequency(r.Frequency),
		Interval:   r.Interval,
		ByDay:      r.ByDay,
		ByMonth:    r.ByMonth,
		ByMonthDay: r.ByMonthDay,
		Until:      r.RecurrenceEndDate,
	}
	if r.Count != nil {
		in.Count = *r.Count
	}
	return in
}

// ApplyOverrides derives the recurrence input for a regenerated series
// tail. Explicit input wins over the persisted pattern; a moved start
// date re-anchors the weekday / month-day / month fields the way calendar
// applications do when an occurrence is dragged.
func ApplyOverrides(newStart *time.Time, current Input, override *Input) Input {
	out := current
	if override != nil {
		out = *override
	}
	if newStart == nil {
		return out
	}
	switch out.Frequency {
	case Weekly:
		out.ByDay = []string{DayCode(*newStart)}
	case Monthly:
		if len(current.ByDay) > 0 || len(current.ByMonthDay) == 0 {
			out.ByDay = []string{DayCode(*newStart)}
		}
		if len(current.ByMonthDay) > 0 && (override == nil || len(override.ByMonthDay) == 0) {
			out.ByMonthDay = []int{newStart.Day()}
		}
	case Yearly:
		if len(current.ByMonth) > 0 && (override == nil || len(override.ByMonth) == 0) {
			out.ByMonth = []int{int(newStart.Month())}
		}
	}
	return out
}
