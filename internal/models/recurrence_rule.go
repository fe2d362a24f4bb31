package models

import (
	"time"

	"github.com/google/uuid"
)

// RecurrenceRule is the persisted recurrence description of one series.
// RuleString is the canonical serialization used for expansion; the
// structured columns exist so pattern changes are detected by value
// equality rather than string comparison.
type RecurrenceRule struct {
	ID                   uuid.UUID `json:"id"`
	OrganizationID       uuid.UUID `json:"organization_id"`
	BaseRecurringEventID uuid.UUID `json:"base_recurring_event_id"`

	RuleString string   `json:"rule_string"`
	Frequency  string   `json:"frequency"` // DAILY | WEEKLY | MONTHLY | YEARLY
	Interval   int      `json:"interval"`
	ByDay      []string `json:"by_day,omitempty"`
	ByMonth    []int    `json:"by_month,omitempty"`
	ByMonthDay []int    `json:"by_month_day,omitempty"`
	Count      *int     `json:"count,omitempty"`

	RecurrenceStartDate time.Time  `json:"recurrence_start_date"`
	RecurrenceEndDate   *time.Time `json:"recurrence_end_date,omitempty"` // nil = unbounded
	LatestInstanceDate  time.Time  `json:"latest_instance_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
