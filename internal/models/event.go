package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is one row of the events table. A single table carries both kinds
// of series records: the base recurring event (the series template, never
// bookable) and the materialized instances.
//
// For a base event IsBaseRecurringEvent is true and RecurrenceRuleID /
// BaseRecurringEventID are nil; its EndDate mirrors the current rule's
// bound end date (nil while the series is unbounded). For an instance
// Recurring is true, both reference ids are set, and StartDate and
// EndDate are the occurrence date. A standalone event has none of the
// recurrence flags set.
type Event struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	CreatorID      uuid.UUID `json:"creator_id"`

	Title          string `json:"title"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	AllDay         bool   `json:"all_day"`
	IsPublic       bool   `json:"is_public"`
	IsRegisterable bool   `json:"is_registerable"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	StartTime *string    `json:"start_time,omitempty"` // "HH:MM", nil for all-day events
	EndTime   *string    `json:"end_time,omitempty"`

	Recurring                 bool       `json:"recurring"`
	IsBaseRecurringEvent      bool       `json:"is_base_recurring_event"`
	IsRecurringEventException bool       `json:"is_recurring_event_exception"`
	RecurrenceRuleID          *uuid.UUID `json:"recurrence_rule_id,omitempty"`
	BaseRecurringEventID      *uuid.UUID `json:"base_recurring_event_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsInstance reports whether the event is a materialized occurrence of a
// recurring series.
func (e *Event) IsInstance() bool {
	return e.Recurring && !e.IsBaseRecurringEvent
}

// EventAttendee associates a user with one event instance.
type EventAttendee struct {
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EventAttachment is an S3-backed file attached to an event.
type EventAttachment struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
