// Package events implements the recurring-event engine: series
// generation, the three-scope update state machine, and cleanup of
// series records no instance references any more.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
)

// Scope declares how far an edit or deletion reaches into a series.
type Scope string

const (
	ScopeThisInstance     Scope = "ThisInstance"
	ScopeAllInstances     Scope = "AllInstances"
	ScopeThisAndFollowing Scope = "ThisAndFollowingInstances"
)

// ValidScope reports whether s is one of the three supported scopes.
func ValidScope(s Scope) bool {
	return s == ScopeThisInstance || s == ScopeAllInstances || s == ScopeThisAndFollowing
}

// ErrNotFound is returned when a targeted event, recurrence rule or base
// recurring event does not exist. The engine surfaces this instead of
// silently returning the unchanged instance.
var ErrNotFound = errors.New("not found")

// EventTemplate is the full field set copied onto every generated
// instance. EndDate doubles as the recurrence window end; nil means the
// series is unbounded.
type EventTemplate struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	AllDay         bool       `json:"all_day"`
	IsPublic       bool       `json:"is_public"`
	IsRegisterable bool       `json:"is_registerable"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	StartTime      *string    `json:"start_time,omitempty"`
	EndTime        *string    `json:"end_time,omitempty"`
}

// EventEdit carries the optional field overrides of one edit request.
// Nil fields are left untouched.
type EventEdit struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Location       *string    `json:"location,omitempty"`
	AllDay         *bool      `json:"all_day,omitempty"`
	IsPublic       *bool      `json:"is_public,omitempty"`
	IsRegisterable *bool      `json:"is_registerable,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	StartTime      *string    `json:"start_time,omitempty"`
	EndTime        *string    `json:"end_time,omitempty"`

	// MarkException detaches the instance from future bulk scopes; only
	// meaningful with ScopeThisInstance.
	MarkException *bool `json:"mark_exception,omitempty"`
}

// Apply merges the edit over a template and returns the result.
func (e EventEdit) Apply(t EventTemplate) EventTemplate {
	if e.Title != nil {
		t.Title = *e.Title
	}
	if e.Description != nil {
		t.Description = *e.Description
	}
	if e.Location != nil {
		t.Location = *e.Location
	}
	if e.AllDay != nil {
		t.AllDay = *e.AllDay
	}
	if e.IsPublic != nil {
		t.IsPublic = *e.IsPublic
	}
	if e.IsRegisterable != nil {
		t.IsRegisterable = *e.IsRegisterable
	}
	if e.StartDate != nil {
		t.StartDate = *e.StartDate
	}
	if e.EndDate != nil {
		t.EndDate = e.EndDate
	}
	if e.StartTime != nil {
		t.StartTime = e.StartTime
	}
	if e.EndTime != nil {
		t.EndTime = e.EndTime
	}
	return t
}

// FieldUpdate is the subset of an edit that may be bulk-applied across a
// series. Date fields are excluded by construction: bulk-writing one date
// onto every instance would corrupt the recurrence pattern.
type FieldUpdate struct {
	Title          *string
	Description    *string
	Location       *string
	AllDay         *bool
	IsPublic       *bool
	IsRegisterable *bool
	StartTime      *string
	EndTime        *string
}

// Fields projects the bulk-applicable part of the edit.
func (e EventEdit) Fields() FieldUpdate {
	return FieldUpdate{
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		AllDay:         e.AllDay,
		IsPublic:       e.IsPublic,
		IsRegisterable: e.IsRegisterable,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
	}
}

// Empty reports whether the update changes nothing.
func (f FieldUpdate) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Location == nil &&
		f.AllDay == nil && f.IsPublic == nil && f.IsRegisterable == nil &&
		f.StartTime == nil && f.EndTime == nil
}

// InstanceFilter selects materialized instances. Base events never match.
// Exception instances are excluded unless IncludeExceptions is set; they
// are detached from bulk scopes by definition.
type InstanceFilter struct {
	RecurrenceRuleID     *uuid.UUID
	BaseRecurringEventID *uuid.UUID
	StartDateOnOrAfter   *time.Time
	IncludeExceptions    bool
}

// Tx is the set of writes and reads available inside one atomic series
// operation. Every method sees the transaction's own uncommitted writes.
type Tx interface {
	CreateEvent(ctx context.Context, ev *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, edit EventEdit) error
	SaveEvent(ctx context.Context, ev *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	CreateInstances(ctx context.Context, instances []*models.Event) error
	ListInstances(ctx context.Context, f InstanceFilter) ([]*models.Event, error)
	BulkUpdateInstances(ctx context.Context, f InstanceFilter, fields FieldUpdate) (int, error)
	DeleteInstances(ctx context.Context, f InstanceFilter) ([]uuid.UUID, error)
	CountInstancesByRule(ctx context.Context, ruleID uuid.UUID) (int, error)
	CountInstancesByBaseEvent(ctx context.Context, baseEventID uuid.UUID) (int, error)
	LatestInstanceStart(ctx context.Context, ruleID uuid.UUID) (*time.Time, error)

	CreateRule(ctx context.Context, rule *models.RecurrenceRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*models.RecurrenceRule, error)
	UpdateRule(ctx context.Context, rule *models.RecurrenceRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ListRulesByBaseEvent(ctx context.Context, baseEventID uuid.UUID) ([]*models.RecurrenceRule, error)

	CreateAttendees(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) error
	DeleteAttendees(ctx context.Context, eventIDs []uuid.UUID) error
	PushUserEvents(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) error
	PullUserEvents(ctx context.Context, eventIDs []uuid.UUID) error
}

// Store is the persistence boundary of the engine. InTx runs fn inside a
// single atomic scope: either every write commits or none do.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListOrganizationInstances(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*models.Event, error)
}
