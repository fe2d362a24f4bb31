package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account. Event ownership metadata (admin/created/
// registered lists) lives in user_event_lists, not on this struct.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"` // "admin" or "member"
	CreatedAt    time.Time `json:"created_at"`
}

// EventList names one of the per-user event id collections that series
// generation pushes instance ids onto.
type EventList string

const (
	EventListAdmin      EventList = "admin"
	EventListCreated    EventList = "created"
	EventListRegistered EventList = "registered"
)

// UserEventLists is the set of lists every generated instance id is pushed
// onto for the acting user.
var UserEventLists = []EventList{EventListAdmin, EventListCreated, EventListRegistered}
