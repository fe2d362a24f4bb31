package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization owns events and recurring series.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"` // "administrator" or "regular"
	JoinedAt       time.Time `json:"joined_at"`
}
