package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendee is an enrolled face reference. UserID is the identity key the
// recognition service returns for a match.
type Attendee struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	FaceEncoding []float32 `json:"-" db:"face_encoding"`
	FaceURL      string    `json:"face_url" db:"url"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RosterRow is one attendees_events row joined to the attendee's enrollment
// and user contact. Email is nil and Enrolled false when the join is incomplete.
type RosterRow struct {
	AttendeeID uuid.UUID
	Email      *string
	Enrolled   bool
}
