package models

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID             uuid.UUID `json:"id" db:"id"`
	EventID        uuid.UUID `json:"event_id" db:"event_id"`
	PhotographerID uuid.UUID `json:"photographer_id" db:"photographer_id"`
	URL            string    `json:"url" db:"url"`
	ObjectKey      string    `json:"object_key" db:"object_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PhotoAttendee links a photo to an attendee recognised in it.
type PhotoAttendee struct {
	ID           uuid.UUID `json:"id" db:"id"`
	PhotoID      uuid.UUID `json:"photo_id" db:"photo_id"`
	AttendeeID   uuid.UUID `json:"attendee_id" db:"attendee_id"`
	FaceEncoding []float32 `json:"-" db:"face_encoding"`
	Distance     *float64  `json:"distance,omitempty" db:"distance"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
