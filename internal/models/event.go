package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Location  string    `json:"location" db:"location"`
	Date      time.Time `json:"date" db:"date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PhotographerEvent records that a photographer may upload for an event.
type PhotographerEvent struct {
	PhotographerID uuid.UUID `json:"photographer_id" db:"photographer_id"`
	EventID        uuid.UUID `json:"event_id" db:"event_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type EventStatistics struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Future int `json:"future"`
}
