// Package roster builds the per-event index of attendees that recognised
// faces are matched against.
package roster

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/models"
)

// Entry is one matchable attendee.
type Entry struct {
	AttendeeID uuid.UUID
	Email      string
}

// Roster maps identity keys to contacts. It is never mutated after New and
// may be shared by any number of goroutines.
type Roster struct {
	entries map[uuid.UUID]Entry
}

// New copies entries into a fresh Roster. Later duplicates win.
func New(entries []Entry) *Roster {
	m := make(map[uuid.UUID]Entry, len(entries))
	for _, e := range entries {
		m[e.AttendeeID] = e
	}
	return &Roster{entries: m}
}

func (r *Roster) Lookup(id uuid.UUID) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	e, ok := r.entries[id]
	return e, ok
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// AttendeeSource lists the raw attendee rows of an event.
type AttendeeSource interface {
	ListEventAttendees(ctx context.Context, eventID uuid.UUID) ([]models.RosterRow, error)
}

type Loader struct {
	source AttendeeSource
}

func NewLoader(source AttendeeSource) *Loader {
	return &Loader{source: source}
}

// Load builds the roster of eventID. Rows without an enrolled face or an email
// cannot be matched or notified and are left out.
func (l *Loader) Load(ctx context.Context, eventID uuid.UUID) (*Roster, error) {
	rows, err := l.source.ListEventAttendees(ctx, eventID)
	if err != nil {
		return nil, apperr.Upstream("roster.load", "Failed to fetch attendees for the event.", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if !row.Enrolled || row.Email == nil || *row.Email == "" {
			slog.Debug("skipping roster row", "event_id", eventID, "attendee_id", row.AttendeeID,
				"enrolled", row.Enrolled, "has_email", row.Email != nil && *row.Email != "")
			continue
		}
		entries = append(entries, Entry{AttendeeID: row.AttendeeID, Email: *row.Email})
	}

	slog.Info("roster loaded", "event_id", eventID, "rows", len(rows), "entries", len(entries))
	return New(entries), nil
}
