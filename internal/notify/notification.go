// Package notify delivers "you are in a photo" emails off the upload path.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Notification tells one attendee about one photo.
type Notification struct {
	To        string    `json:"to"`
	EventName string    `json:"event_name"`
	PhotoURL  string    `json:"photo_url"`
	PhotoID   uuid.UUID `json:"photo_id"`
}

// Sender delivers a notification. Implementations may send directly or
// hand the notification to another process.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Message is a composed plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

func Compose(n Notification) Message {
	return Message{
		To:      n.To,
		Subject: fmt.Sprintf("Your Photo from %s", n.EventName),
		Body: fmt.Sprintf(`Hello,

We are pleased to share a photo from the event "%s" where you attended.

You can view your photo here: %s

Best regards,
Event Team`, n.EventName, n.PhotoURL),
	}
}
