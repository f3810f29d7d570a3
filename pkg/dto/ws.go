package dto

import "github.com/google/uuid"

// UploadProgressEvent is pushed to /v1/photographer/uploads/ws subscribers
// as each photo of a batch finishes.
type UploadProgressEvent struct {
	EventID  uuid.UUID  `json:"event_id"`
	Index    int        `json:"index"`
	Total    int        `json:"total"`
	Filename string     `json:"filename"`
	Success  bool       `json:"success"`
	Message  string     `json:"message"`
	Stage    string     `json:"stage"`
	PhotoID  *uuid.UUID `json:"photo_id,omitempty"`
	URL      string     `json:"url,omitempty"`
	Matched  int        `json:"matched"`
}
