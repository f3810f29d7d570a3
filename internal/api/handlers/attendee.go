package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/internal/recognition"
	"github.com/your-org/eventlens/internal/storage"
	"github.com/your-org/eventlens/pkg/dto"
)

const faceDir = "faces"

type AttendeeStore interface {
	GetEventByCode(ctx context.Context, code string) (*models.Event, error)
	IsAttendeeRegistered(ctx context.Context, attendeeID, eventID uuid.UUID) (bool, error)
	UpsertAttendee(ctx context.Context, a *models.Attendee) error
	RegisterAttendee(ctx context.Context, attendeeID, eventID uuid.UUID) error
}

type FaceEncoder interface {
	Encode(ctx context.Context, image []byte) ([]float32, error)
}

type FaceStore interface {
	Store(ctx context.Context, dir string, data []byte, contentType, filename string) (storage.StoredObject, error)
}

type AttendeeHandler struct {
	store   AttendeeStore
	encoder FaceEncoder
	faces   FaceStore
}

func NewAttendeeHandler(store AttendeeStore, encoder FaceEncoder, faces FaceStore) *AttendeeHandler {
	return &AttendeeHandler{store: store, encoder: encoder, faces: faces}
}

// Checkin handles POST /v1/attendee/checkin: enrolls the caller's face and
// joins them to the event identified by event_code.
func (h *AttendeeHandler) Checkin(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	code := strings.TrimSpace(c.PostForm("event_code"))
	fh, err := c.FormFile("face_photo")
	if code == "" || err != nil {
		respondError(c, apperr.Validation("attendee.checkin", "Event code and face photo are required."))
		return
	}

	ctx := c.Request.Context()
	event, err := h.store.GetEventByCode(ctx, code)
	if err != nil {
		respondError(c, apperr.Upstream("attendee.checkin", "Failed to fetch event.", err))
		return
	}
	if event == nil {
		respondError(c, apperr.NotFound("attendee.checkin", "Event not found."))
		return
	}

	registered, err := h.store.IsAttendeeRegistered(ctx, p.UserID, event.ID)
	if err != nil {
		respondError(c, apperr.Upstream("attendee.checkin", "Failed to verify registration status.", err))
		return
	}
	if registered {
		respondError(c, apperr.Validation("attendee.checkin", "You are already registered for this event."))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, apperr.Validation("attendee.checkin", "Failed to read face photo."))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil || len(data) == 0 {
		respondError(c, apperr.Validation("attendee.checkin", "Failed to read face photo."))
		return
	}

	encoding, err := h.encoder.Encode(ctx, data)
	if errors.Is(err, recognition.ErrNoFace) {
		c.JSON(http.StatusUnprocessableEntity, dto.MessageResponse{Message: "No face detected in the photo."})
		return
	}
	if err != nil {
		respondError(c, apperr.Upstream("attendee.checkin", "Failed to process face encoding.", err))
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	obj, err := h.faces.Store(ctx, faceDir, data, contentType, fh.Filename)
	if err != nil {
		respondError(c, apperr.Upstream("attendee.checkin", "Failed to upload face photo.", err))
		return
	}

	if err := h.store.UpsertAttendee(ctx, &models.Attendee{
		UserID:       p.UserID,
		FaceEncoding: encoding,
		FaceURL:      obj.URL,
	}); err != nil {
		respondError(c, apperr.Persistence("attendee.checkin", "Failed to update attendee data.", err))
		return
	}

	if err := h.store.RegisterAttendee(ctx, p.UserID, event.ID); err != nil {
		respondError(c, apperr.Persistence("attendee.checkin", "Failed to associate attendee with event.", err))
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Check-in successful!"})
}
