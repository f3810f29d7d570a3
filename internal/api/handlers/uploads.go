package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/ingest"
	"github.com/your-org/eventlens/pkg/dto"
)

type BatchRunner interface {
	Run(ctx context.Context, b ingest.Batch) (*ingest.Result, error)
}

type RegistrationChecker interface {
	IsPhotographerRegistered(ctx context.Context, photographerID, eventID uuid.UUID) (bool, error)
}

// ProgressHub is satisfied by *ws.Hub.
type ProgressHub interface {
	Publish(evt *dto.UploadProgressEvent)
	Serve(c *gin.Context, eventID uuid.UUID)
}

type UploadHandler struct {
	runner        BatchRunner
	registrations RegistrationChecker
	hub           ProgressHub
}

// NewUploadHandler builds the batch upload handler. hub may be nil, which
// disables progress streaming.
func NewUploadHandler(runner BatchRunner, registrations RegistrationChecker, hub ProgressHub) *UploadHandler {
	return &UploadHandler{runner: runner, registrations: registrations, hub: hub}
}

// Upload handles POST /v1/photographer/upload: multipart event_id plus
// photos[] attachments.
func (h *UploadHandler) Upload(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			respondError(c, apperr.Validation("upload.form", "Event ID and at least one photo are required."))
			return
		}
		respondError(c, apperr.Validation("upload.form", "Failed to read upload form."))
		return
	}

	batch := ingest.Batch{PhotographerID: p.UserID}
	if v := form.Value["event_id"]; len(v) > 0 && v[0] != "" {
		id, err := uuid.Parse(v[0])
		if err != nil {
			respondError(c, apperr.Validation("upload.form", "Invalid event ID."))
			return
		}
		batch.EventID = &id
	}
	for _, fh := range form.File["photos"] {
		batch.Photos = append(batch.Photos, jobFromFile(fh))
	}

	if h.hub != nil && batch.EventID != nil {
		eventID, total := *batch.EventID, len(batch.Photos)
		batch.Observer = func(i int, st ingest.Status) {
			h.hub.Publish(&dto.UploadProgressEvent{
				EventID:  eventID,
				Index:    i,
				Total:    total,
				Filename: st.Filename,
				Success:  st.Success,
				Message:  st.Message,
				Stage:    string(st.Stage),
				PhotoID:  st.PhotoID,
				URL:      st.URL,
				Matched:  st.Matched,
			})
		}
	}

	res, err := h.runner.Run(c.Request.Context(), batch)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.UploadResponse{UploadStatuses: make([]dto.UploadStatus, len(res.Statuses))}
	for i, st := range res.Statuses {
		resp.UploadStatuses[i] = dto.UploadStatus{
			Filename: st.Filename,
			Success:  st.Success,
			Message:  st.Message,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func jobFromFile(fh *multipart.FileHeader) ingest.Job {
	return ingest.Job{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Progress handles GET /v1/photographer/uploads/ws?event_id=... and streams
// per-photo progress of batches uploaded to that event.
func (h *UploadHandler) Progress(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if h.hub == nil {
		respondError(c, apperr.NotFound("upload.progress", "Progress streaming is disabled."))
		return
	}

	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		respondError(c, apperr.Validation("upload.progress", "Invalid event ID."))
		return
	}

	registered, err := h.registrations.IsPhotographerRegistered(c.Request.Context(), p.UserID, eventID)
	if err != nil {
		respondError(c, apperr.Upstream("upload.progress", "Failed to verify registration status.", err))
		return
	}
	if !registered {
		respondError(c, apperr.Authorization("upload.progress", "You are not associated with this event."))
		return
	}

	h.hub.Serve(c, eventID)
}
