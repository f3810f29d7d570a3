package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/pkg/dto"
)

type PhotographerStore interface {
	ListPhotographerEvents(ctx context.Context, photographerID uuid.UUID) ([]models.Event, error)
	PhotographerEventStatistics(ctx context.Context, photographerID uuid.UUID, today time.Time) (models.EventStatistics, error)
	GetEventByCode(ctx context.Context, code string) (*models.Event, error)
	IsPhotographerRegistered(ctx context.Context, photographerID, eventID uuid.UUID) (bool, error)
	RegisterPhotographer(ctx context.Context, photographerID, eventID uuid.UUID) error
}

type PhotographerHandler struct {
	store PhotographerStore
	now   func() time.Time
}

func NewPhotographerHandler(store PhotographerStore) *PhotographerHandler {
	return &PhotographerHandler{store: store, now: time.Now}
}

func toEventResponse(ev models.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:       ev.ID,
		Code:     ev.Code,
		Name:     ev.Name,
		Location: ev.Location,
		Date:     ev.Date.Format("2006-01-02"),
	}
}

func (h *PhotographerHandler) Events(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	events, err := h.store.ListPhotographerEvents(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, apperr.Upstream("photographer.events", "Failed to fetch events.", err))
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, toEventResponse(ev))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PhotographerHandler) Statistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	st, err := h.store.PhotographerEventStatistics(c.Request.Context(), p.UserID, h.now())
	if err != nil {
		respondError(c, apperr.Upstream("photographer.statistics", "Failed to fetch event statistics.", err))
		return
	}

	c.JSON(http.StatusOK, dto.EventStatisticsResponse{
		TotalEvents:  st.Total,
		ActiveEvents: st.Active,
		FutureEvents: st.Future,
	})
}

func (h *PhotographerHandler) Register(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.RegisterEventRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.EventCode) == "" {
		respondError(c, apperr.Validation("photographer.register", "Event code is required."))
		return
	}

	ctx := c.Request.Context()
	event, err := h.store.GetEventByCode(ctx, strings.TrimSpace(req.EventCode))
	if err != nil {
		respondError(c, apperr.Upstream("photographer.register", "Failed to fetch event.", err))
		return
	}
	if event == nil {
		respondError(c, apperr.NotFound("photographer.register", "Event not found."))
		return
	}

	registered, err := h.store.IsPhotographerRegistered(ctx, p.UserID, event.ID)
	if err != nil {
		respondError(c, apperr.Upstream("photographer.register", "Failed to verify registration status.", err))
		return
	}
	if registered {
		respondError(c, apperr.Validation("photographer.register", "You are already registered for this event."))
		return
	}

	if err := h.store.RegisterPhotographer(ctx, p.UserID, event.ID); err != nil {
		respondError(c, apperr.Persistence("photographer.register", "Failed to register for the event.", err))
		return
	}

	c.JSON(http.StatusCreated, dto.MessageResponse{
		Message: fmt.Sprintf("Successfully registered for the event \"%s\".", event.Name),
	})
}
