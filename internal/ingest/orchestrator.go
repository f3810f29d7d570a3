package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/internal/observability"
	"github.com/your-org/eventlens/internal/roster"
)

type EventRepository interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	IsPhotographerRegistered(ctx context.Context, photographerID, eventID uuid.UUID) (bool, error)
}

type RosterLoader interface {
	Load(ctx context.Context, eventID uuid.UUID) (*roster.Roster, error)
}

type OrchestratorConfig struct {
	MaxPhotos int
	Workers   int
	DBTimeout time.Duration
}

// Orchestrator validates a batch and fans its photos out to a bounded pool
// of pipelines.
type Orchestrator struct {
	events   EventRepository
	rosters  RosterLoader
	pipeline *Pipeline
	cfg      OrchestratorConfig
}

func NewOrchestrator(events EventRepository, rosters RosterLoader, pipeline *Pipeline, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Orchestrator{
		events:   events,
		rosters:  rosters,
		pipeline: pipeline,
		cfg:      cfg,
	}
}

func (o *Orchestrator) MaxPhotos() int { return o.cfg.MaxPhotos }

// Run processes every photo of b. Batch-level problems (validation, unknown
// event, unregistered photographer, roster lookup) return an error and no
// statuses. Otherwise the result carries one status per photo in submission
// order, whatever the individual outcomes.
//
// Cancelling ctx stops new photos from starting; photos already started
// finish on a context that ignores the cancellation.
func (o *Orchestrator) Run(ctx context.Context, b Batch) (*Result, error) {
	start := time.Now()

	event, err := o.validate(ctx, b)
	if err != nil {
		return nil, err
	}

	r, err := o.rosters.Load(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	scope := Scope{Event: event, PhotographerID: b.PhotographerID, Roster: r}
	statuses := make([]Status, len(b.Photos))
	runCtx := context.WithoutCancel(ctx)

	finish := func(i int, st Status) {
		statuses[i] = st
		if b.Observer != nil {
			b.Observer(i, st)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for i, job := range b.Photos {
		i, job := i, job
		if ctx.Err() != nil {
			finish(i, failed(job.Filename, StagePending, MsgCancelled))
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				finish(i, failed(job.Filename, StagePending, MsgCancelled))
				return nil
			}
			finish(i, o.pipeline.Process(runCtx, scope, job))
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Event: event, Statuses: statuses}
	observability.BatchDuration.Observe(time.Since(start).Seconds())
	slog.Info("batch processed",
		"event_id", event.ID,
		"photographer_id", b.PhotographerID,
		"photos", len(statuses),
		"succeeded", res.Succeeded(),
		"roster", r.Len(),
		"duration", time.Since(start),
	)
	return res, nil
}

func (o *Orchestrator) validate(ctx context.Context, b Batch) (*models.Event, error) {
	if b.EventID == nil || *b.EventID == uuid.Nil {
		return nil, apperr.Validation("upload.validate", "Event ID is required.")
	}
	if len(b.Photos) == 0 {
		return nil, apperr.Validation("upload.validate", "At least one photo is required.")
	}
	if len(b.Photos) > o.cfg.MaxPhotos {
		return nil, apperr.Validation("upload.validate",
			fmt.Sprintf("At most %d photos can be uploaded at once.", o.cfg.MaxPhotos))
	}

	dctx, cancel := withTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()

	event, err := o.events.GetEvent(dctx, *b.EventID)
	if err != nil {
		return nil, apperr.Upstream("upload.event", "Failed to fetch event.", err)
	}
	if event == nil {
		return nil, apperr.NotFound("upload.event", "Event not found.")
	}

	ok, err := o.events.IsPhotographerRegistered(dctx, b.PhotographerID, event.ID)
	if err != nil {
		return nil, apperr.Upstream("upload.authorize", "Failed to verify registration status.", err)
	}
	if !ok {
		return nil, apperr.Authorization("upload.authorize", "You are not associated with this event.")
	}
	return event, nil
}
