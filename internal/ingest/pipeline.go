package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/internal/notify"
	"github.com/your-org/eventlens/internal/observability"
	"github.com/your-org/eventlens/internal/recognition"
	"github.com/your-org/eventlens/internal/roster"
	"github.com/your-org/eventlens/internal/storage"
)

type ObjectStore interface {
	Store(ctx context.Context, dir string, data []byte, contentType, filename string) (storage.StoredObject, error)
	DeleteObject(ctx context.Context, key string) error
}

type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]recognition.DetectedFace, error)
}

type PhotoRepository interface {
	CreatePhoto(ctx context.Context, p *models.Photo) error
	CreatePhotoAttendee(ctx context.Context, pa *models.PhotoAttendee) error
}

type Notifier interface {
	Notify(n notify.Notification)
}

type PipelineConfig struct {
	StorageTimeout     time.Duration
	RecognitionTimeout time.Duration
	DBTimeout          time.Duration
	// MaxDistance drops matches farther than this. Zero keeps every match.
	MaxDistance float64
}

func PipelineConfigFrom(cfg *config.Config) PipelineConfig {
	return PipelineConfig{
		StorageTimeout:     cfg.Upload.StorageTimeout,
		RecognitionTimeout: cfg.Recognition.Timeout,
		DBTimeout:          cfg.Upload.DBTimeout,
		MaxDistance:        cfg.Recognition.MaxDistance,
	}
}

// Pipeline processes a single photo: store, recognise, persist, associate
// and notify. It holds no per-photo state and is safe for concurrent use.
type Pipeline struct {
	store      ObjectStore
	recognizer Recognizer
	photos     PhotoRepository
	notifier   Notifier
	cfg        PipelineConfig
}

func NewPipeline(store ObjectStore, recognizer Recognizer, photos PhotoRepository, notifier Notifier, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		store:      store,
		recognizer: recognizer,
		photos:     photos,
		notifier:   notifier,
		cfg:        cfg,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func observeStage(stage Stage, start time.Time) {
	observability.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// Process runs job to completion and reports its outcome. Failures are
// converted into a failed Status; Process never returns an error.
func (p *Pipeline) Process(ctx context.Context, scope Scope, job Job) Status {
	st := p.process(ctx, scope, job)
	if st.Success {
		observability.PhotosProcessed.WithLabelValues("success", string(StageDone)).Inc()
	} else {
		observability.PhotosProcessed.WithLabelValues("failed", string(st.Stage)).Inc()
	}
	return st
}

func (p *Pipeline) process(ctx context.Context, scope Scope, job Job) Status {
	log := slog.With("event_id", scope.Event.ID, "filename", job.Filename)

	// Reading
	start := time.Now()
	data, err := readJob(job)
	observeStage(StageReading, start)
	if err != nil {
		log.Error("read photo failed", "error", err)
		return failed(job.Filename, StageReading, MsgReadFailed)
	}
	contentType := job.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	// Uploading
	start = time.Now()
	sctx, cancel := withTimeout(ctx, p.cfg.StorageTimeout)
	obj, err := p.store.Store(sctx, scope.Event.ID.String(), data, contentType, job.Filename)
	cancel()
	observeStage(StageUploading, start)
	if err != nil {
		log.Error("store photo failed", "error", err)
		return failed(job.Filename, StageUploading, MsgUploadFailed)
	}
	log = log.With("object_key", obj.Key)

	// Recognizing
	start = time.Now()
	rctx, cancel := withTimeout(ctx, p.cfg.RecognitionTimeout)
	faces, err := p.recognizer.Recognize(rctx, data)
	cancel()
	observeStage(StageRecognizing, start)
	if err != nil {
		log.Error("face recognition failed", "error", err)
		p.discard(ctx, log, obj.Key)
		return failed(job.Filename, StageRecognizing, MsgRecognitionFailed)
	}
	observability.FacesDetected.Add(float64(len(faces)))

	// Persisting
	start = time.Now()
	photo := &models.Photo{
		ID:             uuid.New(),
		EventID:        scope.Event.ID,
		PhotographerID: scope.PhotographerID,
		URL:            obj.URL,
		ObjectKey:      obj.Key,
	}
	dctx, cancel := withTimeout(ctx, p.cfg.DBTimeout)
	err = p.photos.CreatePhoto(dctx, photo)
	cancel()
	observeStage(StagePersisting, start)
	if err != nil {
		log.Error("persist photo failed", "error", err)
		p.discard(ctx, log, obj.Key)
		return failed(job.Filename, StagePersisting, MsgPersistFailed)
	}
	log = log.With("photo_id", photo.ID)

	// Associating
	start = time.Now()
	matched := p.associate(ctx, log, scope.Roster, photo.ID, faces)
	observeStage(StageAssociating, start)
	observability.FacesMatched.Add(float64(len(matched)))

	// Notifying
	if p.notifier != nil {
		for _, entry := range matched {
			p.notifier.Notify(notify.Notification{
				To:        entry.Email,
				EventName: scope.Event.Name,
				PhotoURL:  photo.URL,
				PhotoID:   photo.ID,
			})
		}
	}

	log.Info("photo processed", "faces", len(faces), "matched", len(matched))
	id := photo.ID
	return Status{
		Filename: job.Filename,
		Success:  true,
		Message:  MsgSuccess,
		Stage:    StageDone,
		PhotoID:  &id,
		URL:      photo.URL,
		Matched:  len(matched),
	}
}

// associate links every roster identity found in faces to the photo, once per
// identity, and returns the entries that were linked.
func (p *Pipeline) associate(ctx context.Context, log *slog.Logger, r *roster.Roster, photoID uuid.UUID, faces []recognition.DetectedFace) []roster.Entry {
	var matched []roster.Entry
	seen := make(map[uuid.UUID]bool)

	for _, face := range faces {
		if face.UserID == nil {
			continue
		}
		entry, ok := r.Lookup(*face.UserID)
		if !ok {
			log.Debug("face matched attendee outside event roster", "user_id", *face.UserID)
			continue
		}
		if p.cfg.MaxDistance > 0 && (face.Distance == nil || *face.Distance > p.cfg.MaxDistance) {
			log.Debug("face match above distance threshold", "user_id", *face.UserID, "max_distance", p.cfg.MaxDistance)
			continue
		}
		if seen[entry.AttendeeID] {
			continue
		}
		seen[entry.AttendeeID] = true

		pa := &models.PhotoAttendee{
			ID:           uuid.New(),
			PhotoID:      photoID,
			AttendeeID:   entry.AttendeeID,
			FaceEncoding: face.Encoding,
			Distance:     face.Distance,
		}
		dctx, cancel := withTimeout(ctx, p.cfg.DBTimeout)
		err := p.photos.CreatePhotoAttendee(dctx, pa)
		cancel()
		if err != nil {
			log.Error("associate attendee failed", "attendee_id", entry.AttendeeID, "error", err)
			continue
		}
		matched = append(matched, entry)
	}
	return matched
}

// discard removes an object that no photo row will reference.
func (p *Pipeline) discard(ctx context.Context, log *slog.Logger, key string) {
	sctx, cancel := withTimeout(ctx, p.cfg.StorageTimeout)
	defer cancel()
	if err := p.store.DeleteObject(sctx, key); err != nil {
		log.Warn("remove unreferenced object failed", "error", err)
	}
}

func readJob(job Job) ([]byte, error) {
	if job.Open == nil {
		return nil, fmt.Errorf("no content for %q", job.Filename)
	}
	rc, err := job.Open()
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("photo %q is empty", job.Filename)
	}
	return data, nil
}
