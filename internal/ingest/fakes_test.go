package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/internal/notify"
	"github.com/your-org/eventlens/internal/recognition"
	"github.com/your-org/eventlens/internal/roster"
	"github.com/your-org/eventlens/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	n       int

	// FailFor makes Store fail for photos with this content.
	FailFor string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Store(ctx context.Context, dir string, data []byte, contentType, filename string) (storage.StoredObject, error) {
	if s.FailFor != "" && string(data) == s.FailFor {
		return storage.StoredObject{}, &storage.StorageError{Op: "put", Err: errors.New("bucket unavailable")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	key := dir + "/" + uuid.NewString()
	s.objects[key] = append([]byte(nil), data...)
	return storage.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (s *fakeStore) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeRecognizer answers by photo content.
type fakeRecognizer struct {
	mu      sync.Mutex
	faces   map[string][]recognition.DetectedFace
	errFor  map[string]error
	delay   map[string]time.Duration
	active  int
	maxSeen int

	// started/release let a test hold a photo in flight.
	started chan string
	release chan struct{}
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{
		faces:  make(map[string][]recognition.DetectedFace),
		errFor: make(map[string]error),
		delay:  make(map[string]time.Duration),
	}
}

func (r *fakeRecognizer) Recognize(ctx context.Context, image []byte) ([]recognition.DetectedFace, error) {
	key := string(image)

	r.mu.Lock()
	r.active++
	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	d := r.delay[key]
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.started != nil {
		r.started <- key
	}
	if r.release != nil {
		<-r.release
	}
	if d > 0 {
		time.Sleep(d)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor[key]; err != nil {
		return nil, err
	}
	return r.faces[key], nil
}

type fakeRepo struct {
	mu          sync.Mutex
	events      map[uuid.UUID]*models.Event
	registered  map[uuid.UUID]map[uuid.UUID]bool
	photos      []*models.Photo
	attendees   []*models.PhotoAttendee
	rosterRows  map[uuid.UUID][]models.RosterRow
	rosterCalls int

	// Error injection
	GetEventError      error
	RegisteredError    error
	CreatePhotoErrorFn func(p *models.Photo) error
	AssociateErrorFor  map[uuid.UUID]error
	RosterError        error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:            make(map[uuid.UUID]*models.Event),
		registered:        make(map[uuid.UUID]map[uuid.UUID]bool),
		rosterRows:        make(map[uuid.UUID][]models.RosterRow),
		AssociateErrorFor: make(map[uuid.UUID]error),
	}
}

func (f *fakeRepo) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if f.GetEventError != nil {
		return nil, f.GetEventError
	}
	return f.events[id], nil
}

func (f *fakeRepo) IsPhotographerRegistered(ctx context.Context, photographerID, eventID uuid.UUID) (bool, error) {
	if f.RegisteredError != nil {
		return false, f.RegisteredError
	}
	return f.registered[eventID][photographerID], nil
}

func (f *fakeRepo) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if f.CreatePhotoErrorFn != nil {
		if err := f.CreatePhotoErrorFn(p); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, p)
	return nil
}

func (f *fakeRepo) CreatePhotoAttendee(ctx context.Context, pa *models.PhotoAttendee) error {
	if err := f.AssociateErrorFor[pa.AttendeeID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attendees = append(f.attendees, pa)
	return nil
}

func (f *fakeRepo) ListEventAttendees(ctx context.Context, eventID uuid.UUID) ([]models.RosterRow, error) {
	f.mu.Lock()
	f.rosterCalls++
	f.mu.Unlock()
	if f.RosterError != nil {
		return nil, f.RosterError
	}
	return f.rosterRows[eventID], nil
}

func (f *fakeRepo) photoURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, 0, len(f.photos))
	for _, p := range f.photos {
		urls = append(urls, p.URL)
	}
	return urls
}

func (f *fakeRepo) addEvent(name string) *models.Event {
	ev := &models.Event{ID: uuid.New(), Code: "EV1", Name: name, Date: time.Now()}
	f.events[ev.ID] = ev
	f.registered[ev.ID] = make(map[uuid.UUID]bool)
	return ev
}

func (f *fakeRepo) addAttendee(eventID uuid.UUID, email string) uuid.UUID {
	id := uuid.New()
	e := email
	f.rosterRows[eventID] = append(f.rosterRows[eventID], models.RosterRow{AttendeeID: id, Email: &e, Enrolled: true})
	return id
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *fakeNotifier) Notify(msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *fakeNotifier) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.sent...)
}

type harness struct {
	repo       *fakeRepo
	store      *fakeStore
	recognizer *fakeRecognizer
	notifier   *fakeNotifier
	event      *models.Event
	grapher    uuid.UUID
	orch       *Orchestrator
}

func newHarness(workers int, pcfg PipelineConfig) *harness {
	h := &harness{
		repo:       newFakeRepo(),
		store:      newFakeStore(),
		recognizer: newFakeRecognizer(),
		notifier:   &fakeNotifier{},
		grapher:    uuid.New(),
	}
	h.event = h.repo.addEvent("Spring Gala")
	h.repo.registered[h.event.ID][h.grapher] = true

	p := NewPipeline(h.store, h.recognizer, h.repo, h.notifier, pcfg)
	h.orch = NewOrchestrator(h.repo, roster.NewLoader(h.repo), p, OrchestratorConfig{MaxPhotos: 20, Workers: workers})
	return h
}

func (h *harness) batch(jobs ...Job) Batch {
	id := h.event.ID
	return Batch{EventID: &id, PhotographerID: h.grapher, Photos: jobs}
}

func face(id uuid.UUID, distance float64) recognition.DetectedFace {
	d := distance
	return recognition.DetectedFace{UserID: &id, Encoding: []float32{0.1, 0.2}, Distance: &d}
}
