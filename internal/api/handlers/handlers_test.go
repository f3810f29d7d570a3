package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/auth"
	"github.com/your-org/eventlens/internal/ingest"
	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/internal/recognition"
	"github.com/your-org/eventlens/internal/storage"
	"github.com/your-org/eventlens/pkg/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func asUser(id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth.WithPrincipal(c, &auth.Principal{UserID: id})
		c.Next()
	}
}

type multipartFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...multipartFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body dto.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Message
}

// --- uploads ---

type fakeRunner struct {
	got    ingest.Batch
	data   [][]byte
	result *ingest.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, b ingest.Batch) (*ingest.Result, error) {
	f.got = b
	for _, job := range b.Photos {
		rc, err := job.Open()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(rc)
		rc.Close()
		f.data = append(f.data, buf.Bytes())
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	res := &ingest.Result{}
	for i, job := range b.Photos {
		st := ingest.Status{Filename: job.Filename, Success: true, Message: ingest.MsgSuccess, Stage: ingest.StageDone}
		if i == 1 {
			st = ingest.Status{Filename: job.Filename, Message: ingest.MsgUploadFailed, Stage: ingest.StageUploading}
		}
		res.Statuses = append(res.Statuses, st)
		if b.Observer != nil {
			b.Observer(i, st)
		}
	}
	return res, nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []*dto.UploadProgressEvent
	served []uuid.UUID
}

func (h *fakeHub) Publish(evt *dto.UploadProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt)
}

func (h *fakeHub) Serve(c *gin.Context, eventID uuid.UUID) {
	h.served = append(h.served, eventID)
	c.Status(http.StatusOK)
}

type fakeRegistrations struct {
	ok  bool
	err error
}

func (f fakeRegistrations) IsPhotographerRegistered(ctx context.Context, photographerID, eventID uuid.UUID) (bool, error) {
	return f.ok, f.err
}

func uploadRouter(h *UploadHandler, user uuid.UUID) *gin.Engine {
	r := gin.New()
	r.POST("/upload", asUser(user), h.Upload)
	r.GET("/ws", asUser(user), h.Progress)
	return r
}

func TestUpload_ReturnsStatusesInOrder(t *testing.T) {
	runner := &fakeRunner{}
	hub := &fakeHub{}
	user := uuid.New()
	eventID := uuid.New()
	r := uploadRouter(NewUploadHandler(runner, fakeRegistrations{ok: true}, hub), user)

	body, ct := multipartBody(t, map[string]string{"event_id": eventID.String()},
		multipartFile{"photos", "a.jpg", []byte("A")},
		multipartFile{"photos", "b.jpg", []byte("B")},
		multipartFile{"photos", "a.jpg", []byte("A2")},
	)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.UploadStatuses, 3)
	assert.Equal(t, dto.UploadStatus{Filename: "a.jpg", Success: true, Message: ingest.MsgSuccess}, resp.UploadStatuses[0])
	assert.Equal(t, dto.UploadStatus{Filename: "b.jpg", Success: false, Message: ingest.MsgUploadFailed}, resp.UploadStatuses[1])
	assert.Equal(t, "a.jpg", resp.UploadStatuses[2].Filename)

	require.NotNil(t, runner.got.EventID)
	assert.Equal(t, eventID, *runner.got.EventID)
	assert.Equal(t, user, runner.got.PhotographerID)
	assert.Equal(t, [][]byte{[]byte("A"), []byte("B"), []byte("A2")}, runner.data)

	require.Len(t, hub.events, 3)
	assert.Equal(t, eventID, hub.events[0].EventID)
	assert.Equal(t, 3, hub.events[0].Total)
}

func TestUpload_MissingEventIDIsPassedThrough(t *testing.T) {
	runner := &fakeRunner{err: apperr.Validation("upload.validate", "Event ID is required.")}
	r := uploadRouter(NewUploadHandler(runner, fakeRegistrations{}, nil), uuid.New())

	body, ct := multipartBody(t, nil, multipartFile{"photos", "a.jpg", []byte("A")})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, runner.got.EventID)
	assert.Equal(t, "Event ID is required.", decodeMessage(t, w))
}

func TestUpload_BatchErrorsAreSingleMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperr.NotFound("upload.event", "Event not found."), http.StatusNotFound},
		{"not associated", apperr.Authorization("upload.authorize", "You are not associated with this event."), http.StatusForbidden},
		{"roster", apperr.Upstream("roster.load", "Failed to fetch attendees for the event.", errors.New("x")), http.StatusBadGateway},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := uploadRouter(NewUploadHandler(&fakeRunner{err: tc.err}, fakeRegistrations{}, nil), uuid.New())

			body, ct := multipartBody(t, map[string]string{"event_id": uuid.NewString()},
				multipartFile{"photos", "a.jpg", []byte("A")})
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			assert.NotContains(t, w.Body.String(), "uploadStatuses")
			assert.NotEmpty(t, decodeMessage(t, w))
		})
	}
}

func TestUpload_InvalidEventIDAndNonMultipart(t *testing.T) {
	runner := &fakeRunner{}
	r := uploadRouter(NewUploadHandler(runner, fakeRegistrations{}, nil), uuid.New())

	body, ct := multipartBody(t, map[string]string{"event_id": "not-a-uuid"}, multipartFile{"photos", "a.jpg", []byte("A")})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{"event_id":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event ID and at least one photo are required.", decodeMessage(t, w))
}

func TestProgress(t *testing.T) {
	hub := &fakeHub{}
	eventID := uuid.New()

	r := uploadRouter(NewUploadHandler(&fakeRunner{}, fakeRegistrations{ok: false}, hub), uuid.New())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?event_id="+eventID.String(), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?event_id=bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = uploadRouter(NewUploadHandler(&fakeRunner{}, fakeRegistrations{ok: true}, hub), uuid.New())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?event_id="+eventID.String(), nil))
	assert.Equal(t, []uuid.UUID{eventID}, hub.served)
}

// --- photographer ---

type fakePhotographerStore struct {
	events     map[string]*models.Event
	registered map[uuid.UUID]bool
	list       []models.Event
	stats      models.EventStatistics
	statsDay   time.Time
	err        error
}

func (f *fakePhotographerStore) ListPhotographerEvents(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	return f.list, f.err
}

func (f *fakePhotographerStore) PhotographerEventStatistics(ctx context.Context, id uuid.UUID, today time.Time) (models.EventStatistics, error) {
	f.statsDay = today
	return f.stats, f.err
}

func (f *fakePhotographerStore) GetEventByCode(ctx context.Context, code string) (*models.Event, error) {
	return f.events[code], f.err
}

func (f *fakePhotographerStore) IsPhotographerRegistered(ctx context.Context, pid, eid uuid.UUID) (bool, error) {
	return f.registered[eid], nil
}

func (f *fakePhotographerStore) RegisterPhotographer(ctx context.Context, pid, eid uuid.UUID) error {
	f.registered[eid] = true
	return nil
}

func photographerRouter(h *PhotographerHandler) *gin.Engine {
	r := gin.New()
	user := asUser(uuid.New())
	r.GET("/events", user, h.Events)
	r.GET("/events/statistics", user, h.Statistics)
	r.POST("/register", user, h.Register)
	return r
}

func TestPhotographer_EventsAndStatistics(t *testing.T) {
	date := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &fakePhotographerStore{
		list:  []models.Event{{ID: uuid.New(), Code: "GALA", Name: "Gala", Location: "Hall", Date: date}},
		stats: models.EventStatistics{Total: 3, Active: 1, Future: 2},
	}
	h := NewPhotographerHandler(store)
	fixed := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	r := photographerRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var events []dto.EventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "2026-05-01", events[0].Date)
	assert.Equal(t, "GALA", events[0].Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/statistics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalEvents":3,"activeEvents":1,"futureEvents":2}`, w.Body.String())
	assert.Equal(t, fixed, store.statsDay)
}

func TestPhotographer_EventsEmptyIsArray(t *testing.T) {
	r := photographerRouter(NewPhotographerHandler(&fakePhotographerStore{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPhotographer_Register(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Code: "GALA", Name: "Gala"}
	store := &fakePhotographerStore{
		events:     map[string]*models.Event{"GALA": ev},
		registered: map[uuid.UUID]bool{},
	}
	r := photographerRouter(NewPhotographerHandler(store))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event code is required.", decodeMessage(t, w))

	w = post(`{"event_code":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(`{"event_code":"GALA"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `Successfully registered for the event "Gala".`, decodeMessage(t, w))

	w = post(`{"event_code":"GALA"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "You are already registered for this event.", decodeMessage(t, w))
}

// --- attendee ---

type fakeAttendeeStore struct {
	events     map[string]*models.Event
	registered map[uuid.UUID]bool
	upserted   []*models.Attendee
}

func (f *fakeAttendeeStore) GetEventByCode(ctx context.Context, code string) (*models.Event, error) {
	return f.events[code], nil
}

func (f *fakeAttendeeStore) IsAttendeeRegistered(ctx context.Context, aid, eid uuid.UUID) (bool, error) {
	return f.registered[eid], nil
}

func (f *fakeAttendeeStore) UpsertAttendee(ctx context.Context, a *models.Attendee) error {
	f.upserted = append(f.upserted, a)
	return nil
}

func (f *fakeAttendeeStore) RegisterAttendee(ctx context.Context, aid, eid uuid.UUID) error {
	f.registered[eid] = true
	return nil
}

type fakeEncoder struct {
	enc []float32
	err error
}

func (f fakeEncoder) Encode(ctx context.Context, image []byte) ([]float32, error) {
	return f.enc, f.err
}

type fakeFaceStore struct {
	dirs []string
}

func (f *fakeFaceStore) Store(ctx context.Context, dir string, data []byte, contentType, filename string) (storage.StoredObject, error) {
	f.dirs = append(f.dirs, dir)
	return storage.StoredObject{Key: dir + "/k.jpg", URL: "https://cdn/" + dir + "/k.jpg"}, nil
}

func TestAttendee_Checkin(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Code: "GALA", Name: "Gala"}
	user := uuid.New()

	newRouter := func(enc FaceEncoder, store *fakeAttendeeStore, faces *fakeFaceStore) *gin.Engine {
		r := gin.New()
		r.POST("/checkin", asUser(user), NewAttendeeHandler(store, enc, faces).Checkin)
		return r
	}
	checkin := func(r *gin.Engine, code string, withPhoto bool) *httptest.ResponseRecorder {
		var files []multipartFile
		if withPhoto {
			files = append(files, multipartFile{"face_photo", "me.jpg", []byte("face")})
		}
		body, ct := multipartBody(t, map[string]string{"event_code": code}, files...)
		req := httptest.NewRequest(http.MethodPost, "/checkin", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("success", func(t *testing.T) {
		store := &fakeAttendeeStore{events: map[string]*models.Event{"GALA": ev}, registered: map[uuid.UUID]bool{}}
		faces := &fakeFaceStore{}
		r := newRouter(fakeEncoder{enc: []float32{0.1, 0.2}}, store, faces)

		w := checkin(r, "GALA", true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Check-in successful!", decodeMessage(t, w))

		require.Len(t, store.upserted, 1)
		assert.Equal(t, user, store.upserted[0].UserID)
		assert.Equal(t, []float32{0.1, 0.2}, store.upserted[0].FaceEncoding)
		assert.Equal(t, "https://cdn/faces/k.jpg", store.upserted[0].FaceURL)
		assert.Equal(t, []string{faceDir}, faces.dirs)
		assert.True(t, store.registered[ev.ID])

		w = checkin(r, "GALA", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "You are already registered for this event.", decodeMessage(t, w))
	})

	t.Run("missing inputs", func(t *testing.T) {
		store := &fakeAttendeeStore{events: map[string]*models.Event{"GALA": ev}, registered: map[uuid.UUID]bool{}}
		r := newRouter(fakeEncoder{}, store, &fakeFaceStore{})

		assert.Equal(t, http.StatusBadRequest, checkin(r, "", true).Code)
		assert.Equal(t, http.StatusBadRequest, checkin(r, "GALA", false).Code)
	})

	t.Run("unknown event", func(t *testing.T) {
		store := &fakeAttendeeStore{events: map[string]*models.Event{}, registered: map[uuid.UUID]bool{}}
		r := newRouter(fakeEncoder{}, store, &fakeFaceStore{})
		assert.Equal(t, http.StatusNotFound, checkin(r, "NOPE", true).Code)
	})

	t.Run("no face", func(t *testing.T) {
		store := &fakeAttendeeStore{events: map[string]*models.Event{"GALA": ev}, registered: map[uuid.UUID]bool{}}
		faces := &fakeFaceStore{}
		r := newRouter(fakeEncoder{err: recognition.ErrNoFace}, store, faces)

		w := checkin(r, "GALA", true)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, faces.dirs)
		assert.Empty(t, store.upserted)
	})

	t.Run("recognition down", func(t *testing.T) {
		store := &fakeAttendeeStore{events: map[string]*models.Event{"GALA": ev}, registered: map[uuid.UUID]bool{}}
		r := newRouter(fakeEncoder{err: &recognition.RecognitionError{Reason: "request failed"}}, store, &fakeFaceStore{})

		w := checkin(r, "GALA", true)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Failed to process face encoding.", decodeMessage(t, w))
	})
}
