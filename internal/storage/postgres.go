package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	return NewPostgresStoreFromDSN(cfg.DSN(), cfg.MaxConns)
}

func NewPostgresStoreFromDSN(dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Events ---

const eventColumns = `id, code, name, location, date, created_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	ev := &models.Event{}
	if err := row.Scan(&ev.ID, &ev.Code, &ev.Name, &ev.Location, &ev.Date, &ev.CreatedAt); err != nil {
		return nil, err
	}
	return ev, nil
}

// GetEvent returns nil, nil when the event does not exist.
func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// GetEventByCode returns nil, nil when no event has the code.
func (s *PostgresStore) GetEventByCode(ctx context.Context, code string) (*models.Event, error) {
	ev, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event by code: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, code, name, location, date) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		ev.ID, ev.Code, ev.Name, ev.Location, ev.Date,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// --- Photographers ---

func (s *PostgresStore) IsPhotographerRegistered(ctx context.Context, photographerID, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM photographers_events WHERE photographer_id = $1 AND event_id = $2)`,
		photographerID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check photographer registration: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RegisterPhotographer(ctx context.Context, photographerID, eventID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO photographers_events (photographer_id, event_id) VALUES ($1, $2)`,
		photographerID, eventID)
	if err != nil {
		return fmt.Errorf("register photographer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPhotographerEvents(ctx context.Context, photographerID uuid.UUID) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.code, e.name, e.location, e.date, e.created_at
		 FROM events e
		 JOIN photographers_events pe ON pe.event_id = e.id
		 WHERE pe.photographer_id = $1
		 ORDER BY e.date DESC`, photographerID)
	if err != nil {
		return nil, fmt.Errorf("list photographer events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// PhotographerEventStatistics counts the photographer's events: all of them,
// those dated today and those dated after today.
func (s *PostgresStore) PhotographerEventStatistics(ctx context.Context, photographerID uuid.UUID, today time.Time) (models.EventStatistics, error) {
	var st models.EventStatistics
	day := today.Format("2006-01-02")
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE e.date = $2::date),
		        COUNT(*) FILTER (WHERE e.date > $2::date)
		 FROM events e
		 JOIN photographers_events pe ON pe.event_id = e.id
		 WHERE pe.photographer_id = $1`,
		photographerID, day,
	).Scan(&st.Total, &st.Active, &st.Future)
	if err != nil {
		return st, fmt.Errorf("photographer event statistics: %w", err)
	}
	return st, nil
}

// --- Attendees ---

// ListEventAttendees returns every attendee association of the event joined to
// the attendee's enrollment and email. Incomplete joins are returned as-is.
func (s *PostgresStore) ListEventAttendees(ctx context.Context, eventID uuid.UUID) ([]models.RosterRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ae.attendee_id, u.email, a.face_encoding IS NOT NULL
		 FROM attendees_events ae
		 LEFT JOIN attendees a ON a.user_id = ae.attendee_id
		 LEFT JOIN users u ON u.id = ae.attendee_id
		 WHERE ae.event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event attendees: %w", err)
	}
	defer rows.Close()

	var out []models.RosterRow
	for rows.Next() {
		var r models.RosterRow
		if err := rows.Scan(&r.AttendeeID, &r.Email, &r.Enrolled); err != nil {
			return nil, fmt.Errorf("scan event attendee: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event attendees: %w", err)
	}
	return out, nil
}

// UpsertAttendee stores the attendee's enrolled face encoding and face photo URL.
func (s *PostgresStore) UpsertAttendee(ctx context.Context, a *models.Attendee) error {
	vec := pgvector.NewVector(a.FaceEncoding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attendees (user_id, face_encoding, url) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET face_encoding = EXCLUDED.face_encoding, url = EXCLUDED.url, updated_at = NOW()
		 RETURNING updated_at`,
		a.UserID, vec, a.FaceURL,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert attendee: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAttendeeRegistered(ctx context.Context, attendeeID, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendees_events WHERE attendee_id = $1 AND event_id = $2)`,
		attendeeID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendee registration: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RegisterAttendee(ctx context.Context, attendeeID, eventID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendees_events (attendee_id, event_id) VALUES ($1, $2)`,
		attendeeID, eventID)
	if err != nil {
		return fmt.Errorf("register attendee: %w", err)
	}
	return nil
}

// --- Photos ---

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, event_id, photographer_id, url, object_key) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		p.ID, p.EventID, p.PhotographerID, p.URL, p.ObjectKey,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePhotoAttendee(ctx context.Context, pa *models.PhotoAttendee) error {
	if pa.ID == uuid.Nil {
		pa.ID = uuid.New()
	}
	var vec *pgvector.Vector
	if len(pa.FaceEncoding) > 0 {
		v := pgvector.NewVector(pa.FaceEncoding)
		vec = &v
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos_attendees (id, photo_id, attendee_id, face_encoding, distance) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		pa.ID, pa.PhotoID, pa.AttendeeID, vec, pa.Distance,
	).Scan(&pa.CreatedAt)
	if err != nil {
		return fmt.Errorf("create photo attendee: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEventPhotos(ctx context.Context, eventID uuid.UUID) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, photographer_id, url, object_key, created_at
		 FROM photos WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.PhotographerID, &p.URL, &p.ObjectKey, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *PostgresStore) ListPhotoAttendees(ctx context.Context, photoID uuid.UUID) ([]models.PhotoAttendee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, attendee_id, face_encoding, distance, created_at
		 FROM photos_attendees WHERE photo_id = $1 ORDER BY created_at`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list photo attendees: %w", err)
	}
	defer rows.Close()

	var out []models.PhotoAttendee
	for rows.Next() {
		var pa models.PhotoAttendee
		var vec *pgvector.Vector
		if err := rows.Scan(&pa.ID, &pa.PhotoID, &pa.AttendeeID, &vec, &pa.Distance, &pa.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo attendee: %w", err)
		}
		if vec != nil {
			pa.FaceEncoding = vec.Slice()
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

// --- Users ---

// CreateUser inserts a bare user row. Account management lives elsewhere;
// this exists for seeding and tests.
func (s *PostgresStore) CreateUser(ctx context.Context, email, name, role string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, role) VALUES ($1, $2, $3, $4)`,
		id, email, name, role)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}
