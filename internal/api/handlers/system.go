package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextPinger is implemented by the Postgres and MinIO stores.
type ContextPinger interface {
	Ping(ctx context.Context) error
}

// Pinger is implemented by the NATS producer.
type Pinger interface {
	Ping() error
}

type SystemHandler struct {
	db    ContextPinger
	minio ContextPinger
	nats  Pinger
}

// NewSystemHandler builds the health-check handler. nats may be nil when
// notifications are sent over SMTP directly.
func NewSystemHandler(db, minio ContextPinger, nats Pinger) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, nats: nats}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	check := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	check("postgres", h.db.Ping(ctx))
	check("minio", h.minio.Ping(ctx))
	if h.nats != nil {
		check("nats", h.nats.Ping())
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
