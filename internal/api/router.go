package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/eventlens/internal/api/handlers"
	"github.com/your-org/eventlens/internal/auth"
)

type RouterConfig struct {
	// MetricsKey guards /metrics and /debug/pprof. Empty leaves them open.
	MetricsKey     string
	Pprof          bool
	MaxUploadBytes int64

	Verifier auth.Verifier

	System       *handlers.SystemHandler
	Uploads      *handlers.UploadHandler
	Photographer *handlers.PhotographerHandler
	Attendee     *handlers.AttendeeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig()))

	// System endpoints (no auth)
	r.GET("/healthz", cfg.System.Healthz)
	r.GET("/readyz", cfg.System.Readyz)

	ops := r.Group("/", auth.RequireOpsKey(cfg.MetricsKey))
	ops.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Pprof {
		pprof.RouteRegister(ops, "debug/pprof")
	}

	v1 := r.Group("/v1", auth.Authenticate(cfg.Verifier))

	photographer := v1.Group("/photographer", auth.RequireRole(auth.RolePhotographer))
	photographer.GET("/events", cfg.Photographer.Events)
	photographer.GET("/events/statistics", cfg.Photographer.Statistics)
	photographer.POST("/register", cfg.Photographer.Register)
	photographer.POST("/upload", cfg.Uploads.Upload)
	photographer.GET("/uploads/ws", cfg.Uploads.Progress)

	attendee := v1.Group("/attendee", auth.RequireRole(auth.RoleAttendee))
	attendee.POST("/checkin", cfg.Attendee.Checkin)

	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	return c
}
