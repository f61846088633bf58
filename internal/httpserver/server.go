package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeshield/telemetry-ingest/internal/handlers"
	"github.com/edgeshield/telemetry-ingest/internal/store"
	"github.com/edgeshield/telemetry-ingest/internal/telemetry"
)

// requestIDHeader carries the correlation ID assigned to each request.
const requestIDHeader = "X-Request-ID"

// NewRouter wires the public endpoints and the v1 API.
// Public: / (liveness), /ready, /metrics
// API: /v1/events (POST, GET)
func NewRouter(st *store.PostgresStore, registry *prometheus.Registry, metrics *telemetry.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	// Liveness: confirms the process is running.
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "OK"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(telemetry.Handler(registry)))

	v1 := r.Group("/v1")
	handlers.RegisterEventRoutes(v1, st, metrics)

	return r
}

// requestID assigns a correlation ID when the caller did not supply one and
// echoes it back on the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// accessLog writes one line per completed request.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s request_id=%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			c.GetString("request_id"),
		)
	}
}
