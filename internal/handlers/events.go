package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgeshield/telemetry-ingest/internal/models"
	"github.com/edgeshield/telemetry-ingest/internal/telemetry"
)

const (
	// defaultQueryLimit applies when the caller omits ?limit.
	defaultQueryLimit = 100
	// maxQueryLimit caps a single read so one caller cannot drag the whole
	// table through the pool.
	maxQueryLimit = 1000
)

// EventStore is the persistence surface the event routes need.
// *store.PostgresStore satisfies it.
type EventStore interface {
	InsertEvents(ctx context.Context, events []models.Event) (int, error)
	QueryEvents(ctx context.Context, from *time.Time, limit int) ([]models.Event, error)
}

// elementError names the offending fields of one batch element.
type elementError struct {
	Index  int      `json:"index"`
	Fields []string `json:"fields"`
}

// RegisterEventRoutes registers the ingestion and read endpoints.
//
// POST /v1/events
//   - Body: JSON array of candidate events
//   - Every element is validated before any write; one bad element rejects
//     the whole batch
//   - Durable: the batch commits in a single transaction or not at all
//
// GET /v1/events?from_time=<RFC3339>&limit=<int>
// - Returns stored events newest-first, at most limit rows
func RegisterEventRoutes(r gin.IRoutes, st EventStore, metrics *telemetry.Metrics) {
	r.POST("/events", func(c *gin.Context) {
		var batch []models.EventCreate
		if err := c.ShouldBindJSON(&batch); err != nil {
			metrics.ObserveIngest("invalid", 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if len(batch) == 0 {
			metrics.ObserveIngest("invalid", 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one event required"})
			return
		}

		// Validate the full batch up front so the caller sees every
		// offending field, not just the first, and the store is never
		// touched for a partially valid batch.
		var invalid []elementError
		for i := range batch {
			if verr := batch[i].Validate(); verr != nil {
				invalid = append(invalid, elementError{Index: i, Fields: verr.Fields})
			}
		}
		if len(invalid) > 0 {
			metrics.ObserveIngest("invalid", 0)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "event validation failed",
				"details": invalid,
			})
			return
		}

		// Time of receipt is stamped here, once per batch, so events that
		// omitted a timestamp share the moment the server accepted them.
		now := time.Now().UTC()
		events := make([]models.Event, 0, len(batch))
		for i := range batch {
			events = append(events, batch[i].Event(now))
		}

		n, err := st.InsertEvents(c.Request.Context(), events)
		if err != nil {
			metrics.ObserveIngest("error", 0)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		metrics.ObserveIngest("ok", n)
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Successfully ingested %d events", n),
		})
	})

	r.GET("/events", func(c *gin.Context) {
		start := time.Now()

		var from *time.Time
		if raw := c.Query("from_time"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from_time must be RFC3339"})
				return
			}
			utc := parsed.UTC()
			from = &utc
		}

		limit := defaultQueryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > maxQueryLimit {
			limit = maxQueryLimit
		}

		events, err := st.QueryEvents(c.Request.Context(), from, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		metrics.ObserveQuery(time.Since(start))
		c.JSON(http.StatusOK, events)
	})
}
