package models

import (
	"fmt"
	"strings"
	"time"
)

// Fingerprint is the optional client-characterization block attached to an
// event by the edge. Both sub-fields are optional; a nil *Fingerprint on an
// event means the edge reported no fingerprint data at all.
type Fingerprint struct {
	UA            *string  `json:"ua,omitempty"`
	HeaderEntropy *float64 `json:"header_entropy,omitempty"`
}

// EventCreate is one element of the POST /v1/events payload.
// timestamp is optional RFC3339; when omitted the ingest path stamps the
// event with the time of receipt. Status is a pointer so that an absent
// field is distinguishable from a literal 0.
type EventCreate struct {
	Timestamp   string       `json:"timestamp,omitempty"`
	EdgeNode    string       `json:"edge_node"`
	ClientIP    string       `json:"client_ip"`
	APIKey      *string      `json:"api_key,omitempty"`
	Path        string       `json:"path"`
	Method      string       `json:"method"`
	Status      *int         `json:"status"`
	Decision    string       `json:"decision"`
	Reason      *string      `json:"reason,omitempty"`
	Score       *float64     `json:"score,omitempty"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
}

// Event is a persisted edge decision. ID is assigned by the store at commit
// time and events are immutable afterwards.
type Event struct {
	ID          int64        `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	EdgeNode    string       `json:"edge_node"`
	ClientIP    string       `json:"client_ip"`
	APIKey      *string      `json:"api_key,omitempty"`
	Path        string       `json:"path"`
	Method      string       `json:"method"`
	Status      int          `json:"status"`
	Decision    string       `json:"decision"`
	Reason      *string      `json:"reason,omitempty"`
	Score       *float64     `json:"score,omitempty"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
}

// ValidationError reports every offending field of a single EventCreate.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// Validate checks required fields and timestamp parseability. It returns a
// *ValidationError naming all offending fields, or nil when the input is
// acceptable. Defaulting an absent timestamp is the caller's job, not the
// model's, so "time of receipt" stays centralized in the ingest path.
func (c *EventCreate) Validate() *ValidationError {
	var bad []string

	if c.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, c.Timestamp); err != nil {
			bad = append(bad, "timestamp")
		}
	}
	if c.EdgeNode == "" {
		bad = append(bad, "edge_node")
	}
	if c.ClientIP == "" {
		bad = append(bad, "client_ip")
	}
	if c.Path == "" {
		bad = append(bad, "path")
	}
	if c.Method == "" {
		bad = append(bad, "method")
	}
	if c.Status == nil {
		bad = append(bad, "status")
	}
	if c.Decision == "" {
		bad = append(bad, "decision")
	}

	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// Event converts a validated input into a persistable Event, stamping ts
// when the caller omitted a timestamp. ID stays zero until the store
// assigns it. Validate must have returned nil first.
func (c *EventCreate) Event(now time.Time) Event {
	ts := now.UTC()
	if c.Timestamp != "" {
		// Already proven parseable by Validate.
		parsed, _ := time.Parse(time.RFC3339, c.Timestamp)
		ts = parsed.UTC()
	}

	return Event{
		Timestamp:   ts,
		EdgeNode:    c.EdgeNode,
		ClientIP:    c.ClientIP,
		APIKey:      c.APIKey,
		Path:        c.Path,
		Method:      c.Method,
		Status:      *c.Status,
		Decision:    c.Decision,
		Reason:      c.Reason,
		Score:       c.Score,
		Fingerprint: c.Fingerprint,
	}
}
