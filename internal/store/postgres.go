package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgeshield/telemetry-ingest/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for edge telemetry events.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertEvents persists the whole batch in a single transaction and returns
// the number of rows written. On any failure nothing from the batch is
// committed; the deferred rollback also covers caller cancellation, so a
// half-written batch is never visible.
func (p *PostgresStore) InsertEvents(ctx context.Context, events []models.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, evt := range events {
		fpJSON, err := marshalFingerprint(evt.Fingerprint)
		if err != nil {
			return 0, err
		}
		batch.Queue(`
			INSERT INTO events(ts, edge_node, client_ip, api_key, path, method, status, decision, reason, score, fingerprint)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, evt.Timestamp, evt.EdgeNode, evt.ClientIP, evt.APIKey, evt.Path, evt.Method,
			evt.Status, evt.Decision, evt.Reason, evt.Score, fpJSON)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit events: %w", err)
	}

	return len(events), nil
}

// QueryEvents returns stored events newest-first, optionally bounded below by
// from (ts >= from), truncated to limit rows. Ties on ts resolve by id
// descending so the order is deterministic.
func (p *PostgresStore) QueryEvents(ctx context.Context, from *time.Time, limit int) ([]models.Event, error) {
	const baseQuery = `
		SELECT id, ts, edge_node, client_ip, api_key, path, method, status, decision, reason, score, fingerprint
		FROM events
	`

	var (
		rows pgx.Rows
		err  error
	)
	if from != nil {
		rows, err = p.pool.Query(ctx, baseQuery+`
			WHERE ts >= $1
			ORDER BY ts DESC, id DESC
			LIMIT $2
		`, from.UTC(), limit)
	} else {
		rows, err = p.pool.Query(ctx, baseQuery+`
			ORDER BY ts DESC, id DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			evt    models.Event
			fpJSON []byte
		)
		if err := rows.Scan(
			&evt.ID, &evt.Timestamp, &evt.EdgeNode, &evt.ClientIP, &evt.APIKey,
			&evt.Path, &evt.Method, &evt.Status, &evt.Decision, &evt.Reason,
			&evt.Score, &fpJSON,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(fpJSON) > 0 {
			var fp models.Fingerprint
			if err := json.Unmarshal(fpJSON, &fp); err != nil {
				return nil, fmt.Errorf("decode fingerprint for event %d: %w", evt.ID, err)
			}
			evt.Fingerprint = &fp
		}
		evt.Timestamp = evt.Timestamp.UTC()
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	return events, nil
}

// marshalFingerprint renders the JSONB column value; nil stays SQL NULL.
func marshalFingerprint(fp *models.Fingerprint) ([]byte, error) {
	if fp == nil {
		return nil, nil
	}
	b, err := json.Marshal(fp)
	if err != nil {
		return nil, fmt.Errorf("encode fingerprint: %w", err)
	}
	return b, nil
}
