package queue

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"graphpipe/internal/modkit/repokit"
	perr "graphpipe/internal/platform/errors"

	"github.com/google/uuid"
)

// PG is a Postgres-backed Queue. All named queues share one table; a message
// lease is taken with FOR UPDATE SKIP LOCKED so concurrent workers never see
// the same visible message twice
type PG struct {
	q          repokit.Queryer
	name       string
	visibility time.Duration
}

// NewPG binds a Postgres queue with the given name and visibility window
func NewPG(q repokit.Queryer, name string, visibility time.Duration) *PG {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &PG{q: repokit.RequireQueryer(q), name: name, visibility: visibility}
}

// Name returns the queue name
func (p *PG) Name() string { return p.name }

// Init creates the backing table and index; safe to call from every worker
func (p *PG) Init(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS queue_messages (
			id            uuid PRIMARY KEY,
			queue         text NOT NULL,
			request_type  text NOT NULL,
			payload       jsonb,
			enqueued_at   timestamptz NOT NULL DEFAULT now(),
			visible_at    timestamptz NOT NULL DEFAULT now(),
			deliveries    int NOT NULL DEFAULT 0
		)
	`
	if _, err := p.q.Exec(ctx, ddl); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInit, "init queue %s", p.name)
	}
	const idx = `
		CREATE INDEX IF NOT EXISTS queue_messages_visible_idx
		ON queue_messages (queue, visible_at, enqueued_at)
	`
	if _, err := p.q.Exec(ctx, idx); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInit, "init queue %s index", p.name)
	}
	return nil
}

// Send enqueues one envelope
func (p *PG) Send(ctx context.Context, env Envelope) error {
	const sql = `
		INSERT INTO queue_messages (id, queue, request_type, payload)
		VALUES ($1, $2, $3, $4)
	`
	var payload any
	if len(env.Data) > 0 {
		payload = []byte(env.Data)
	}
	if _, err := p.q.Exec(ctx, sql, uuid.NewString(), p.name, env.RequestType, payload); err != nil {
		return perr.FromPostgresf(err, "send to queue %s", p.name)
	}
	return nil
}

// Receive leases the oldest visible message and hides it for the visibility
// window. Returns (nil, nil) when the queue is empty
func (p *PG) Receive(ctx context.Context) (*Message, error) {
	const sql = `
		WITH next AS (
			SELECT id
			FROM queue_messages
			WHERE queue = $1 AND visible_at <= now()
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_messages m
		SET visible_at = now() + make_interval(secs => $2),
		    deliveries = m.deliveries + 1
		FROM next
		WHERE m.id = next.id
		RETURNING m.id, m.request_type, m.payload, m.deliveries
	`
	var (
		id          string
		requestType string
		payload     []byte
		deliveries  int
	)
	row := p.q.QueryRow(ctx, sql, p.name, p.visibility.Seconds())
	if err := row.Scan(&id, &requestType, &payload, &deliveries); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, nil
		}
		return nil, perr.FromPostgresf(err, "receive from queue %s", p.name)
	}
	return &Message{
		Envelope:   Envelope{RequestType: requestType, Data: payload},
		ID:         id,
		Deliveries: deliveries,
	}, nil
}

// Delete acknowledges a received message; deleting an already-deleted message
// is a no-op so redelivered duplicates ack cleanly
func (p *PG) Delete(ctx context.Context, msg *Message) error {
	if msg == nil || msg.ID == "" {
		return perr.InvalidArgf("delete requires a received message")
	}
	if _, err := p.q.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, msg.ID); err != nil {
		return perr.FromPostgresf(err, "delete from queue %s", p.name)
	}
	return nil
}

// Count returns the number of messages in the queue, visible or not.
// Best effort, diagnostics only
func (p *PG) Count(ctx context.Context) (int, error) {
	var n int
	row := p.q.QueryRow(ctx, `SELECT count(*) FROM queue_messages WHERE queue = $1`, p.name)
	if err := row.Scan(&n); err != nil {
		return 0, perr.FromPostgresf(err, "count queue %s", p.name)
	}
	return n, nil
}
