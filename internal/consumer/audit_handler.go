package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS learning_event_log (
    id BIGSERIAL PRIMARY KEY,
    event_type TEXT NOT NULL,
    student_id TEXT NOT NULL,
    topic TEXT NOT NULL,
    partition INT NOT NULL,
    record_offset BIGINT NOT NULL,
    payload JSONB NOT NULL,
    occurred_at TIMESTAMPTZ,
    received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (topic, partition, record_offset)
)`

// AuditHandler appends consumed events to the learning_event_log table.
type AuditHandler struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool, now: time.Now}
}

// EnsureSchema creates the audit table when it does not exist.
func (h *AuditHandler) EnsureSchema(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("create learning_event_log: %w", err)
	}
	return nil
}

// Handle stores the event. Redelivered offsets are ignored.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	var occurredAt interface{}
	if !msg.Timestamp.IsZero() {
		occurredAt = msg.Timestamp.UTC()
	}

	_, err := h.pool.Exec(ctx,
		`INSERT INTO learning_event_log (event_type, student_id, topic, partition, record_offset, payload, occurred_at, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.StudentID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		occurredAt,
		h.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}
