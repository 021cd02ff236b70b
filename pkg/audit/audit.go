// Package audit records who did what to which resource. Events are
// persisted to PostgreSQL and pruned by a scheduled retention job.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/contextkeys"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/storage"
)

// Event is one audit trail entry. TenantID and UserID are nil for
// platform-level actions performed outside a tenant context.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  *uuid.UUID     `json:"tenant_id,omitempty"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id,omitempty"`
	OldValue  map[string]any `json:"old_value,omitempty"`
	NewValue  map[string]any `json:"new_value,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, event *Event) error
}

// NopLogger discards all events. Used when auditing is disabled.
type NopLogger struct{}

// Record implements Logger
func (NopLogger) Record(ctx context.Context, event *Event) error { return nil }

// MultiLogger fans events out to several loggers.
type MultiLogger []Logger

// Record implements Logger
func (m MultiLogger) Record(ctx context.Context, event *Event) error {
	var errs []error
	for _, l := range m {
		if err := l.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DBLogger persists audit events to PostgreSQL
type DBLogger struct {
	db      *sql.DB
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewDBLogger creates a database-backed audit logger. metrics may be nil.
func NewDBLogger(db *sql.DB, log *observability.Logger, metrics *observability.Metrics) *DBLogger {
	return &DBLogger{db: db, log: log, metrics: metrics}
}

// Record persists the event, filling ID, CreatedAt, and the request ID
// from the context when unset.
func (l *DBLogger) Record(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}

	oldJSON, err := marshalValue(event.OldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshalValue(event.NewValue)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_events (id, tenant_id, user_id, action, entity, entity_id, old_value, new_value, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = l.db.ExecContext(ctx, query,
		event.ID, event.TenantID, event.UserID, event.Action, event.Entity,
		event.EntityID, oldJSON, newJSON, event.RequestID, event.CreatedAt)
	if err != nil {
		l.observe(event.Action, "error")
		l.log.WithError(err).WithField("action", event.Action).Error("failed to record audit event")
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	l.observe(event.Action, "ok")
	return nil
}

func (l *DBLogger) observe(action, status string) {
	if l.metrics != nil {
		l.metrics.AuditEventsTotal.WithLabelValues(action, status).Inc()
	}
}

func marshalValue(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit value: %w", err)
	}
	return data, nil
}

// Filter narrows a List query. Zero fields are ignored.
type Filter struct {
	TenantID *uuid.UUID
	UserID   *uuid.UUID
	Action   string
	Limit    int
}

// List returns events matching the filter, newest first.
func (l *DBLogger) List(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `
		SELECT id, tenant_id, user_id, action, entity, entity_id, old_value, new_value, request_id, created_at
		FROM audit_events
		WHERE 1=1
	`
	args := []any{}
	argNum := 1

	if filter.TenantID != nil {
		query += fmt.Sprintf(" AND tenant_id = $%d", argNum)
		args = append(args, *filter.TenantID)
		argNum++
	}
	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, *filter.UserID)
		argNum++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argNum)
		args = append(args, filter.Action)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		event := &Event{}
		var oldJSON, newJSON []byte
		if err := rows.Scan(
			&event.ID, &event.TenantID, &event.UserID, &event.Action, &event.Entity,
			&event.EntityID, &oldJSON, &newJSON, &event.RequestID, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &event.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &event.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

// MigrationsTable tracks applied audit store migrations.
const MigrationsTable = "audit_migrations"

// GetMigrations returns all audit store migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id UUID PRIMARY KEY,
					tenant_id UUID,
					user_id UUID,
					action VARCHAR(255) NOT NULL,
					entity VARCHAR(255) NOT NULL,
					entity_id VARCHAR(255),
					old_value JSONB,
					new_value JSONB,
					request_id VARCHAR(100),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_tenant_id ON audit_events(tenant_id);
				CREATE INDEX idx_audit_events_action ON audit_events(action);
				CREATE INDEX idx_audit_events_created_at ON audit_events(created_at DESC);
			`,
		},
	}
}
