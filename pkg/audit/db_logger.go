package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/platinummonkey/stockroom/pkg/storage"
)

// DBLogger implements audit logging to the audit_logs table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The table is
// created by Migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Migrations returns the audit_logs table migrations (PostgreSQL dialect)
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Component:   "audit",
			Version:     1,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					user_id BIGINT,
					organization_id BIGINT,
					resource VARCHAR(64),
					resource_id VARCHAR(255),
					request_id VARCHAR(100),
					route VARCHAR(128),
					reason VARCHAR(64),
					message TEXT,
					error_message TEXT,
					metadata JSONB,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_organization_id ON audit_logs(organization_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource, resource_id);
			`,
		},
	}
}

var auditColumns = []string{
	"id", "timestamp", "event_type", "status",
	"user_id", "organization_id",
	"resource", "resource_id",
	"request_id", "route",
	"reason", "message", "error_message", "metadata",
}

// Log writes an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (
			timestamp, event_type, status,
			user_id, organization_id,
			resource, resource_id,
			request_id, route,
			reason, message, error_message, metadata
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7,
			$8, $9,
			$10, $11, $12, $13
		) RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.UserID, event.OrganizationID,
		event.Resource, event.ResourceID,
		event.RequestID, event.Route,
		event.Reason, event.Message, event.ErrorMessage, metadataJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Search returns audit events matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	q := sq.Select(auditColumns...).From("audit_logs").PlaceholderFormat(sq.Dollar)

	if filter.StartTime != nil {
		q = q.Where(sq.GtOrEq{"timestamp": *filter.StartTime})
	}
	if filter.EndTime != nil {
		q = q.Where(sq.LtOrEq{"timestamp": *filter.EndTime})
	}
	if filter.UserID != nil {
		q = q.Where(sq.Eq{"user_id": *filter.UserID})
	}
	if filter.OrganizationID != nil {
		q = q.Where(sq.Eq{"organization_id": *filter.OrganizationID})
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			types[i] = string(et)
		}
		q = q.Where(sq.Eq{"event_type": types})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.Resource != "" {
		q = q.Where(sq.Eq{"resource": filter.Resource})
	}

	q = q.OrderBy("timestamp DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit search: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events := make([]*AuditEvent, 0)
	for rows.Next() {
		event := &AuditEvent{}
		var (
			eventType, status                              string
			resource, resourceID, requestID, route, reason sql.NullString
			message, errorMessage                          sql.NullString
			metadataJSON                                   []byte
		)

		err := rows.Scan(
			&event.ID, &event.Timestamp, &eventType, &status,
			&event.UserID, &event.OrganizationID,
			&resource, &resourceID,
			&requestID, &route,
			&reason, &message, &errorMessage, &metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		event.Resource = resource.String
		event.ResourceID = resourceID.String
		event.RequestID = requestID.String
		event.Route = route.String
		event.Reason = reason.String
		event.Message = message.String
		event.ErrorMessage = errorMessage.String

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return events, nil
}

// Close is a no-op; the connection is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}
