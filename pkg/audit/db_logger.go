package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBLogger persists audit entries through database/sql. The DDL and
// placeholder style work with both the sqlite3 and pq drivers.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_log table exists
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_log table: %w", err)
	}
	return logger, nil
}

// ensureTable creates the audit_log table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		resource_type VARCHAR(64) NOT NULL,
		resource_id VARCHAR(255) NOT NULL,
		resource_name VARCHAR(255),
		actor VARCHAR(255),
		branch_id VARCHAR(64),
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_log_event_type ON audit_log(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON audit_log(resource_type, resource_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Record appends an audit entry
func (l *DBLogger) Record(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_log (
			event_type, resource_type, resource_id, resource_name,
			actor, branch_id, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := l.db.ExecContext(ctx, query,
		entry.EventType, entry.ResourceType, entry.ResourceID, entry.ResourceName,
		entry.Actor, entry.BranchID, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Search returns entries matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter Filter) ([]*Entry, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.StartTime != nil {
		addCondition("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		addCondition("timestamp <= $%d", *filter.EndTime)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, 0, len(filter.EventTypes))
		for _, t := range filter.EventTypes {
			args = append(args, t)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Actor != "" {
		addCondition("actor = $%d", filter.Actor)
	}
	if filter.ResourceType != "" {
		addCondition("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		addCondition("resource_id = $%d", filter.ResourceID)
	}

	query := `
		SELECT id, event_type, resource_type, resource_id, resource_name,
		       actor, branch_id, timestamp
		FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var resourceName, actor, branchID sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.EventType, &entry.ResourceType, &entry.ResourceID,
			&resourceName, &actor, &branchID, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.ResourceName = resourceName.String
		entry.Actor = actor.String
		entry.BranchID = branchID.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteThrough removes entries with a timestamp at or before the cutoff
// and returns the number removed. The bound is inclusive so it covers
// exactly the rows a Search with the same EndTime returns.
func (l *DBLogger) DeleteThrough(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the caller owns the database handle
func (l *DBLogger) Close() error {
	return nil
}
