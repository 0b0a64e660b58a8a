package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// CreateActivityLog creates an activity log entry
func (s *PostgresStore) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if entry.Level == "" {
		entry.Level = models.ActivityLevelInfo
	}

	query := `
        INSERT INTO activity_logs (
            id, created_at, tenant_id, actor_id, type, level, description, details
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		entry.ID, entry.CreatedAt, entry.TenantID, entry.ActorID,
		entry.Type, entry.Level, entry.Description, entry.Details,
	)

	return mapError(err)
}

// ListActivityLogs lists activity logs with filters
func (s *PostgresStore) ListActivityLogs(ctx context.Context, tenantID uuid.UUID, filter models.ActivityFilter, limit, offset int) ([]*models.ActivityLog, int64, error) {
	// Build query with filters
	query := "SELECT COUNT(*) FROM activity_logs WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	argCount := 1

	if filter.Type != nil {
		argCount++
		query += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, *filter.Type)
	}

	if filter.ActorID != nil {
		argCount++
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, *filter.ActorID)
	}

	if filter.StartTime != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartTime)
	}

	if filter.EndTime != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.EndTime)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, created_at, tenant_id, actor_id, type, level, description, details", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		entry := &models.ActivityLog{}
		err := rows.Scan(
			&entry.ID, &entry.CreatedAt, &entry.TenantID, &entry.ActorID,
			&entry.Type, &entry.Level, &entry.Description, &entry.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, count, rows.Err()
}
