package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource, resource_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Action,
		log.Resource,
		log.ResourceID,
		log.Details,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// List retrieves audit logs newest first
func (r *AuditRepository) List(ctx context.Context, filters AuditFilters, page query.Page) ([]models.AuditLog, error) {
	where, args := buildAuditWhere(filters)
	args = append(args, page.Limit, page.Offset())

	q := fmt.Sprintf(`
		SELECT id, user_id, action, resource, resource_id, details, ip_address, user_agent, created_at
		FROM audit_logs%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		var userID sql.NullString
		if err := rows.Scan(
			&log.ID,
			&userID,
			&log.Action,
			&log.Resource,
			&log.ResourceID,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if userID.Valid {
			log.UserID = &userID.String
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// Count returns the number of audit logs matching filters
func (r *AuditRepository) Count(ctx context.Context, filters AuditFilters) (int64, error) {
	where, args := buildAuditWhere(filters)
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return count, nil
}

func buildAuditWhere(filters AuditFilters) (string, []any) {
	var conds []string
	var args []any

	if filters.UserID != "" {
		args = append(args, filters.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filters.Action != "" {
		args = append(args, filters.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if filters.Resource != "" {
		args = append(args, filters.Resource)
		conds = append(conds, fmt.Sprintf("resource = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
