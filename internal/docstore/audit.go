package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
)

// AuditStore keeps audit entries in the audit_logs collection
type AuditStore struct {
	col *mongo.Collection
}

func (s *AuditStore) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (s *AuditStore) List(ctx context.Context, filters repository.AuditFilters, page query.Page) ([]models.AuditLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))

	cur, err := s.col.Find(ctx, auditFilter(filters), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	var logs []models.AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}
	return logs, nil
}

func (s *AuditStore) Count(ctx context.Context, filters repository.AuditFilters) (int64, error) {
	n, err := s.col.CountDocuments(ctx, auditFilter(filters))
	if err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return n, nil
}

func auditFilter(filters repository.AuditFilters) bson.M {
	f := bson.M{}
	if filters.UserID != "" {
		f["user_id"] = filters.UserID
	}
	if filters.Action != "" {
		f["action"] = filters.Action
	}
	if filters.Resource != "" {
		f["resource"] = filters.Resource
	}
	return f
}
