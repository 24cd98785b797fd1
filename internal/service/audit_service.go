package service

import (
	"context"
	"log/slog"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
)

// Audit actions
const (
	ActionPostApproved    = "post.approve"
	ActionPostRejected    = "post.reject"
	ActionPostResubmitted = "post.resubmit"
	ActionPostDeleted     = "post.delete"
	ActionCommentDeleted  = "comment.delete"
	ActionUserToggled     = "user.toggle"
	ActionAdminSeeded     = "user.seed_admin"
)

type requestMetaKey struct{}

// RequestMeta identifies the client behind an audited action
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches client details to ctx for audit entries
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditService handles audit logging
type AuditService struct {
	auditRepo repository.AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo repository.AuditStore) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
	}
}

// Log creates an audit log entry. Failures are logged and never fail the
// operation being audited.
func (s *AuditService) Log(ctx context.Context, userID, action, resource, resourceID, details string) {
	if s == nil {
		return
	}
	if err := s.LogError(ctx, userID, action, resource, resourceID, details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "resource_id", resourceID, "error", err)
	}
}

// LogError creates an audit log entry and returns any error
func (s *AuditService) LogError(ctx context.Context, userID, action, resource, resourceID, details string) error {
	meta := requestMetaFrom(ctx)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	return s.auditRepo.Create(context.WithoutCancel(ctx), entry)
}

// List returns one page of audit entries, newest first
func (s *AuditService) List(ctx context.Context, filters repository.AuditFilters, page query.Page) ([]models.AuditLog, query.Pagination, error) {
	total, err := s.auditRepo.Count(ctx, filters)
	if err != nil {
		return nil, query.Pagination{}, err
	}
	logs, err := s.auditRepo.List(ctx, filters, page)
	if err != nil {
		return nil, query.Pagination{}, err
	}
	return logs, query.NewPagination(total, page), nil
}
