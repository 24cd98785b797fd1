package handlers

import (
	"net/http"
	"strings"

	"chandabaz/internal/query"
	"chandabaz/internal/repository"
	"chandabaz/internal/service"
)

// AuditHandler handles audit log requests
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{
		audit: audit,
	}
}

// ListAuditLogs lists audit entries with pagination (admin only)
// @Summary List audit logs
// @Description Get a paginated list of audit entries, newest first (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Param userId query string false "Filter by acting user ID"
// @Param action query string false "Filter by action, e.g. post.approve"
// @Param resource query string false "Filter by resource (post, comment, user)"
// @Success 200 {object} Envelope{data=[]models.AuditLog} "Paginated audit logs"
// @Failure 401 {object} Envelope "Unauthorized"
// @Failure 403 {object} Envelope "Forbidden - admin only"
// @Router /admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := query.ParsePage(q, query.DefaultAuditLimit)

	filters := repository.AuditFilters{
		UserID:   strings.TrimSpace(q.Get("userId")),
		Action:   strings.TrimSpace(q.Get("action")),
		Resource: strings.TrimSpace(q.Get("resource")),
	}

	logs, pg, err := h.audit.List(r.Context(), filters, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, logs, pg)
}
