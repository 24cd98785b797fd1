package handlers

import (
	"net/http"

	"chandabaz/internal/query"
	"chandabaz/internal/service"
)

// AdminHandler handles moderation and account administration. Every route
// is mounted behind Authenticate and RequireAdmin.
type AdminHandler struct {
	posts *service.PostService
	users *service.UserService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(posts *service.PostService, users *service.UserService) *AdminHandler {
	return &AdminHandler{posts: posts, users: users}
}

// RejectRequest carries the mandatory rejection reason
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Stats returns the moderation dashboard counts
// @Summary Dashboard counts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope{data=models.AdminStats}
// @Failure 403 {object} Envelope "Forbidden - admin only"
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.AdminStats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, stats)
}

// ListPosts lists reports at every status
// @Summary List all reports
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param search query string false "Full-text search"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Envelope{data=[]visibility.ReportView}
// @Failure 400 {object} Envelope "Invalid filter"
// @Router /admin/posts [get]
func (h *AdminHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	status, err := query.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	filter, err := query.ParseFilter(r.URL.Query(), query.DefaultAdminLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	views, pg, err := h.posts.ListAdmin(r.Context(), service.ViewerOf(user), filter, status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, views, pg)
}

// ListPending lists the moderation queue
// @Summary Pending reports
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Envelope{data=[]visibility.ReportView}
// @Router /admin/posts/pending [get]
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	page := query.ParsePage(r.URL.Query(), query.DefaultAdminLimit)
	views, pg, err := h.posts.ListPending(r.Context(), service.ViewerOf(user), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, views, pg)
}

// ApprovePost publishes a pending report
// @Summary Approve a report
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} Envelope{data=visibility.ReportView}
// @Failure 404 {object} Envelope "Not found"
// @Failure 409 {object} Envelope "Invalid transition or concurrent change"
// @Router /admin/posts/{id}/approve [put]
func (h *AdminHandler) ApprovePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	view, err := h.posts.Approve(r.Context(), user, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: view, Message: "Post approved"})
}

// RejectPost hides a report with a reason shown to its author
// @Summary Reject a report
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body RejectRequest true "Rejection reason"
// @Success 200 {object} Envelope{data=visibility.ReportView}
// @Failure 400 {object} Envelope "Reason missing"
// @Failure 404 {object} Envelope "Not found"
// @Failure 409 {object} Envelope "Invalid transition or concurrent change"
// @Router /admin/posts/{id}/reject [put]
func (h *AdminHandler) RejectPost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	// an empty body is answered like an empty reason
	var req RejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	view, err := h.posts.Reject(r.Context(), user, r.PathValue("id"), req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: view, Message: "Post rejected"})
}

// DeletePost removes any report
// @Summary Delete a report
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope "Not found"
// @Router /admin/posts/{id} [delete]
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Post deleted successfully")
}

// ListUsers lists accounts
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Envelope{data=[]models.User}
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := query.ParsePage(r.URL.Query(), query.DefaultUsersLimit)
	users, pg, err := h.users.List(r.Context(), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, users, pg)
}

// ToggleUser activates or deactivates a citizen account
// @Summary Toggle account activity
// @Description Administrator accounts cannot be deactivated
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} Envelope{data=models.User}
// @Failure 403 {object} Envelope "Target is an administrator"
// @Failure 404 {object} Envelope "Not found"
// @Router /admin/users/{id}/toggle [put]
func (h *AdminHandler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	updated, err := h.users.ToggleActive(r.Context(), user, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	message := "User deactivated"
	if updated.IsActive {
		message = "User activated"
	}
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: updated, Message: message})
}
