package handlers

import (
	"net/http"

	"chandabaz/internal/query"
	"chandabaz/internal/service"
)

// CommentHandler handles comments on approved reports
type CommentHandler struct {
	comments *service.CommentService
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// ListComments lists the comments of an approved report, oldest first
// @Summary List comments
// @Tags Comments
// @Produce json
// @Param postId path string true "Post ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Envelope{data=[]visibility.CommentView}
// @Failure 404 {object} Envelope "Post not found or not approved"
// @Router /comments/{postId} [get]
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	page := query.ParsePage(r.URL.Query(), query.DefaultCommentsLimit)
	views, pg, err := h.comments.List(r.Context(), r.PathValue("postId"), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, views, pg)
}

// AddComment comments on an approved report
// @Summary Add a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param request body service.AddCommentInput true "Comment"
// @Success 201 {object} Envelope{data=visibility.CommentView}
// @Failure 400 {object} Envelope "Invalid content"
// @Failure 404 {object} Envelope "Post not found or not approved"
// @Router /comments/{postId} [post]
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.AddCommentInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.comments.Add(r.Context(), user, r.PathValue("postId"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, view)
}

// DeleteComment removes a comment
// @Summary Delete a comment
// @Description Comment author or administrator
// @Tags Comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Comment ID"
// @Success 200 {object} Envelope
// @Failure 403 {object} Envelope "Not the author"
// @Failure 404 {object} Envelope "Not found"
// @Router /comments/{id} [delete]
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.comments.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Comment deleted")
}
