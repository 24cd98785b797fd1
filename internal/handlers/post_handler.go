package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"chandabaz/internal/media"
	"chandabaz/internal/middleware"
	"chandabaz/internal/query"
	"chandabaz/internal/service"
)

// PostHandler handles report requests
type PostHandler struct {
	posts  *service.PostService
	limits media.Limits
}

// NewPostHandler creates a new post handler
func NewPostHandler(posts *service.PostService, limits media.Limits) *PostHandler {
	return &PostHandler{
		posts:  posts,
		limits: limits,
	}
}

// ListPosts lists approved reports
// @Summary List approved reports
// @Description Public list with full-text search, location, media type and incident date filters
// @Tags Posts
// @Produce json
// @Param search query string false "Full-text search over title, description, location and tags"
// @Param location query string false "Case-insensitive location substring"
// @Param mediaType query string false "image, video or pdf"
// @Param startDate query string false "Incident date from (YYYY-MM-DD)"
// @Param endDate query string false "Incident date to, inclusive (YYYY-MM-DD)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(12)
// @Success 200 {object} Envelope{data=[]visibility.ReportView}
// @Failure 400 {object} Envelope "Invalid filter"
// @Router /posts [get]
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseFilter(r.URL.Query(), query.DefaultPublicLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, _ := middleware.GetUser(r)
	views, pg, err := h.posts.List(r.Context(), service.ViewerOf(user), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, views, pg)
}

// GetPost returns one report
// @Summary Get a report
// @Description Approved reports are public and count a view; owners and admins also see pending and rejected reports
// @Tags Posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} Envelope{data=visibility.ReportView}
// @Failure 404 {object} Envelope "Not found or not visible"
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r)
	view, err := h.posts.Get(r.Context(), service.ViewerOf(user), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, view)
}

// MyPosts lists the caller's reports at every status
// @Summary My reports
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} Envelope{data=[]visibility.ReportView}
// @Failure 401 {object} Envelope "Unauthorized"
// @Router /posts/my [get]
func (h *PostHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	status, err := query.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page := query.ParsePage(r.URL.Query(), query.DefaultMyPostsLimit)
	views, pg, err := h.posts.ListMine(r.Context(), service.ViewerOf(user), page, status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithPage(w, views, pg)
}

// CreatePost submits a report for moderation
// @Summary Submit a report
// @Description Multipart form with text fields and up to 5 files in "media". The report starts as pending.
// @Tags Posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param location formData string true "Location"
// @Param incidentDate formData string true "Incident date (YYYY-MM-DD)"
// @Param isAnonymous formData bool false "Hide the author from the public"
// @Param tags formData string false "Comma-separated tags"
// @Param media formData file false "Evidence files (jpeg, png, gif, webp, mp4, mov, avi, pdf)"
// @Success 201 {object} Envelope{data=visibility.ReportView}
// @Failure 400 {object} Envelope "Invalid input or upload"
// @Failure 401 {object} Envelope "Unauthorized"
// @Router /posts [post]
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	in, uploads, cleanup, err := h.readPostForm(w, r)
	defer cleanup()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	view, err := h.posts.Create(r.Context(), user, in, uploads)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Data:    view,
		Message: "Post submitted successfully and is pending review",
	})
}

// ResubmitPost returns a rejected report to the moderation queue
// @Summary Resubmit a rejected report
// @Description Owner only. Files sent in "media" replace the current attachments.
// @Tags Posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param media formData file false "Replacement evidence files"
// @Success 200 {object} Envelope{data=visibility.ReportView}
// @Failure 403 {object} Envelope "Not the owner"
// @Failure 404 {object} Envelope "Not found"
// @Failure 409 {object} Envelope "Post is not rejected"
// @Router /posts/{id}/resubmit [put]
func (h *PostHandler) ResubmitPost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var uploads []media.Upload
	if isMultipart(r) {
		files, cleanup, err := h.parseMultipart(w, r)
		defer cleanup()
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		uploads = media.FromMultipart(files)
	}

	view, err := h.posts.Resubmit(r.Context(), user, r.PathValue("id"), uploads)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: view, Message: "Post resubmitted for review"})
}

// DeletePost removes a report
// @Summary Delete a report
// @Description Owner or administrator. Comments and stored media are removed too.
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} Envelope
// @Failure 403 {object} Envelope "Not the owner"
// @Failure 404 {object} Envelope "Not found"
// @Router /posts/{id} [delete]
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
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

// readPostForm reads a new report from a multipart form or a JSON body.
// The returned cleanup removes spilled multipart files.
func (h *PostHandler) readPostForm(w http.ResponseWriter, r *http.Request) (service.CreatePostInput, []media.Upload, func(), error) {
	var in service.CreatePostInput
	if !isMultipart(r) {
		if err := decodeJSON(w, r, &in); err != nil {
			return in, nil, func() {}, &service.ValidationError{Message: err.Error()}
		}
		return in, nil, func() {}, nil
	}

	files, cleanup, err := h.parseMultipart(w, r)
	if err != nil {
		return in, nil, cleanup, err
	}

	form := r.MultipartForm.Value
	first := func(key string) string {
		if v := form[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	in.Title = first("title")
	in.Description = first("description")
	in.Location = first("location")
	in.IncidentDate = first("incidentDate")
	in.IsAnonymous = parseBool(first("isAnonymous"))
	in.Tags = append(append([]string{}, form[tagsField]...), form[tagsField+"[]"]...)

	return in, media.FromMultipart(files), cleanup, nil
}

// parseMultipart parses a bounded multipart body and returns the "media" files
func (h *PostHandler) parseMultipart(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, func(), error) {
	noop := func() {}
	if h.limits.MaxFiles > 0 && h.limits.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.limits.MaxFiles)*h.limits.MaxFileSize+maxJSONBody)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, noop, fmt.Errorf("%w: request body exceeds %d MB", media.ErrFileTooLarge, maxErr.Limit>>20)
		}
		return nil, noop, &service.ValidationError{Message: "invalid multipart form: " + err.Error()}
	}

	form := r.MultipartForm
	return form.File[mediaField], func() { _ = form.RemoveAll() }, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b || strings.EqualFold(strings.TrimSpace(s), "on")
}
