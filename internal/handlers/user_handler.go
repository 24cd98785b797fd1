package handlers

import (
	"net/http"

	"chandabaz/internal/service"
)

// UserHandler handles the caller's own account
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// MyStats counts the caller's reports per status
// @Summary My report counts
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope{data=models.StatusCounts}
// @Failure 401 {object} Envelope "Unauthorized"
// @Router /users/me/stats [get]
func (h *UserHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	stats, err := h.users.Stats(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, stats)
}

// UpdateMyName renames the caller
// @Summary Update my name
// @Description Only the name can be changed; bodies carrying email or phone are rejected
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateNameInput true "New name"
// @Success 200 {object} Envelope{data=models.User}
// @Failure 400 {object} Envelope "Invalid name or contact change attempted"
// @Router /users/me/name [put]
func (h *UserHandler) UpdateMyName(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.UpdateNameInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.users.UpdateName(r.Context(), user, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: updated, Message: "Name updated successfully"})
}
