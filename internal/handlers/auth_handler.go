package handlers

import (
	"log/slog"
	"net/http"

	"chandabaz/internal/middleware"
	"chandabaz/internal/models"
	"chandabaz/internal/service"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// SessionResponse is returned by register and login
type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles account registration
// @Summary Register a new account
// @Description Create a citizen account identified by email or phone and return a bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration details"
// @Success 201 {object} Envelope{data=SessionResponse} "Registration successful"
// @Failure 400 {object} Envelope "Invalid request"
// @Failure 409 {object} Envelope "Email or phone already registered"
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	slog.Info("User registered successfully", "user_id", session.User.ID)
	respondWithData(w, http.StatusCreated, SessionResponse{Token: session.Token, User: session.User})
}

// Login handles account login
// @Summary Log in
// @Description Authenticate with email or phone and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} Envelope{data=SessionResponse} "Login successful"
// @Failure 400 {object} Envelope "Invalid request"
// @Failure 401 {object} Envelope "Invalid credentials"
// @Failure 403 {object} Envelope "Account deactivated"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.authService.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, SessionResponse{Token: session.Token, User: session.User})
}

// Me returns the authenticated account
// @Summary Current account
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope{data=models.User}
// @Failure 401 {object} Envelope "Unauthorized"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	respondWithData(w, http.StatusOK, user)
}

// currentUser reads the account set by the auth middleware and answers 401
// when it is missing
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return nil, false
	}
	return user, true
}
