package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"chandabaz/internal/auth"
	"chandabaz/internal/media"
	"chandabaz/internal/moderation"
	"chandabaz/internal/repository"
	"chandabaz/internal/service"
)

// handleServiceError maps domain errors to status codes. Unknown errors are
// logged and answered with a generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var te *moderation.TransitionError
	switch {
	case service.IsValidation(err), media.IsUploadError(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, ErrMsgInvalidCredentials)
	case errors.Is(err, service.ErrUserInactive):
		respondWithError(w, http.StatusForbidden, "Account has been deactivated")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &te):
		respondWithError(w, transitionStatus(te.Code), te.Message)
	case errors.Is(err, repository.ErrStatusConflict):
		respondWithError(w, http.StatusConflict, ErrMsgStatusConflict)
	case errors.Is(err, repository.ErrUserExists):
		respondWithError(w, http.StatusConflict, ErrMsgUserExists)
	case errors.Is(err, repository.ErrPostNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgPostNotFound)
	case errors.Is(err, repository.ErrCommentNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgCommentNotFound)
	case errors.Is(err, repository.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternal)
	}
}

func transitionStatus(code string) int {
	switch code {
	case moderation.CodeNotAdmin, moderation.CodeNotOwner:
		return http.StatusForbidden
	case moderation.CodeReasonRequired:
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}
