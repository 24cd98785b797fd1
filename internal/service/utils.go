package service

import (
	"context"
	"errors"
	"fmt"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
	"chandabaz/internal/visibility"
	"chandabaz/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("account has been deactivated")
	ErrForbidden          = errors.New("not authorized")
)

// ValidationError is a client input problem, reported as 400
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// validate runs struct tag validation and converts failures to ValidationError
func validate(input any) error {
	if err := validator.ValidateStruct(input); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// IsValidation reports whether err is a client input problem, including
// rejected filter parameters
func IsValidation(err error) bool {
	var ve *ValidationError
	var qe *query.ValidationError
	return errors.As(err, &ve) || errors.As(err, &qe)
}

// Notifier tells authors about moderation decisions
type Notifier interface {
	SendPostApproved(ctx context.Context, to, name, title, postID string) error
	SendPostRejected(ctx context.Context, to, name, title, reason string) error
}

// ViewerOf returns the visibility identity of an account; nil is anonymous
func ViewerOf(u *models.User) visibility.Viewer {
	if u == nil {
		return visibility.Viewer{}
	}
	return visibility.Viewer{ID: u.ID, Role: u.Role}
}

// loadAuthors fetches the accounts referenced by ids, keyed by ID
func loadAuthors(ctx context.Context, users repository.UserStore, ids []string) (map[string]*models.User, error) {
	if len(ids) == 0 {
		return map[string]*models.User{}, nil
	}
	authors, err := users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}
	return authors, nil
}

func ptrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
