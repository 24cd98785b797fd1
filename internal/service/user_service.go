package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"chandabaz/internal/cache"
	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
	"chandabaz/pkg/validator"
)

// UpdateNameInput is the body of a rename request. Email and phone are only
// decoded so that attempts to change them can be refused.
type UpdateNameInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// UserService handles account administration
type UserService struct {
	users    repository.UserStore
	posts    repository.PostStore
	accounts *cache.AccountCache
	audit    *AuditService
}

// NewUserService creates a new user service
func NewUserService(users repository.UserStore, posts repository.PostStore, accounts *cache.AccountCache, audit *AuditService) *UserService {
	return &UserService{
		users:    users,
		posts:    posts,
		accounts: accounts,
		audit:    audit,
	}
}

// Stats counts the caller's reports per status
func (s *UserService) Stats(ctx context.Context, userID string) (models.StatusCounts, error) {
	return s.posts.CountByStatus(ctx, userID)
}

// UpdateName renames the caller
func (s *UserService) UpdateName(ctx context.Context, actor *models.User, in UpdateNameInput) (*models.User, error) {
	if ptrValue(in.Email) != "" || ptrValue(in.Phone) != "" {
		return nil, invalid("only name can be updated here")
	}
	in.Name = validator.SanitizeString(in.Name)
	if err := validate(&in); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateName(ctx, actor.ID, in.Name)
	if err != nil {
		return nil, err
	}
	s.accounts.Invalidate(actor.ID)
	return user, nil
}

// List returns one page of accounts, newest first
func (s *UserService) List(ctx context.Context, page query.Page) ([]models.User, query.Pagination, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, query.Pagination{}, fmt.Errorf("failed to count users: %w", err)
	}
	users, err := s.users.List(ctx, page.Limit, page.Offset())
	if err != nil {
		return nil, query.Pagination{}, fmt.Errorf("failed to list users: %w", err)
	}
	return users, query.NewPagination(total, page), nil
}

// ToggleActive flips the active flag of a citizen account. Administrator
// accounts cannot be deactivated.
func (s *UserService) ToggleActive(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.IsAdmin() {
		return nil, fmt.Errorf("%w: cannot deactivate an admin account", ErrForbidden)
	}

	updated, err := s.users.SetActive(ctx, id, !target.IsActive)
	if err != nil {
		return nil, err
	}
	s.accounts.Invalidate(id)

	s.audit.Log(ctx, actor.ID, ActionUserToggled, "user", id, "active="+strconv.FormatBool(updated.IsActive))
	slog.Info("User active flag changed", "user_id", id, "active", updated.IsActive, "admin_id", actor.ID)
	return updated, nil
}

// AdminStats summarises all reports and the number of citizen accounts
func (s *UserService) AdminStats(ctx context.Context) (models.AdminStats, error) {
	counts, err := s.posts.CountByStatus(ctx, "")
	if err != nil {
		return models.AdminStats{}, err
	}
	citizens, err := s.users.CountByRole(ctx, models.RoleCitizen)
	if err != nil {
		return models.AdminStats{}, err
	}
	return models.AdminStats{
		TotalPosts:    counts.Total,
		PendingPosts:  counts.Pending,
		ApprovedPosts: counts.Approved,
		RejectedPosts: counts.Rejected,
		TotalUsers:    citizens,
	}, nil
}
