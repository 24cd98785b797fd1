package repository

import (
	"context"
	"errors"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	// ErrStatusConflict is returned when a post's status changed between
	// read and compare-and-set write.
	ErrStatusConflict = errors.New("post status changed concurrently")
)

// UserStore persists accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	// ExistsByContact reports whether any account uses the given email or phone.
	// Empty arguments are ignored.
	ExistsByContact(ctx context.Context, email, phone string) (bool, error)
	UpdateName(ctx context.Context, id, name string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
}

// PostStore persists reports
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List applies filter within scope and returns one page plus the total match count.
	// With a search term, results are ordered by relevance, otherwise newest first.
	List(ctx context.Context, filter query.Filter, scope query.Scope) ([]models.Post, int64, error)
	// UpdateModeration writes the moderation fields and media of post only if the
	// stored status still equals expected.
	UpdateModeration(ctx context.Context, post *models.Post, expected models.Status) error
	// IncrementViews atomically bumps the view counter and returns the new value.
	IncrementViews(ctx context.Context, id string) (int64, error)
	// Delete removes the post and every comment attached to it.
	Delete(ctx context.Context, id string) error
	// CountByStatus counts posts per status, for one author when authorID is set.
	CountByStatus(ctx context.Context, authorID string) (models.StatusCounts, error)
	// ReferencedMedia reports which of the given storage identifiers are still attached to a post.
	ReferencedMedia(ctx context.Context, publicIDs []string) (map[string]bool, error)
}

// CommentStore persists comments
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	// ListByPost returns comments oldest first plus the total count for the post.
	ListByPost(ctx context.Context, postID string, page query.Page) ([]models.Comment, int64, error)
	Delete(ctx context.Context, id string) error
}

// AuditFilters holds filter options for audit log queries
type AuditFilters struct {
	UserID   string
	Action   string
	Resource string
}

// AuditStore persists audit log entries
type AuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filters AuditFilters, page query.Page) ([]models.AuditLog, error)
	Count(ctx context.Context, filters AuditFilters) (int64, error)
}

// Stores bundles one implementation of every store
type Stores struct {
	Users    UserStore
	Posts    PostStore
	Comments CommentStore
	Audit    AuditStore
	// Ping checks the backing database
	Ping func(ctx context.Context) error
	// Close releases the backing connection
	Close func(ctx context.Context) error
}

// AuthorIDs collects the distinct author IDs of posts
func AuthorIDs(posts []models.Post) []string {
	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok || p.AuthorID == "" {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}
	return ids
}

// CommentAuthorIDs collects the distinct author IDs of comments
func CommentAuthorIDs(comments []models.Comment) []string {
	seen := make(map[string]struct{}, len(comments))
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.AuthorID]; ok || c.AuthorID == "" {
			continue
		}
		seen[c.AuthorID] = struct{}{}
		ids = append(ids, c.AuthorID)
	}
	return ids
}
