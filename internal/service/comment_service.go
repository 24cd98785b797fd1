package service

import (
	"context"
	"fmt"
	"log/slog"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
	"chandabaz/internal/visibility"
	"chandabaz/pkg/validator"
)

// AddCommentInput is the body of a new comment
type AddCommentInput struct {
	Content     string `json:"content" validate:"required,max=1000"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// CommentService handles comments on approved reports
type CommentService struct {
	comments repository.CommentStore
	posts    repository.PostStore
	users    repository.UserStore
	audit    *AuditService
}

// NewCommentService creates a new comment service
func NewCommentService(comments repository.CommentStore, posts repository.PostStore, users repository.UserStore, audit *AuditService) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		users:    users,
		audit:    audit,
	}
}

// Add attaches a comment to an approved report
func (s *CommentService) Add(ctx context.Context, author *models.User, postID string, in AddCommentInput) (visibility.CommentView, error) {
	in.Content = validator.SanitizeString(in.Content)
	if in.Content == "" {
		return visibility.CommentView{}, invalid("comment content is required")
	}
	if err := validate(&in); err != nil {
		return visibility.CommentView{}, err
	}
	if err := s.requireApproved(ctx, postID); err != nil {
		return visibility.CommentView{}, err
	}

	comment := &models.Comment{
		PostID:      postID,
		AuthorID:    author.ID,
		Content:     in.Content,
		IsAnonymous: in.IsAnonymous,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return visibility.CommentView{}, fmt.Errorf("failed to create comment: %w", err)
	}

	slog.Debug("Comment added", "comment_id", comment.ID, "post_id", postID)
	return visibility.RedactComment(comment, author), nil
}

// List returns the comments of an approved report, oldest first
func (s *CommentService) List(ctx context.Context, postID string, page query.Page) ([]visibility.CommentView, query.Pagination, error) {
	if err := s.requireApproved(ctx, postID); err != nil {
		return nil, query.Pagination{}, err
	}

	comments, total, err := s.comments.ListByPost(ctx, postID, page)
	if err != nil {
		return nil, query.Pagination{}, fmt.Errorf("failed to list comments: %w", err)
	}
	authors, err := loadAuthors(ctx, s.users, repository.CommentAuthorIDs(comments))
	if err != nil {
		return nil, query.Pagination{}, err
	}
	return visibility.RedactComments(comments, authors), query.NewPagination(total, page), nil
}

// Delete removes a comment. Only its author or an administrator may do so.
func (s *CommentService) Delete(ctx context.Context, actor *models.User, id string) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return err
	}
	if comment.AuthorID != actor.ID {
		s.audit.Log(ctx, actor.ID, ActionCommentDeleted, "comment", id, "post "+comment.PostID)
	}
	return nil
}

func (s *CommentService) requireApproved(ctx context.Context, postID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status != models.StatusApproved {
		return repository.ErrPostNotFound
	}
	return nil
}
