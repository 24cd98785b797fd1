package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chandabaz/internal/media"
	"chandabaz/internal/metrics"
	"chandabaz/internal/models"
	"chandabaz/internal/moderation"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
	"chandabaz/internal/visibility"
	"chandabaz/pkg/validator"
)

// CreatePostInput holds the text fields of a new report
type CreatePostInput struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"required,max=5000"`
	Location     string   `json:"location" validate:"required,max=200"`
	IncidentDate string   `json:"incidentDate" validate:"required"`
	IsAnonymous  bool     `json:"isAnonymous"`
	Tags         []string `json:"tags" validate:"max=20"`
}

// PostService handles reports and their moderation
type PostService struct {
	posts    repository.PostStore
	users    repository.UserStore
	files    media.Store
	limits   media.Limits
	audit    *AuditService
	notifier Notifier
	now      func() time.Time
}

// NewPostService creates a new post service. notifier may be nil.
func NewPostService(
	posts repository.PostStore,
	users repository.UserStore,
	files media.Store,
	limits media.Limits,
	audit *AuditService,
	notifier Notifier,
) *PostService {
	return &PostService{
		posts:    posts,
		users:    users,
		files:    files,
		limits:   limits,
		audit:    audit,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create stores the uploads, then the report at status pending. If the
// insert fails the stored files are removed again.
func (s *PostService) Create(ctx context.Context, author *models.User, in CreatePostInput, uploads []media.Upload) (visibility.ReportView, error) {
	in.Title = validator.SanitizeString(in.Title)
	in.Description = validator.SanitizeString(in.Description)
	in.Location = validator.SanitizeString(in.Location)
	in.Tags = validator.SanitizeTags(in.Tags)

	if err := validate(&in); err != nil {
		return visibility.ReportView{}, err
	}
	for _, tag := range in.Tags {
		if len([]rune(tag)) > models.MaxTagLength {
			return visibility.ReportView{}, invalid("tags must be at most %d characters", models.MaxTagLength)
		}
	}
	incidentDate, _, err := query.ParseDate(validator.SanitizeString(in.IncidentDate))
	if err != nil {
		return visibility.ReportView{}, invalid("incidentDate: %v", err)
	}
	if err := media.Validate(uploads, s.limits); err != nil {
		return visibility.ReportView{}, err
	}

	stored, err := media.SaveAll(ctx, s.files, uploads)
	if err != nil {
		return visibility.ReportView{}, err
	}

	post := &models.Post{
		Title:        in.Title,
		Description:  in.Description,
		Location:     in.Location,
		IncidentDate: incidentDate,
		Media:        stored,
		AuthorID:     author.ID,
		IsAnonymous:  in.IsAnonymous,
		Status:       models.StatusPending,
		Tags:         in.Tags,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		media.DeleteAll(context.WithoutCancel(ctx), s.files, post.PublicIDs())
		return visibility.ReportView{}, fmt.Errorf("failed to create post: %w", err)
	}

	metrics.PostsCreated.Inc()
	slog.Info("Post created", "post_id", post.ID, "author_id", author.ID, "media", len(stored))

	view, _ := visibility.Redact(post, author, ViewerOf(author))
	return view, nil
}

// List returns approved reports matching filter
func (s *PostService) List(ctx context.Context, viewer visibility.Viewer, filter query.Filter) ([]visibility.ReportView, query.Pagination, error) {
	return s.list(ctx, viewer, filter, query.PublicScope())
}

// ListMine returns every report of the viewer, optionally at one status
func (s *PostService) ListMine(ctx context.Context, viewer visibility.Viewer, page query.Page, status *models.Status) ([]visibility.ReportView, query.Pagination, error) {
	return s.list(ctx, viewer, query.Filter{Page: page}, query.Scope{AuthorID: viewer.ID, Status: status})
}

// ListAdmin returns reports at any status, optionally at one status
func (s *PostService) ListAdmin(ctx context.Context, viewer visibility.Viewer, filter query.Filter, status *models.Status) ([]visibility.ReportView, query.Pagination, error) {
	if !viewer.IsAdmin() {
		return nil, query.Pagination{}, ErrForbidden
	}
	return s.list(ctx, viewer, filter, query.Scope{Status: status})
}

// ListPending returns the moderation queue
func (s *PostService) ListPending(ctx context.Context, viewer visibility.Viewer, page query.Page) ([]visibility.ReportView, query.Pagination, error) {
	pending := models.StatusPending
	return s.ListAdmin(ctx, viewer, query.Filter{Page: page}, &pending)
}

func (s *PostService) list(ctx context.Context, viewer visibility.Viewer, filter query.Filter, scope query.Scope) ([]visibility.ReportView, query.Pagination, error) {
	posts, total, err := s.posts.List(ctx, filter, scope)
	if err != nil {
		return nil, query.Pagination{}, fmt.Errorf("failed to list posts: %w", err)
	}
	authors, err := loadAuthors(ctx, s.users, repository.AuthorIDs(posts))
	if err != nil {
		return nil, query.Pagination{}, err
	}
	return visibility.RedactAll(posts, authors, viewer), query.NewPagination(total, filter.Page), nil
}

// Get returns one report as the viewer may see it. Reads by anyone other
// than the owner or an administrator count as a view.
func (s *PostService) Get(ctx context.Context, viewer visibility.Viewer, id string) (visibility.ReportView, error) {
	post, err := s.load(ctx, viewer, id)
	if err != nil {
		return visibility.ReportView{}, err
	}

	if !visibility.CanSeeFull(post, viewer) {
		views, err := s.posts.IncrementViews(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrPostNotFound) {
				return visibility.ReportView{}, err
			}
			slog.Warn("Failed to count view", "post_id", id, "error", err)
		} else {
			post.ViewCount = views
		}
	}

	return s.redact(ctx, post, viewer)
}

// Approve publishes a report
func (s *PostService) Approve(ctx context.Context, actor *models.User, id string) (visibility.ReportView, error) {
	return s.moderate(ctx, actor, id, moderation.EventApprove, "", nil)
}

// Reject hides a report with a mandatory reason
func (s *PostService) Reject(ctx context.Context, actor *models.User, id, reason string) (visibility.ReportView, error) {
	return s.moderate(ctx, actor, id, moderation.EventReject, reason, nil)
}

// Resubmit returns a rejected report to the queue. Non-empty uploads replace
// the media; superseded files are removed once the update is stored.
func (s *PostService) Resubmit(ctx context.Context, actor *models.User, id string, uploads []media.Upload) (visibility.ReportView, error) {
	if err := media.Validate(uploads, s.limits); err != nil {
		return visibility.ReportView{}, err
	}
	return s.moderate(ctx, actor, id, moderation.EventResubmit, "", uploads)
}

func (s *PostService) moderate(ctx context.Context, actor *models.User, id string, event moderation.Event, reason string, uploads []media.Upload) (visibility.ReportView, error) {
	viewer := ViewerOf(actor)
	post, err := s.load(ctx, viewer, id)
	if err != nil {
		return visibility.ReportView{}, err
	}

	expected, err := moderation.Apply(post, event, moderation.Actor{ID: actor.ID, Role: actor.Role}, reason, s.now())
	if err != nil {
		return visibility.ReportView{}, err
	}

	var superseded []string
	if len(uploads) > 0 {
		stored, err := media.SaveAll(ctx, s.files, uploads)
		if err != nil {
			return visibility.ReportView{}, err
		}
		superseded = post.PublicIDs()
		post.Media = stored
	}

	if err := s.posts.UpdateModeration(ctx, post, expected); err != nil {
		if len(uploads) > 0 {
			media.DeleteAll(context.WithoutCancel(ctx), s.files, post.PublicIDs())
		}
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.ModerationConflicts.Inc()
		}
		return visibility.ReportView{}, err
	}
	media.DeleteAll(context.WithoutCancel(ctx), s.files, superseded)

	metrics.ModerationDecisions.WithLabelValues(string(event)).Inc()
	slog.Info("Post moderated", "post_id", post.ID, "event", event, "actor_id", actor.ID, "status", post.Status)

	switch event {
	case moderation.EventApprove:
		s.audit.Log(ctx, actor.ID, ActionPostApproved, "post", post.ID, "")
	case moderation.EventReject:
		s.audit.Log(ctx, actor.ID, ActionPostRejected, "post", post.ID, ptrValue(post.RejectionReason))
	case moderation.EventResubmit:
		s.audit.Log(ctx, actor.ID, ActionPostResubmitted, "post", post.ID, fmt.Sprintf("media=%d", len(post.Media)))
	}

	author, err := s.author(ctx, post)
	if err != nil {
		return visibility.ReportView{}, err
	}
	s.notify(ctx, event, post, author)

	view, _ := visibility.Redact(post, author, viewer)
	return view, nil
}

// Delete removes a report, its comments and its stored media
func (s *PostService) Delete(ctx context.Context, actor *models.User, id string) error {
	viewer := ViewerOf(actor)
	post, err := s.load(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := moderation.Authorize(moderation.EventDelete, moderation.Actor{ID: actor.ID, Role: actor.Role}, post); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	media.DeleteAll(context.WithoutCancel(ctx), s.files, post.PublicIDs())

	metrics.ModerationDecisions.WithLabelValues(string(moderation.EventDelete)).Inc()
	s.audit.Log(ctx, actor.ID, ActionPostDeleted, "post", id, string(post.Status))
	slog.Info("Post deleted", "post_id", id, "actor_id", actor.ID)
	return nil
}

// Stats counts the reports of one author per status
func (s *PostService) Stats(ctx context.Context, authorID string) (models.StatusCounts, error) {
	return s.posts.CountByStatus(ctx, authorID)
}

// load fetches a report, answering not found when the viewer may not see it
func (s *PostService) load(ctx context.Context, viewer visibility.Viewer, id string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibility.CanSeeFull(post, viewer) && post.Status != models.StatusApproved {
		return nil, repository.ErrPostNotFound
	}
	return post, nil
}

func (s *PostService) author(ctx context.Context, post *models.Post) (*models.User, error) {
	author, err := s.users.GetByID(ctx, post.AuthorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load author: %w", err)
	}
	return author, nil
}

func (s *PostService) redact(ctx context.Context, post *models.Post, viewer visibility.Viewer) (visibility.ReportView, error) {
	author, err := s.author(ctx, post)
	if err != nil {
		return visibility.ReportView{}, err
	}
	view, ok := visibility.Redact(post, author, viewer)
	if !ok {
		return visibility.ReportView{}, repository.ErrPostNotFound
	}
	return view, nil
}

// notify emails the author about a moderation decision. Failures are logged.
func (s *PostService) notify(ctx context.Context, event moderation.Event, post *models.Post, author *models.User) {
	if s.notifier == nil || author == nil || author.Email == nil {
		return
	}

	var err error
	switch event {
	case moderation.EventApprove:
		err = s.notifier.SendPostApproved(ctx, *author.Email, author.Name, post.Title, post.ID)
	case moderation.EventReject:
		err = s.notifier.SendPostRejected(ctx, *author.Email, author.Name, post.Title, ptrValue(post.RejectionReason))
	default:
		return
	}
	if err != nil {
		slog.Warn("Failed to send moderation notification", "post_id", post.ID, "event", event, "error", err)
	}
}
