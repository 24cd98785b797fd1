package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
)

const postColumns = `id, title, description, location, incident_date, media, author_id, is_anonymous, status,
	rejection_reason, tags, view_count, approved_at, approved_by, created_at, updated_at`

// PostRepository handles post database operations
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a post and indexes its text for search
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	media, err := marshalMedia(post.Media)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO posts (id, title, description, location, incident_date, media, author_id, is_anonymous, status,
			rejection_reason, tags, view_count, approved_at, approved_by, search_vector, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, to_tsvector('simple', $15), $16, $16)
	`
	_, err = r.db.ExecContext(ctx, query,
		post.ID,
		post.Title,
		post.Description,
		post.Location,
		post.IncidentDate,
		media,
		post.AuthorID,
		post.IsAnonymous,
		post.Status,
		post.RejectionReason,
		pq.Array(post.Tags),
		post.ViewCount,
		post.ApprovedAt,
		post.ApprovedBy,
		SearchDocument(post),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// List returns one page of posts matching filter within scope
func (r *PostRepository) List(ctx context.Context, filter query.Filter, scope query.Scope) ([]models.Post, int64, error) {
	where, args := buildPostWhere(filter, scope)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	orderBy := ` ORDER BY created_at DESC, id DESC`
	if filter.HasSearch() {
		args = append(args, filter.Search)
		orderBy = fmt.Sprintf(` ORDER BY ts_rank(search_vector, plainto_tsquery('simple', $%d)) DESC, created_at DESC, id DESC`, len(args))
	}
	args = append(args, filter.Limit, filter.Offset())
	pageClause := fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts`+where+orderBy+pageClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, total, nil
}

// buildPostWhere builds the WHERE clause shared by the count and page queries
func buildPostWhere(filter query.Filter, scope query.Scope) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if scope.Status != nil {
		add("status = $%d", string(*scope.Status))
	}
	if scope.AuthorID != "" {
		add("author_id = $%d", scope.AuthorID)
	}
	if filter.Search != "" {
		add("search_vector @@ plainto_tsquery('simple', $%d)", filter.Search)
	}
	if filter.Location != "" {
		add(`location ILIKE '%%' || $%d || '%%' ESCAPE '\'`, query.EscapeLike(filter.Location))
	}
	if filter.MediaType != nil {
		probe, _ := json.Marshal([]map[string]string{{"type": string(*filter.MediaType)}})
		add("media @> $%d::jsonb", string(probe))
	}
	if filter.StartDate != nil {
		add("incident_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("incident_date <= $%d", *filter.EndDate)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateModeration writes moderation fields only if the status is still expected
func (r *PostRepository) UpdateModeration(ctx context.Context, post *models.Post, expected models.Status) error {
	media, err := marshalMedia(post.Media)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = $2, rejection_reason = $3, approved_at = $4, approved_by = $5, media = $6, updated_at = $7
		WHERE id = $1 AND status = $8
	`,
		post.ID,
		post.Status,
		post.RejectionReason,
		post.ApprovedAt,
		post.ApprovedBy,
		media,
		post.UpdatedAt,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update post moderation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return r.missOrConflict(ctx, post.ID)
	}
	return nil
}

// missOrConflict distinguishes a deleted post from a lost compare-and-set race
func (r *PostRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check post: %w", err)
	}
	if !exists {
		return ErrPostNotFound
	}
	return ErrStatusConflict
}

// IncrementViews bumps the view counter
func (r *PostRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`, id,
	).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	return views, nil
}

// Delete removes a post; comments go with it through ON DELETE CASCADE
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// CountByStatus groups post counts by status
func (r *PostRepository) CountByStatus(ctx context.Context, authorID string) (models.StatusCounts, error) {
	var counts models.StatusCounts

	q := `SELECT status, COUNT(*) FROM posts`
	var args []any
	if authorID != "" {
		q += ` WHERE author_id = $1`
		args = append(args, authorID)
	}
	q += ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return counts, fmt.Errorf("failed to count posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan post count: %w", err)
		}
		counts.Add(status, n)
	}
	return counts, rows.Err()
}

// ReferencedMedia reports which storage identifiers are attached to a post
func (r *PostRepository) ReferencedMedia(ctx context.Context, publicIDs []string) (map[string]bool, error) {
	found := make(map[string]bool, len(publicIDs))
	if len(publicIDs) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT m->>'publicId'
		FROM posts, jsonb_array_elements(media) AS m
		WHERE m->>'publicId' = ANY($1)
	`, pq.Array(publicIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan media id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// SearchDocument is the text indexed for full-text search
func SearchDocument(post *models.Post) string {
	parts := []string{post.Title, post.Description, post.Location}
	parts = append(parts, post.Tags...)
	return strings.Join(parts, " ")
}

func marshalMedia(media []models.Media) ([]byte, error) {
	if media == nil {
		media = []models.Media{}
	}
	b, err := json.Marshal(media)
	if err != nil {
		return nil, fmt.Errorf("failed to encode media: %w", err)
	}
	return b, nil
}

func scanPost(row rowScanner) (*models.Post, error) {
	post := &models.Post{}
	var media []byte
	var reason, approvedBy sql.NullString
	var approvedAt sql.NullTime
	var tags pq.StringArray

	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Description,
		&post.Location,
		&post.IncidentDate,
		&media,
		&post.AuthorID,
		&post.IsAnonymous,
		&post.Status,
		&reason,
		&tags,
		&post.ViewCount,
		&approvedAt,
		&approvedBy,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(media, &post.Media); err != nil {
		return nil, fmt.Errorf("failed to decode media: %w", err)
	}
	post.Tags = []string(tags)
	if reason.Valid {
		post.RejectionReason = &reason.String
	}
	if approvedBy.Valid {
		post.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		post.ApprovedAt = &t
	}
	post.IncidentDate = post.IncidentDate.UTC()
	return post, nil
}
