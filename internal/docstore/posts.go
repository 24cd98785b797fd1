package docstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
)

// PostStore keeps reports in the posts collection
type PostStore struct {
	col      *mongo.Collection
	comments *mongo.Collection
}

func (s *PostStore) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Media == nil {
		post.Media = []models.Media{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if _, err := s.col.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (s *PostStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if isNotFound(err) {
		return nil, repository.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &p, nil
}

func (s *PostStore) List(ctx context.Context, filter query.Filter, scope query.Scope) ([]models.Post, int64, error) {
	match := buildPostFilter(filter, scope)

	total, err := s.col.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if filter.HasSearch() {
		sort = append(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}, sort...)
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit))

	cur, err := s.col.Find(ctx, match, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, total, nil
}

func buildPostFilter(filter query.Filter, scope query.Scope) bson.M {
	match := bson.M{}

	if scope.Status != nil {
		match["status"] = *scope.Status
	}
	if scope.AuthorID != "" {
		match["author_id"] = scope.AuthorID
	}
	if filter.Search != "" {
		match["$text"] = bson.M{"$search": filter.Search}
	}
	if filter.Location != "" {
		match["location"] = bson.M{"$regex": regexp.QuoteMeta(filter.Location), "$options": "i"}
	}
	if filter.MediaType != nil {
		match["media.type"] = *filter.MediaType
	}
	if filter.StartDate != nil || filter.EndDate != nil {
		rng := bson.M{}
		if filter.StartDate != nil {
			rng["$gte"] = *filter.StartDate
		}
		if filter.EndDate != nil {
			rng["$lte"] = *filter.EndDate
		}
		match["incident_date"] = rng
	}
	return match
}

func (s *PostStore) UpdateModeration(ctx context.Context, post *models.Post, expected models.Status) error {
	media := post.Media
	if media == nil {
		media = []models.Media{}
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": post.ID, "status": expected},
		bson.M{"$set": bson.M{
			"status":           post.Status,
			"rejection_reason": post.RejectionReason,
			"approved_at":      post.ApprovedAt,
			"approved_by":      post.ApprovedBy,
			"media":            media,
			"updated_at":       post.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update post moderation: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.col.CountDocuments(ctx, bson.M{"_id": post.ID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check post: %w", err)
	}
	if n == 0 {
		return repository.ErrPostNotFound
	}
	return repository.ErrStatusConflict
}

func (s *PostStore) IncrementViews(ctx context.Context, id string) (int64, error) {
	var p struct {
		ViewCount int64 `bson:"view_count"`
	}
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"view_count": 1}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"view_count": 1}),
	).Decode(&p)
	if isNotFound(err) {
		return 0, repository.ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	return p.ViewCount, nil
}

// Delete removes the post, then its comments
func (s *PostStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrPostNotFound
	}
	if _, err := s.comments.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return fmt.Errorf("failed to delete comments of post: %w", err)
	}
	return nil
}

func (s *PostStore) CountByStatus(ctx context.Context, authorID string) (models.StatusCounts, error) {
	var counts models.StatusCounts

	match := bson.M{}
	if authorID != "" {
		match["author_id"] = authorID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return counts, fmt.Errorf("failed to count posts: %w", err)
	}
	var rows []struct {
		Status models.Status `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return counts, fmt.Errorf("failed to decode post counts: %w", err)
	}
	for _, r := range rows {
		counts.Add(r.Status, r.Count)
	}
	return counts, nil
}

func (s *PostStore) ReferencedMedia(ctx context.Context, publicIDs []string) (map[string]bool, error) {
	found := make(map[string]bool, len(publicIDs))
	if len(publicIDs) == 0 {
		return found, nil
	}

	values, err := s.col.Distinct(ctx, "media.public_id", bson.M{"media.public_id": bson.M{"$in": publicIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced media: %w", err)
	}

	wanted := make(map[string]struct{}, len(publicIDs))
	for _, id := range publicIDs {
		wanted[id] = struct{}{}
	}
	for _, v := range values {
		id, ok := v.(string)
		if !ok {
			continue
		}
		if _, ok := wanted[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}
