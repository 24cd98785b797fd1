// Package docstore implements the store interfaces on MongoDB.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chandabaz/internal/config"
	"chandabaz/internal/repository"
)

// Collection names
const (
	UsersCollection    = "users"
	PostsCollection    = "posts"
	CommentsCollection = "comments"
	AuditCollection    = "audit_logs"
)

// Store owns the MongoDB client
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB, verifies the connection and ensures indexes exist
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	start := time.Now()
	slog.Info("Connecting to MongoDB", "uri", RedactURI(cfg.MongoURI), "database", cfg.MongoDatabase)

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(dctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.MongoDatabase)}
	if err := s.EnsureIndexes(dctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("Connected to MongoDB", "duration", time.Since(start).Round(time.Millisecond))
	return s, nil
}

// EnsureIndexes creates the indexes every query path relies on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
			},
			{
				Keys: bson.D{{Key: "phone", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"phone": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		PostsCollection: {
			{
				Keys: bson.D{
					{Key: "title", Value: "text"},
					{Key: "description", Value: "text"},
					{Key: "location", Value: "text"},
					{Key: "tags", Value: "text"},
				},
				Options: options.Index().SetName("posts_text").SetDefaultLanguage("none"),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "incident_date", Value: 1}}},
			{Keys: bson.D{{Key: "media.type", Value: 1}}},
			{Keys: bson.D{{Key: "media.public_id", Value: 1}}},
		},
		CommentsCollection: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		AuditCollection: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}

	var errs []string
	for name, models := range specs {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			errs = append(errs, name+": "+err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("mongo index creation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Truncate removes every document while keeping the indexes
func (s *Store) Truncate(ctx context.Context) error {
	for _, name := range []string{UsersCollection, PostsCollection, CommentsCollection, AuditCollection} {
		if _, err := s.db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", name, err)
		}
	}
	return nil
}

// Stores wires the MongoDB collections behind the store interfaces
func (s *Store) Stores() *repository.Stores {
	return &repository.Stores{
		Users:    &UserStore{col: s.db.Collection(UsersCollection)},
		Posts:    &PostStore{col: s.db.Collection(PostsCollection), comments: s.db.Collection(CommentsCollection)},
		Comments: &CommentStore{col: s.db.Collection(CommentsCollection)},
		Audit:    &AuditStore{col: s.db.Collection(AuditCollection)},
		Ping:     s.Ping,
		Close:    s.Close,
	}
}

// RedactURI hides credentials embedded in a connection string
func RedactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("****", "****")
	return u.String()
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
