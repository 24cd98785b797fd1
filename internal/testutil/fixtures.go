package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chandabaz/internal/models"
	"chandabaz/internal/repository"
)

// Password is the plain text password of every fixture account
const Password = "secret1"

var (
	seq          atomic.Int64
	passwordHash []byte
)

func init() {
	h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash fixture password: %v", err))
	}
	passwordHash = h
}

// NewUser builds an active account with a unique email
func NewUser(role models.Role) *models.User {
	n := seq.Add(1)
	email := fmt.Sprintf("user%d@example.com", n)
	return &models.User{
		Name:         fmt.Sprintf("User %d", n),
		Email:        &email,
		PasswordHash: string(passwordHash),
		Role:         role,
		IsActive:     true,
	}
}

// PostOption customizes a fixture post
type PostOption func(*models.Post)

// WithStatus puts the post into a moderation state with consistent side fields
func WithStatus(status models.Status, adminID string) PostOption {
	return func(p *models.Post) {
		p.Status = status
		p.ApprovedAt, p.ApprovedBy, p.RejectionReason = nil, nil, nil
		switch status {
		case models.StatusApproved:
			at := time.Now().UTC().Truncate(time.Millisecond)
			p.ApprovedAt = &at
			p.ApprovedBy = &adminID
		case models.StatusRejected:
			reason := "insufficient evidence"
			p.RejectionReason = &reason
		}
	}
}

// WithText sets title, description and location
func WithText(title, description, location string) PostOption {
	return func(p *models.Post) {
		p.Title, p.Description, p.Location = title, description, location
	}
}

// WithMedia attaches one media item per type
func WithMedia(types ...models.MediaType) PostOption {
	return func(p *models.Post) {
		for _, mt := range types {
			id := fmt.Sprintf("media-%d", seq.Add(1))
			p.Media = append(p.Media, models.Media{
				URL:      "/uploads/" + id,
				PublicID: id,
				Type:     mt,
				Filename: id + ".bin",
				Size:     1024,
			})
		}
	}
}

// WithIncidentDate sets the incident date
func WithIncidentDate(t time.Time) PostOption {
	return func(p *models.Post) { p.IncidentDate = t.UTC() }
}

// Anonymous hides the author from the public
func Anonymous() PostOption {
	return func(p *models.Post) { p.IsAnonymous = true }
}

// NewPost builds a pending post by authorID
func NewPost(authorID string, opts ...PostOption) *models.Post {
	n := seq.Add(1)
	p := &models.Post{
		Title:        fmt.Sprintf("Report %d", n),
		Description:  "Officials demanded an unofficial fee",
		Location:     "Dhaka",
		IncidentDate: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		AuthorID:     authorID,
		Status:       models.StatusPending,
		Tags:         []string{},
		Media:        []models.Media{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateUser stores a fixture account
func CreateUser(t *testing.T, stores *repository.Stores, role models.Role) *models.User {
	t.Helper()
	u := NewUser(role)
	if err := stores.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

// CreatePost stores a fixture post
func CreatePost(t *testing.T, stores *repository.Stores, authorID string, opts ...PostOption) *models.Post {
	t.Helper()
	p := NewPost(authorID, opts...)
	if err := stores.Posts.Create(context.Background(), p); err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	return p
}
