package models

import (
	"time"
)

// Role is an account's authorization level
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleCitizen || r == RoleAdmin
}

// Status is the moderation state of a post
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every moderation state in display order
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MediaType classifies an attachment
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaPDF   MediaType = "pdf"
)

// Valid reports whether t is a known media type
func (t MediaType) Valid() bool {
	switch t {
	case MediaImage, MediaVideo, MediaPDF:
		return true
	}
	return false
}

// Field limits shared by validation and storage schemas
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxLocationLength    = 200
	MaxCommentLength     = 1000
	MaxNameLength        = 100
	MaxTags              = 20
	MaxTagLength         = 50
	MaxMediaPerPost      = 5
)

// User represents an account
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        *string   `json:"email,omitempty" bson:"email,omitempty"`
	Phone        *string   `json:"phone,omitempty" bson:"phone,omitempty"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         Role      `json:"role" bson:"role"`
	IsActive     bool      `json:"isActive" bson:"is_active"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// IsAdmin reports whether the account holds the administrator role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Media is an attachment embedded in a post
type Media struct {
	URL      string    `json:"url" bson:"url"`
	PublicID string    `json:"publicId" bson:"public_id"`
	Type     MediaType `json:"type" bson:"type"`
	Filename string    `json:"filename" bson:"filename"`
	Size     int64     `json:"size" bson:"size"`
}

// Post is a citizen report
type Post struct {
	ID              string     `json:"id" bson:"_id"`
	Title           string     `json:"title" bson:"title"`
	Description     string     `json:"description" bson:"description"`
	Location        string     `json:"location" bson:"location"`
	IncidentDate    time.Time  `json:"incidentDate" bson:"incident_date"`
	Media           []Media    `json:"media" bson:"media"`
	AuthorID        string     `json:"authorId" bson:"author_id"`
	IsAnonymous     bool       `json:"isAnonymous" bson:"is_anonymous"`
	Status          Status     `json:"status" bson:"status"`
	RejectionReason *string    `json:"rejectionReason" bson:"rejection_reason"`
	Tags            []string   `json:"tags" bson:"tags"`
	ViewCount       int64      `json:"viewCount" bson:"view_count"`
	ApprovedAt      *time.Time `json:"approvedAt" bson:"approved_at"`
	ApprovedBy      *string    `json:"approvedBy" bson:"approved_by"`
	CreatedAt       time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" bson:"updated_at"`
}

// PublicIDs returns the storage identifiers of the post's media
func (p *Post) PublicIDs() []string {
	ids := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		if m.PublicID != "" {
			ids = append(ids, m.PublicID)
		}
	}
	return ids
}

// Comment is a remark attached to an approved post
type Comment struct {
	ID          string    `json:"id" bson:"_id"`
	PostID      string    `json:"postId" bson:"post_id"`
	AuthorID    string    `json:"authorId" bson:"author_id"`
	Content     string    `json:"content" bson:"content"`
	IsAnonymous bool      `json:"isAnonymous" bson:"is_anonymous"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         string    `json:"id" bson:"_id"`
	UserID     *string   `json:"userId" bson:"user_id"`
	Action     string    `json:"action" bson:"action"`
	Resource   string    `json:"resource" bson:"resource"`
	ResourceID string    `json:"resourceId" bson:"resource_id"`
	Details    string    `json:"details" bson:"details"`
	IPAddress  string    `json:"ipAddress" bson:"ip_address"`
	UserAgent  string    `json:"userAgent" bson:"user_agent"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// StatusCounts aggregates posts per moderation state
type StatusCounts struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// Add records n posts with status s
func (c *StatusCounts) Add(s Status, n int64) {
	c.Total += n
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusApproved:
		c.Approved += n
	case StatusRejected:
		c.Rejected += n
	}
}

// AdminStats is the moderation dashboard summary
type AdminStats struct {
	TotalPosts    int64 `json:"totalPosts"`
	PendingPosts  int64 `json:"pendingPosts"`
	ApprovedPosts int64 `json:"approvedPosts"`
	RejectedPosts int64 `json:"rejectedPosts"`
	TotalUsers    int64 `json:"totalUsers"`
}
