// Package visibility decides what a caller may see of a post or comment.
// Handlers never serialize models.Post or models.Comment directly; they go
// through Redact and RedactComment.
package visibility

import (
	"time"

	"chandabaz/internal/models"
)

// Viewer is the identity requesting a resource. The zero value is anonymous.
type Viewer struct {
	ID   string
	Role models.Role
}

// IsAdmin reports whether the viewer is an administrator
func (v Viewer) IsAdmin() bool {
	return v.Role == models.RoleAdmin
}

// AuthorSummary is the public identity attached to posts and comments.
// Email and Phone are only filled in for administrators and the author.
type AuthorSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// SummaryOf builds the author summary for an account, nil when unknown
func SummaryOf(u *models.User) *AuthorSummary {
	if u == nil {
		return nil
	}
	return &AuthorSummary{ID: u.ID, Name: u.Name}
}

// contactOf is SummaryOf plus the account's contact details
func contactOf(u *models.User) *AuthorSummary {
	s := SummaryOf(u)
	if s != nil {
		s.Email = u.Email
		s.Phone = u.Phone
	}
	return s
}

// ReportView is the serialized form of a post for one viewer.
// Moderation fields are only populated for the owner and administrators.
type ReportView struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Location        string         `json:"location"`
	IncidentDate    time.Time      `json:"incidentDate"`
	Media           []models.Media `json:"media"`
	Author          *AuthorSummary `json:"author"`
	IsAnonymous     bool           `json:"isAnonymous"`
	Status          models.Status  `json:"status"`
	RejectionReason *string        `json:"rejectionReason,omitempty"`
	Tags            []string       `json:"tags"`
	ViewCount       int64          `json:"viewCount"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	ApprovedBy      *string        `json:"approvedBy,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// CommentView is the serialized form of a comment
type CommentView struct {
	ID          string         `json:"id"`
	PostID      string         `json:"postId"`
	Author      *AuthorSummary `json:"author"`
	Content     string         `json:"content"`
	IsAnonymous bool           `json:"isAnonymous"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// CanSeeFull reports whether viewer gets the unredacted record
func CanSeeFull(post *models.Post, viewer Viewer) bool {
	return viewer.IsAdmin() || (viewer.ID != "" && viewer.ID == post.AuthorID)
}

// Redact produces the view of post for viewer. The second result is false
// when the viewer may not see the post at all, which callers report as not
// found.
//
// Rules, in order: owner or administrator sees everything, including the
// author's contact details; anyone else sees
// nothing unless the post is approved; approved posts hide the author when
// the post is anonymous.
func Redact(post *models.Post, author *models.User, viewer Viewer) (ReportView, bool) {
	if post == nil {
		return ReportView{}, false
	}

	view := ReportView{
		ID:           post.ID,
		Title:        post.Title,
		Description:  post.Description,
		Location:     post.Location,
		IncidentDate: post.IncidentDate,
		Media:        post.Media,
		Author:       SummaryOf(author),
		IsAnonymous:  post.IsAnonymous,
		Status:       post.Status,
		Tags:         post.Tags,
		ViewCount:    post.ViewCount,
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
	}

	if CanSeeFull(post, viewer) {
		view.Author = contactOf(author)
		view.RejectionReason = post.RejectionReason
		view.ApprovedAt = post.ApprovedAt
		view.ApprovedBy = post.ApprovedBy
		return view, true
	}

	if post.Status != models.StatusApproved {
		return ReportView{}, false
	}

	view.ApprovedAt = post.ApprovedAt
	if post.IsAnonymous {
		view.Author = nil
	}
	return view, true
}

// RedactAll applies Redact to a page of posts, dropping those the viewer
// may not see. authors is keyed by account ID.
func RedactAll(posts []models.Post, authors map[string]*models.User, viewer Viewer) []ReportView {
	views := make([]ReportView, 0, len(posts))
	for i := range posts {
		if v, ok := Redact(&posts[i], authors[posts[i].AuthorID], viewer); ok {
			views = append(views, v)
		}
	}
	return views
}

// RedactComment hides the author of an anonymous comment. The anonymity flag
// of the post the comment belongs to plays no part.
func RedactComment(c *models.Comment, author *models.User) CommentView {
	view := CommentView{
		ID:          c.ID,
		PostID:      c.PostID,
		Author:      SummaryOf(author),
		Content:     c.Content,
		IsAnonymous: c.IsAnonymous,
		CreatedAt:   c.CreatedAt,
	}
	if c.IsAnonymous {
		view.Author = nil
	}
	return view
}

// RedactComments applies RedactComment to a page of comments
func RedactComments(comments []models.Comment, authors map[string]*models.User) []CommentView {
	views := make([]CommentView, 0, len(comments))
	for i := range comments {
		views = append(views, RedactComment(&comments[i], authors[comments[i].AuthorID]))
	}
	return views
}
