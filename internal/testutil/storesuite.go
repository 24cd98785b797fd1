package testutil

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
)

// RunStoreSuite checks that a store backend honours the repository contracts.
// reset must leave every collection empty.
func RunStoreSuite(t *testing.T, stores *repository.Stores, reset func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s *repository.Stores)
	}{
		{"UserLifecycle", testUserLifecycle},
		{"UserDuplicateContact", testUserDuplicateContact},
		{"PostRoundTrip", testPostRoundTrip},
		{"PostListScopes", testPostListScopes},
		{"PostListFilters", testPostListFilters},
		{"PostListPagination", testPostListPagination},
		{"PostCompareAndSet", testPostCompareAndSet},
		{"PostViewsAndDelete", testPostViewsAndDelete},
		{"PostCounts", testPostCounts},
		{"ReferencedMedia", testReferencedMedia},
		{"Comments", testComments},
		{"AuditLog", testAuditLog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset(t)
			tt.fn(t, stores)
		})
	}
}

func testUserLifecycle(t *testing.T, s *repository.Stores) {
	ctx := context.Background()

	u := CreateUser(t, s, models.RoleCitizen)
	time.Sleep(2 * time.Millisecond)
	admin := CreateUser(t, s, models.RoleAdmin)

	got, err := s.Users.GetByEmail(ctx, strings.ToUpper(*u.Email))
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash == "" || !got.IsActive {
		t.Errorf("unexpected user: %+v", got)
	}

	if _, err := s.Users.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.Users.GetByPhone(ctx, "+8801700000000"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	renamed, err := s.Users.UpdateName(ctx, u.ID, "Renamed")
	if err != nil || renamed.Name != "Renamed" {
		t.Fatalf("UpdateName: %v, %+v", err, renamed)
	}

	off, err := s.Users.SetActive(ctx, u.ID, false)
	if err != nil || off.IsActive {
		t.Fatalf("SetActive: %v, %+v", err, off)
	}
	if _, err := s.Users.SetActive(ctx, "missing", true); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	byID, err := s.Users.GetByIDs(ctx, []string{u.ID, admin.ID, "missing"})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(byID) != 2 || byID[admin.ID] == nil {
		t.Errorf("expected two users, got %d", len(byID))
	}

	citizens, err := s.Users.CountByRole(ctx, models.RoleCitizen)
	if err != nil || citizens != 1 {
		t.Errorf("CountByRole: %d, %v", citizens, err)
	}
	total, err := s.Users.Count(ctx)
	if err != nil || total != 2 {
		t.Errorf("Count: %d, %v", total, err)
	}

	users, err := s.Users.List(ctx, 1, 0)
	if err != nil || len(users) != 1 {
		t.Fatalf("List: %v, %d", err, len(users))
	}
	if users[0].ID != admin.ID {
		t.Errorf("expected newest account first")
	}
}

func testUserDuplicateContact(t *testing.T, s *repository.Stores) {
	ctx := context.Background()

	phone := "+8801711111111"
	u := NewUser(models.RoleCitizen)
	u.Phone = &phone
	if err := s.Users.Create(ctx, u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	exists, err := s.Users.ExistsByContact(ctx, "", phone)
	if err != nil || !exists {
		t.Errorf("expected phone to exist: %v", err)
	}
	exists, err = s.Users.ExistsByContact(ctx, strings.ToUpper(*u.Email), "")
	if err != nil || !exists {
		t.Errorf("expected email to exist: %v", err)
	}
	exists, err = s.Users.ExistsByContact(ctx, "nobody@example.com", "+8800000000000")
	if err != nil || exists {
		t.Errorf("expected no match: %v", err)
	}

	dup := NewUser(models.RoleCitizen)
	dup.Email = nil
	dup.Phone = &phone
	if err := s.Users.Create(ctx, dup); !errors.Is(err, repository.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	phoneOnly := NewUser(models.RoleCitizen)
	phoneOnly.Email = nil
	other := "+8801722222222"
	phoneOnly.Phone = &other
	if err := s.Users.Create(ctx, phoneOnly); err != nil {
		t.Errorf("accounts without email must not collide: %v", err)
	}
}

func testPostRoundTrip(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	author := CreateUser(t, s, models.RoleCitizen)

	p := CreatePost(t, s, author.ID, WithMedia(models.MediaImage, models.MediaPDF), Anonymous(), func(p *models.Post) {
		p.Tags = []string{"land", "office"}
	})

	got, err := s.Posts.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != p.Title || got.AuthorID != author.ID || !got.IsAnonymous || got.Status != models.StatusPending {
		t.Errorf("unexpected post: %+v", got)
	}
	if len(got.Media) != 2 || got.Media[1].Type != models.MediaPDF || got.Media[0].PublicID != p.Media[0].PublicID {
		t.Errorf("media not preserved: %+v", got.Media)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "land" {
		t.Errorf("tags not preserved: %v", got.Tags)
	}
	if !got.IncidentDate.Equal(p.IncidentDate) {
		t.Errorf("incident date: got %v, want %v", got.IncidentDate, p.IncidentDate)
	}
	if got.RejectionReason != nil || got.ApprovedAt != nil || got.ApprovedBy != nil {
		t.Errorf("pending post must not carry moderation fields: %+v", got)
	}

	if _, err := s.Posts.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
}

func testPostListScopes(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	admin := CreateUser(t, s, models.RoleAdmin)
	alice := CreateUser(t, s, models.RoleCitizen)
	bob := CreateUser(t, s, models.RoleCitizen)

	CreatePost(t, s, alice.ID)
	approved := CreatePost(t, s, alice.ID, WithStatus(models.StatusApproved, admin.ID))
	CreatePost(t, s, bob.ID, WithStatus(models.StatusRejected, admin.ID))

	page := query.Filter{Page: query.Page{Page: 1, Limit: 10}}

	posts, total, err := s.Posts.List(ctx, page, query.PublicScope())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(posts) != 1 || posts[0].ID != approved.ID {
		t.Errorf("public scope must return only approved posts, got %d", total)
	}

	_, total, err = s.Posts.List(ctx, page, query.Scope{AuthorID: alice.ID})
	if err != nil || total != 2 {
		t.Errorf("author scope: %d, %v", total, err)
	}

	rejected := models.StatusRejected
	_, total, err = s.Posts.List(ctx, page, query.Scope{Status: &rejected})
	if err != nil || total != 1 {
		t.Errorf("status scope: %d, %v", total, err)
	}

	_, total, err = s.Posts.List(ctx, page, query.Scope{})
	if err != nil || total != 3 {
		t.Errorf("empty scope: %d, %v", total, err)
	}
}

func testPostListFilters(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	admin := CreateUser(t, s, models.RoleAdmin)
	author := CreateUser(t, s, models.RoleCitizen)
	approved := WithStatus(models.StatusApproved, admin.ID)

	landOffice := CreatePost(t, s, author.ID, approved,
		WithText("Bribe at land office", "Clerk asked for money", "Mirpur, Dhaka"),
		WithMedia(models.MediaVideo),
		WithIncidentDate(time.Date(2024, 1, 31, 18, 30, 0, 0, time.UTC)))
	traffic := CreatePost(t, s, author.ID, approved,
		WithText("Traffic police", "Roadside payment", "Chattogram"),
		WithMedia(models.MediaImage),
		WithIncidentDate(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	CreatePost(t, s, author.ID, approved,
		WithText("Discount 50% off", "Receipt shows 50% cut", "Sylhet"),
		WithIncidentDate(time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)))

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"search", query.Filter{Search: "bribe"}, []string{landOffice.ID}},
		{"location substring ignores case", query.Filter{Location: "dhaka"}, []string{landOffice.ID}},
		{"location wildcard is literal", query.Filter{Location: "%"}, nil},
		{"media type", query.Filter{MediaType: ptr(models.MediaImage)}, []string{traffic.ID}},
		{"date range", query.Filter{
			StartDate: ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			EndDate:   ptr(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)),
		}, []string{landOffice.ID}},
		{"combined", query.Filter{Location: "chatto", MediaType: ptr(models.MediaImage)}, []string{traffic.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Page = query.Page{Page: 1, Limit: 10}
			posts, total, err := s.Posts.List(ctx, tt.filter, query.PublicScope())
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if int(total) != len(tt.want) || len(posts) != len(tt.want) {
				t.Fatalf("expected %d posts, got %d (total %d)", len(tt.want), len(posts), total)
			}
			for i, id := range tt.want {
				if posts[i].ID != id {
					t.Errorf("position %d: got %s, want %s", i, posts[i].ID, id)
				}
			}
		})
	}
}

func testPostListPagination(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	author := CreateUser(t, s, models.RoleCitizen)

	var ids []string
	for range 5 {
		ids = append(ids, CreatePost(t, s, author.ID).ID)
		time.Sleep(2 * time.Millisecond)
	}

	f := query.Filter{Page: query.Page{Page: 2, Limit: 2}}
	posts, total, err := s.Posts.List(ctx, f, query.Scope{AuthorID: author.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 || len(posts) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(posts), total)
	}
	if posts[0].ID != ids[2] || posts[1].ID != ids[1] {
		t.Errorf("expected newest first paging")
	}

	f.Page = query.Page{Page: 4, Limit: 2}
	posts, _, err = s.Posts.List(ctx, f, query.Scope{AuthorID: author.ID})
	if err != nil || len(posts) != 0 {
		t.Errorf("page past the end: %d, %v", len(posts), err)
	}

	f.Page = query.ParsePage(url.Values{"page": {"9223372036854775807"}, "limit": {"100"}}, query.DefaultPublicLimit)
	posts, total, err = s.Posts.List(ctx, f, query.Scope{AuthorID: author.ID})
	if err != nil {
		t.Fatalf("List with huge page failed: %v", err)
	}
	if total != 5 || len(posts) != 0 {
		t.Errorf("huge page: expected 0 of 5, got %d of %d", len(posts), total)
	}
}

func testPostCompareAndSet(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	admin := CreateUser(t, s, models.RoleAdmin)
	author := CreateUser(t, s, models.RoleCitizen)
	p := CreatePost(t, s, author.ID)

	WithStatus(models.StatusApproved, admin.ID)(p)
	p.UpdatedAt = time.Now().UTC()
	if err := s.Posts.UpdateModeration(ctx, p, models.StatusPending); err != nil {
		t.Fatalf("UpdateModeration failed: %v", err)
	}

	got, err := s.Posts.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.StatusApproved || got.ApprovedBy == nil || *got.ApprovedBy != admin.ID || got.ApprovedAt == nil {
		t.Errorf("approval not stored: %+v", got)
	}

	WithStatus(models.StatusRejected, admin.ID)(p)
	if err := s.Posts.UpdateModeration(ctx, p, models.StatusPending); !errors.Is(err, repository.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}

	p.ID = "missing"
	if err := s.Posts.UpdateModeration(ctx, p, models.StatusApproved); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
}

func testPostViewsAndDelete(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	author := CreateUser(t, s, models.RoleCitizen)
	p := CreatePost(t, s, author.ID)

	for want := int64(1); want <= 3; want++ {
		got, err := s.Posts.IncrementViews(ctx, p.ID)
		if err != nil || got != want {
			t.Fatalf("IncrementViews: got %d, %v, want %d", got, err, want)
		}
	}

	c := &models.Comment{PostID: p.ID, AuthorID: author.ID, Content: "seen it"}
	if err := s.Comments.Create(ctx, c); err != nil {
		t.Fatalf("Create comment failed: %v", err)
	}

	if err := s.Posts.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Comments.GetByID(ctx, c.ID); !errors.Is(err, repository.ErrCommentNotFound) {
		t.Errorf("comments must be deleted with their post, got %v", err)
	}
	if err := s.Posts.Delete(ctx, p.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := s.Posts.IncrementViews(ctx, p.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
}

func testPostCounts(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	admin := CreateUser(t, s, models.RoleAdmin)
	alice := CreateUser(t, s, models.RoleCitizen)
	bob := CreateUser(t, s, models.RoleCitizen)

	CreatePost(t, s, alice.ID)
	CreatePost(t, s, alice.ID, WithStatus(models.StatusApproved, admin.ID))
	CreatePost(t, s, alice.ID, WithStatus(models.StatusRejected, admin.ID))
	CreatePost(t, s, bob.ID, WithStatus(models.StatusApproved, admin.ID))

	mine, err := s.Posts.CountByStatus(ctx, alice.ID)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if mine != (models.StatusCounts{Total: 3, Pending: 1, Approved: 1, Rejected: 1}) {
		t.Errorf("unexpected author counts: %+v", mine)
	}

	all, err := s.Posts.CountByStatus(ctx, "")
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if all.Total != 4 || all.Approved != 2 {
		t.Errorf("unexpected counts: %+v", all)
	}
}

func testReferencedMedia(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	author := CreateUser(t, s, models.RoleCitizen)
	p := CreatePost(t, s, author.ID, WithMedia(models.MediaImage, models.MediaVideo))

	found, err := s.Posts.ReferencedMedia(ctx, []string{p.Media[0].PublicID, "orphan"})
	if err != nil {
		t.Fatalf("ReferencedMedia failed: %v", err)
	}
	if !found[p.Media[0].PublicID] || found["orphan"] || found[p.Media[1].PublicID] {
		t.Errorf("unexpected result: %v", found)
	}
}

func testComments(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	author := CreateUser(t, s, models.RoleCitizen)
	p := CreatePost(t, s, author.ID)

	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		c := &models.Comment{PostID: p.ID, AuthorID: author.ID, Content: text, IsAnonymous: text == "second"}
		if err := s.Comments.Create(ctx, c); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, c.ID)
		time.Sleep(2 * time.Millisecond)
	}

	comments, total, err := s.Comments.ListByPost(ctx, p.ID, query.Page{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListByPost failed: %v", err)
	}
	if total != 3 || len(comments) != 2 || comments[0].Content != "first" || !comments[1].IsAnonymous {
		t.Errorf("expected oldest first page, got %d of %d", len(comments), total)
	}

	if err := s.Comments.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Comments.Delete(ctx, ids[0]); !errors.Is(err, repository.ErrCommentNotFound) {
		t.Errorf("expected ErrCommentNotFound, got %v", err)
	}
}

func testAuditLog(t *testing.T, s *repository.Stores) {
	ctx := context.Background()
	admin := CreateUser(t, s, models.RoleAdmin)

	for _, action := range []string{"post.approve", "post.reject", "post.approve"} {
		entry := &models.AuditLog{UserID: &admin.ID, Action: action, Resource: "post", ResourceID: "p1"}
		if err := s.Audit.Create(ctx, entry); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := s.Audit.Create(ctx, &models.AuditLog{Action: "user.register", Resource: "user"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := s.Audit.Count(ctx, repository.AuditFilters{Action: "post.approve"})
	if err != nil || n != 2 {
		t.Errorf("Count: %d, %v", n, err)
	}

	logs, err := s.Audit.List(ctx, repository.AuditFilters{UserID: admin.ID}, query.Page{Page: 1, Limit: 10})
	if err != nil || len(logs) != 3 {
		t.Fatalf("List: %d, %v", len(logs), err)
	}
	if logs[0].UserID == nil || *logs[0].UserID != admin.ID {
		t.Errorf("unexpected entry: %+v", logs[0])
	}
}

func ptr[T any](v T) *T {
	return &v
}
