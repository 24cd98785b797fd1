package visibility

import (
	"testing"
	"time"

	"chandabaz/internal/models"
)

var (
	author    = &models.User{ID: "u-author", Name: "Rahim", Role: models.RoleCitizen}
	ownerView = Viewer{ID: "u-author", Role: models.RoleCitizen}
	adminView = Viewer{ID: "u-admin", Role: models.RoleAdmin}
	otherView = Viewer{ID: "u-other", Role: models.RoleCitizen}
	anonView  = Viewer{}
)

func post(status models.Status, anonymous bool) *models.Post {
	p := &models.Post{
		ID:          "p1",
		Title:       "Bribe at permit office",
		AuthorID:    author.ID,
		Status:      status,
		IsAnonymous: anonymous,
		CreatedAt:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if status == models.StatusRejected {
		r := "no evidence"
		p.RejectionReason = &r
	}
	if status == models.StatusApproved {
		at := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
		by := adminView.ID
		p.ApprovedAt = &at
		p.ApprovedBy = &by
	}
	return p
}

func TestRedactMatrix(t *testing.T) {
	tests := []struct {
		name       string
		status     models.Status
		anonymous  bool
		viewer     Viewer
		visible    bool
		wantAuthor bool
		wantReason bool
	}{
		{"owner sees own pending", models.StatusPending, false, ownerView, true, true, false},
		{"owner sees own rejected with reason", models.StatusRejected, true, ownerView, true, true, true},
		{"admin sees rejected anonymous author", models.StatusRejected, true, adminView, true, true, true},
		{"admin sees pending", models.StatusPending, false, adminView, true, true, false},
		{"public cannot see pending", models.StatusPending, false, anonView, false, false, false},
		{"other cannot see rejected", models.StatusRejected, false, otherView, false, false, false},
		{"public sees approved author", models.StatusApproved, false, anonView, true, true, false},
		{"public sees approved anonymous without author", models.StatusApproved, true, anonView, true, false, false},
		{"other sees approved anonymous without author", models.StatusApproved, true, otherView, true, false, false},
		{"owner sees own anonymous author", models.StatusApproved, true, ownerView, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, ok := Redact(post(tt.status, tt.anonymous), author, tt.viewer)
			if ok != tt.visible {
				t.Fatalf("visible = %v, want %v", ok, tt.visible)
			}
			if !ok {
				if view.ID != "" {
					t.Errorf("hidden post leaked content: %+v", view)
				}
				return
			}
			if (view.Author != nil) != tt.wantAuthor {
				t.Errorf("author present = %v, want %v", view.Author != nil, tt.wantAuthor)
			}
			if (view.RejectionReason != nil) != tt.wantReason {
				t.Errorf("rejection reason present = %v, want %v", view.RejectionReason != nil, tt.wantReason)
			}
		})
	}
}

func TestRedactHidesApproverFromPublic(t *testing.T) {
	view, ok := Redact(post(models.StatusApproved, false), author, anonView)
	if !ok {
		t.Fatal("approved post should be visible")
	}
	if view.ApprovedBy != nil {
		t.Errorf("approvedBy leaked to public: %v", *view.ApprovedBy)
	}

	view, _ = Redact(post(models.StatusApproved, false), author, adminView)
	if view.ApprovedBy == nil {
		t.Error("admin should see approvedBy")
	}
}

func TestRedactContactDetails(t *testing.T) {
	email, phone := "rahim@example.com", "01711111111"
	withContact := *author
	withContact.Email, withContact.Phone = &email, &phone

	for _, viewer := range []Viewer{adminView, ownerView} {
		view, _ := Redact(post(models.StatusApproved, true), &withContact, viewer)
		if view.Author == nil || view.Author.Email == nil || *view.Author.Email != email || view.Author.Phone == nil || *view.Author.Phone != phone {
			t.Errorf("viewer %s should see contact details, got %+v", viewer.ID, view.Author)
		}
	}

	for _, viewer := range []Viewer{anonView, otherView} {
		view, _ := Redact(post(models.StatusApproved, false), &withContact, viewer)
		if view.Author == nil || view.Author.Email != nil || view.Author.Phone != nil {
			t.Errorf("viewer %q must only see the name, got %+v", viewer.ID, view.Author)
		}
	}

	named := &models.Comment{ID: "c1", PostID: "p1", AuthorID: author.ID}
	if v := RedactComment(named, &withContact); v.Author == nil || v.Author.Email != nil || v.Author.Phone != nil {
		t.Errorf("comment author must not carry contact details, got %+v", v.Author)
	}
}

func TestRedactAllDropsInvisible(t *testing.T) {
	posts := []models.Post{
		*post(models.StatusApproved, true),
		*post(models.StatusPending, false),
		*post(models.StatusApproved, false),
	}
	posts[1].ID, posts[2].ID = "p2", "p3"

	views := RedactAll(posts, map[string]*models.User{author.ID: author}, anonView)
	if len(views) != 2 {
		t.Fatalf("expected 2 visible posts, got %d", len(views))
	}
	if views[0].Author != nil {
		t.Error("anonymous post exposed its author")
	}
	if views[1].Author == nil || views[1].Author.Name != "Rahim" {
		t.Errorf("expected author on named post, got %+v", views[1].Author)
	}
}

func TestRedactCommentUsesCommentFlag(t *testing.T) {
	named := &models.Comment{ID: "c1", PostID: "p1", AuthorID: author.ID, Content: "seen it too"}
	hidden := &models.Comment{ID: "c2", PostID: "p1", AuthorID: author.ID, Content: "me too", IsAnonymous: true}

	if v := RedactComment(named, author); v.Author == nil {
		t.Error("named comment lost its author")
	}
	if v := RedactComment(hidden, author); v.Author != nil {
		t.Error("anonymous comment exposed its author")
	}

	views := RedactComments([]models.Comment{*named, *hidden}, map[string]*models.User{author.ID: author})
	if len(views) != 2 || views[0].Author == nil || views[1].Author != nil {
		t.Errorf("unexpected comment views: %+v", views)
	}
}

func TestRedactNil(t *testing.T) {
	if _, ok := Redact(nil, nil, adminView); ok {
		t.Error("nil post must not be visible")
	}
}
