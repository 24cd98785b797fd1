package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"chandabaz/internal/auth"
	"chandabaz/internal/cache"
	"chandabaz/internal/config"
	"chandabaz/internal/media"
	"chandabaz/internal/models"
	"chandabaz/internal/moderation"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
	"chandabaz/internal/service"
	"chandabaz/internal/testutil"
)

type sentMail struct {
	kind, to, detail string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) SendPostApproved(_ context.Context, to, _, _, postID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"approved", to, postID})
	return nil
}

func (n *fakeNotifier) SendPostRejected(_ context.Context, to, _, _, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"rejected", to, reason})
	return nil
}

type harness struct {
	mem      *testutil.MemoryStore
	stores   *repository.Stores
	files    *media.FileStore
	notifier *fakeNotifier
	auth     *service.AuthService
	posts    *service.PostService
	comments *service.CommentService
	users    *service.UserService
	audit    *service.AuditService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := testutil.NewMemoryStore()
	stores := mem.Stores()

	files, err := media.NewFileStore(t.TempDir(), "/uploads", 1<<20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	accounts := cache.NewAccountCache(16, time.Minute)
	audit := service.NewAuditService(stores.Audit)
	notifier := &fakeNotifier{}
	limits := media.Limits{MaxFiles: 5, MaxFileSize: 1 << 20}

	return &harness{
		mem:      mem,
		stores:   stores,
		files:    files,
		notifier: notifier,
		auth:     service.NewAuthService(stores.Users, testutil.NewAuthService(t), accounts, audit),
		posts:    service.NewPostService(stores.Posts, stores.Users, files, limits, audit, notifier),
		comments: service.NewCommentService(stores.Comments, stores.Posts, stores.Users, audit),
		users:    service.NewUserService(stores.Users, stores.Posts, accounts, audit),
		audit:    audit,
	}
}

func upload(name, contentType, data string) media.Upload {
	return media.Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(data))), nil
		},
	}
}

func validPost() service.CreatePostInput {
	return service.CreatePostInput{
		Title:        "T",
		Description:  "D",
		Location:     "L",
		IncidentDate: "2024-01-01",
	}
}

func storedFiles(t *testing.T, h *harness) int {
	t.Helper()
	files, err := h.files.List(context.Background())
	if err != nil {
		t.Fatalf("List files failed: %v", err)
	}
	return len(files)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.auth.Register(ctx, service.RegisterInput{Name: "A", Password: "secret1", Email: "A@X.com"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if session.Token == "" || session.User.Role != models.RoleCitizen || !session.User.IsActive {
		t.Errorf("unexpected session: %+v", session.User)
	}
	if *session.User.Email != "a@x.com" {
		t.Errorf("email not normalised: %q", *session.User.Email)
	}

	if _, err := h.auth.Register(ctx, service.RegisterInput{Name: "B", Password: "secret1", Email: "a@x.com"}); !errors.Is(err, repository.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	if _, err := h.auth.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "wrong-password"}); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := h.auth.Login(ctx, service.LoginInput{Email: "nobody@x.com", Password: "secret1"}); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown account, got %v", err)
	}

	login, err := h.auth.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	user, err := h.auth.ResolveCurrentUser(ctx, login.Token)
	if err != nil || user.ID != session.User.ID {
		t.Fatalf("ResolveCurrentUser: %v, %+v", err, user)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		input service.RegisterInput
	}{
		{"no contact", service.RegisterInput{Name: "A", Password: "secret1"}},
		{"no password", service.RegisterInput{Name: "A", Email: "a@x.com"}},
		{"short password", service.RegisterInput{Name: "A", Email: "a@x.com", Password: "123"}},
		{"no name", service.RegisterInput{Email: "a@x.com", Password: "secret1"}},
		{"bad email", service.RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Register(context.Background(), tt.input)
			if !service.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoginByPhoneAndInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.auth.Register(ctx, service.RegisterInput{Name: "P", Password: "secret1", Phone: "+880 1711-000000"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := h.auth.Login(ctx, service.LoginInput{Phone: "+8801711000000", Password: "secret1"}); err != nil {
		t.Fatalf("phone login failed: %v", err)
	}

	// prime the account cache, then deactivate through the user service
	if _, err := h.auth.ResolveCurrentUser(ctx, session.Token); err != nil {
		t.Fatalf("ResolveCurrentUser failed: %v", err)
	}
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	if _, err := h.users.ToggleActive(ctx, admin, session.User.ID); err != nil {
		t.Fatalf("ToggleActive failed: %v", err)
	}

	if _, err := h.auth.Login(ctx, service.LoginInput{Phone: "+8801711000000", Password: "secret1"}); !errors.Is(err, service.ErrUserInactive) {
		t.Errorf("expected ErrUserInactive, got %v", err)
	}
	if _, err := h.auth.ResolveCurrentUser(ctx, session.Token); !errors.Is(err, service.ErrUserInactive) {
		t.Errorf("expected ErrUserInactive after cache invalidation, got %v", err)
	}
}

func TestResolveCurrentUserRejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.auth.ResolveCurrentUser(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	ghost, err := testutil.NewAuthService(t).GenerateToken("no-such-user", models.RoleCitizen)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := h.auth.ResolveCurrentUser(ctx, ghost); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for unknown account, got %v", err)
	}
}

func TestSeedAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := config.AdminConfig{Name: "Root", Email: "Admin@X.com", Password: "secret1"}

	for range 2 {
		if err := h.auth.SeedAdmin(ctx, cfg); err != nil {
			t.Fatalf("SeedAdmin failed: %v", err)
		}
	}
	admins, _ := h.stores.Users.CountByRole(ctx, models.RoleAdmin)
	if admins != 1 {
		t.Errorf("expected one admin, got %d", admins)
	}

	session, err := h.auth.Login(ctx, service.LoginInput{Email: "admin@x.com", Password: "secret1"})
	if err != nil || session.User.Role != models.RoleAdmin {
		t.Fatalf("admin login: %v", err)
	}

	if err := h.auth.SeedAdmin(ctx, config.AdminConfig{}); err != nil {
		t.Errorf("empty seed must be a no-op: %v", err)
	}
}

func TestCreatePostIsPendingAndPrivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	in := validPost()
	in.IsAnonymous = true
	in.Tags = []string{"bribe, police"}
	view, err := h.posts.Create(ctx, author, in, []media.Upload{upload("a.jpg", "image/jpeg", "jpeg")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if view.Status != models.StatusPending || len(view.Media) != 1 || view.Media[0].Type != models.MediaImage {
		t.Errorf("unexpected view: %+v", view)
	}
	if len(view.Tags) != 2 {
		t.Errorf("expected split tags, got %v", view.Tags)
	}
	if view.Author == nil || view.Author.ID != author.ID {
		t.Error("owner must see the author of their own anonymous post")
	}

	public, pg, err := h.posts.List(ctx, service.ViewerOf(nil), query.Filter{Page: query.Page{Page: 1, Limit: 12}})
	if err != nil || len(public) != 0 || pg.Total != 0 {
		t.Errorf("pending post leaked into public list: %d, %v", len(public), err)
	}

	mine, _, err := h.posts.ListMine(ctx, service.ViewerOf(author), query.Page{Page: 1, Limit: 10}, nil)
	if err != nil || len(mine) != 1 || mine[0].Status != models.StatusPending {
		t.Errorf("owner listing: %d, %v", len(mine), err)
	}

	if _, err := h.posts.Get(ctx, service.ViewerOf(nil), view.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected not found for anonymous viewer, got %v", err)
	}
}

func TestCreatePostValidation(t *testing.T) {
	h := newHarness(t)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	missingTitle := validPost()
	missingTitle.Title = "  "
	badDate := validPost()
	badDate.IncidentDate = "yesterday"

	tests := []struct {
		name    string
		input   service.CreatePostInput
		uploads []media.Upload
		check   func(error) bool
	}{
		{"missing title", missingTitle, nil, service.IsValidation},
		{"bad date", badDate, nil, service.IsValidation},
		{"unsupported file", validPost(), []media.Upload{upload("a.exe", "application/x-msdownload", "x")}, media.IsUploadError},
		{"too many files", validPost(), []media.Upload{
			upload("1.jpg", "image/jpeg", "x"), upload("2.jpg", "image/jpeg", "x"), upload("3.jpg", "image/jpeg", "x"),
			upload("4.jpg", "image/jpeg", "x"), upload("5.jpg", "image/jpeg", "x"), upload("6.jpg", "image/jpeg", "x"),
		}, media.IsUploadError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.posts.Create(context.Background(), author, tt.input, tt.uploads)
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	if n := storedFiles(t, h); n != 0 {
		t.Errorf("rejected uploads left %d files", n)
	}
}

func TestCreatePostRemovesFilesWhenInsertFails(t *testing.T) {
	h := newHarness(t)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)
	h.mem.FailPostCreate = errors.New("write failed")

	_, err := h.posts.Create(context.Background(), author, validPost(), []media.Upload{
		upload("a.jpg", "image/jpeg", "jpeg"),
		upload("b.pdf", "application/pdf", "pdf"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := storedFiles(t, h); n != 0 {
		t.Errorf("expected compensating delete, %d files remain", n)
	}
}

func TestModerationFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)
	other := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	in := validPost()
	in.IsAnonymous = true
	created, err := h.posts.Create(ctx, author, in, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// reject without reason changes nothing
	_, err = h.posts.Reject(ctx, admin, created.ID, "   ")
	var te *moderation.TransitionError
	if !errors.As(err, &te) || te.Code != moderation.CodeReasonRequired {
		t.Fatalf("expected REASON_REQUIRED, got %v", err)
	}
	stored, _ := h.stores.Posts.GetByID(ctx, created.ID)
	if stored.Status != models.StatusPending || stored.RejectionReason != nil {
		t.Errorf("failed reject changed the post: %+v", stored)
	}

	// citizens cannot approve
	if _, err := h.posts.Approve(ctx, other, created.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected hidden post for non-owner citizen, got %v", err)
	}

	approved, err := h.posts.Approve(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != models.StatusApproved || approved.ApprovedBy == nil || *approved.ApprovedBy != admin.ID {
		t.Errorf("unexpected approval: %+v", approved)
	}

	// public reads count views and hide the anonymous author
	for want := int64(1); want <= 2; want++ {
		v, err := h.posts.Get(ctx, service.ViewerOf(nil), created.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v.ViewCount != want {
			t.Errorf("expected %d views, got %d", want, v.ViewCount)
		}
		if v.Author != nil {
			t.Error("anonymous author leaked to the public")
		}
		if v.ApprovedBy != nil {
			t.Error("approving admin leaked to the public")
		}
	}
	ownerView, err := h.posts.Get(ctx, service.ViewerOf(author), created.ID)
	if err != nil || ownerView.ViewCount != 2 || ownerView.Author == nil {
		t.Errorf("owner read must not count: %d, %v", ownerView.ViewCount, err)
	}

	if _, err := h.posts.Approve(ctx, admin, created.ID); !errors.As(err, &te) || te.Code != moderation.CodeInvalidTransition {
		t.Errorf("expected INVALID_TRANSITION on re-approve, got %v", err)
	}

	rejected, err := h.posts.Reject(ctx, admin, created.ID, "blurry evidence")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.StatusRejected || rejected.ApprovedAt != nil || *rejected.RejectionReason != "blurry evidence" {
		t.Errorf("unexpected rejection: %+v", rejected)
	}

	if _, err := h.posts.Resubmit(ctx, admin, created.ID, nil); !errors.As(err, &te) || te.Code != moderation.CodeNotOwner {
		t.Errorf("expected NOT_OWNER for admin resubmit, got %v", err)
	}
	again, err := h.posts.Resubmit(ctx, author, created.ID, nil)
	if err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}
	if again.Status != models.StatusPending || again.RejectionReason != nil {
		t.Errorf("resubmit must return to pending without reason: %+v", again)
	}

	if len(h.notifier.sent) != 2 || h.notifier.sent[0].kind != "approved" || h.notifier.sent[1].detail != "blurry evidence" {
		t.Errorf("unexpected notifications: %+v", h.notifier.sent)
	}

	actions := map[string]int{}
	for _, e := range h.mem.AuditEntries() {
		actions[e.Action]++
	}
	if actions[service.ActionPostApproved] != 1 || actions[service.ActionPostRejected] != 1 || actions[service.ActionPostResubmitted] != 1 {
		t.Errorf("unexpected audit trail: %v", actions)
	}
}

func TestResubmitReplacesMedia(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	created, err := h.posts.Create(ctx, author, validPost(), []media.Upload{upload("old.jpg", "image/jpeg", "old")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.posts.Reject(ctx, admin, created.ID, "unclear"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	view, err := h.posts.Resubmit(ctx, author, created.ID, []media.Upload{upload("new.mp4", "video/mp4", "new")})
	if err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}
	if len(view.Media) != 1 || view.Media[0].Type != models.MediaVideo {
		t.Errorf("media not replaced: %+v", view.Media)
	}

	files, _ := h.files.List(ctx)
	if len(files) != 1 || files[0].PublicID != view.Media[0].PublicID {
		t.Errorf("superseded file not removed: %+v", files)
	}
}

func TestDeletePost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)
	other := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	created, err := h.posts.Create(ctx, author, validPost(), []media.Upload{upload("a.pdf", "application/pdf", "pdf")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.posts.Approve(ctx, admin, created.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	comment, err := h.comments.Add(ctx, other, created.ID, service.AddCommentInput{Content: "seen it"})
	if err != nil {
		t.Fatalf("Add comment failed: %v", err)
	}
	if _, err := h.posts.Reject(ctx, admin, created.ID, "duplicate"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if err := h.posts.Delete(ctx, other, created.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("non-owner must not see a rejected post, got %v", err)
	}

	if err := h.posts.Delete(ctx, author, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	for _, viewer := range []*models.User{nil, author, admin} {
		if _, err := h.posts.Get(ctx, service.ViewerOf(viewer), created.ID); !errors.Is(err, repository.ErrPostNotFound) {
			t.Errorf("expected not found after delete, got %v", err)
		}
	}
	if _, err := h.stores.Comments.GetByID(ctx, comment.ID); !errors.Is(err, repository.ErrCommentNotFound) {
		t.Errorf("comments must be removed with the post, got %v", err)
	}
	if n := storedFiles(t, h); n != 0 {
		t.Errorf("media not removed, %d files remain", n)
	}
}

func TestDeleteApprovedPostByStranger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)
	other := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	p := testutil.CreatePost(t, h.stores, author.ID, testutil.WithStatus(models.StatusApproved, admin.ID))

	var te *moderation.TransitionError
	if err := h.posts.Delete(ctx, other, p.ID); !errors.As(err, &te) || te.Code != moderation.CodeNotOwner {
		t.Errorf("expected NOT_OWNER, got %v", err)
	}
	if err := h.posts.Delete(ctx, admin, p.ID); err != nil {
		t.Errorf("admin delete failed: %v", err)
	}
}

func TestListFiltersAndPagination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	for range 5 {
		testutil.CreatePost(t, h.stores, author.ID, testutil.WithStatus(models.StatusApproved, admin.ID))
	}
	testutil.CreatePost(t, h.stores, author.ID)

	views, pg, err := h.posts.List(ctx, service.ViewerOf(nil), query.Filter{Page: query.Page{Page: 3, Limit: 2}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if pg.Total != 5 || pg.Pages != 3 || len(views) != 1 {
		t.Errorf("unexpected page: %+v, %d items", pg, len(views))
	}

	views, pg, err = h.posts.List(ctx, service.ViewerOf(nil), query.Filter{Page: query.Page{Page: 9, Limit: 2}})
	if err != nil || len(views) != 0 || pg.Total != 5 {
		t.Errorf("page past the end: %d items, %+v, %v", len(views), pg, err)
	}

	pending, pg, err := h.posts.ListPending(ctx, service.ViewerOf(admin), query.Page{Page: 1, Limit: 20})
	if err != nil || len(pending) != 1 || pg.Total != 1 {
		t.Errorf("pending queue: %d, %v", len(pending), err)
	}
	if _, _, err := h.posts.ListAdmin(ctx, service.ViewerOf(author), query.Filter{Page: query.Page{Page: 1, Limit: 20}}, nil); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for citizen, got %v", err)
	}
}

func TestComments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	author := testutil.CreateUser(t, h.stores, models.RoleCitizen)
	other := testutil.CreateUser(t, h.stores, models.RoleCitizen)

	pending := testutil.CreatePost(t, h.stores, author.ID)
	approved := testutil.CreatePost(t, h.stores, author.ID, testutil.WithStatus(models.StatusApproved, admin.ID), testutil.Anonymous())

	if _, err := h.comments.Add(ctx, other, pending.ID, service.AddCommentInput{Content: "hi"}); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected not found on pending post, got %v", err)
	}
	if _, err := h.comments.Add(ctx, other, approved.ID, service.AddCommentInput{Content: "  "}); !service.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	named, err := h.comments.Add(ctx, other, approved.ID, service.AddCommentInput{Content: " I saw this too "})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if named.Content != "I saw this too" || named.Author == nil {
		t.Errorf("comment on an anonymous post keeps its own author: %+v", named)
	}
	hidden, err := h.comments.Add(ctx, other, approved.ID, service.AddCommentInput{Content: "me too", IsAnonymous: true})
	if err != nil || hidden.Author != nil {
		t.Fatalf("anonymous comment: %v, %+v", err, hidden)
	}

	list, pg, err := h.comments.List(ctx, approved.ID, query.Page{Page: 1, Limit: 20})
	if err != nil || len(list) != 2 || pg.Total != 2 {
		t.Fatalf("List: %d, %v", len(list), err)
	}
	if list[0].ID != named.ID || list[1].Author != nil {
		t.Errorf("unexpected order or redaction: %+v", list)
	}

	if err := h.comments.Delete(ctx, author, named.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for post owner, got %v", err)
	}
	if err := h.comments.Delete(ctx, admin, named.ID); err != nil {
		t.Errorf("admin delete failed: %v", err)
	}
	if err := h.comments.Delete(ctx, other, hidden.ID); err != nil {
		t.Errorf("author delete failed: %v", err)
	}
}

func TestUserService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.stores, models.RoleAdmin)
	citizen := testutil.CreateUser(t, h.stores, models.RoleCitizen)
	testutil.CreateUser(t, h.stores, models.RoleCitizen)

	email := "new@x.com"
	if _, err := h.users.UpdateName(ctx, citizen, service.UpdateNameInput{Name: "New", Email: &email}); !service.IsValidation(err) {
		t.Errorf("expected validation error for email change, got %v", err)
	}
	renamed, err := h.users.UpdateName(ctx, citizen, service.UpdateNameInput{Name: " Renamed "})
	if err != nil || renamed.Name != "Renamed" {
		t.Errorf("UpdateName: %v, %+v", err, renamed)
	}

	if _, err := h.users.ToggleActive(ctx, admin, admin.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for admin target, got %v", err)
	}
	off, err := h.users.ToggleActive(ctx, admin, citizen.ID)
	if err != nil || off.IsActive {
		t.Fatalf("ToggleActive: %v, %+v", err, off)
	}
	on, err := h.users.ToggleActive(ctx, admin, citizen.ID)
	if err != nil || !on.IsActive {
		t.Fatalf("ToggleActive back: %v, %+v", err, on)
	}
	if _, err := h.users.ToggleActive(ctx, admin, "missing"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	testutil.CreatePost(t, h.stores, citizen.ID)
	testutil.CreatePost(t, h.stores, citizen.ID, testutil.WithStatus(models.StatusApproved, admin.ID))

	stats, err := h.users.Stats(ctx, citizen.ID)
	if err != nil || stats != (models.StatusCounts{Total: 2, Pending: 1, Approved: 1}) {
		t.Errorf("Stats: %+v, %v", stats, err)
	}

	adminStats, err := h.users.AdminStats(ctx)
	if err != nil {
		t.Fatalf("AdminStats failed: %v", err)
	}
	if adminStats.TotalUsers != 2 || adminStats.TotalPosts != 2 || adminStats.PendingPosts != 1 {
		t.Errorf("unexpected admin stats: %+v", adminStats)
	}

	users, pg, err := h.users.List(ctx, query.Page{Page: 1, Limit: 2})
	if err != nil || len(users) != 2 || pg.Total != 3 || pg.Pages != 2 {
		t.Errorf("List: %d, %+v, %v", len(users), pg, err)
	}

	logs, _, err := h.audit.List(ctx, repository.AuditFilters{Action: service.ActionUserToggled}, query.Page{Page: 1, Limit: 50})
	if err != nil || len(logs) != 2 {
		t.Errorf("expected two toggle audit entries, got %d, %v", len(logs), err)
	}
}

func TestAuditCarriesRequestMeta(t *testing.T) {
	h := newHarness(t)
	ctx := service.WithRequestMeta(context.Background(), service.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"})

	h.audit.Log(ctx, "u1", service.ActionPostDeleted, "post", "p1", "")

	entries := h.mem.AuditEntries()
	if len(entries) != 1 || entries[0].IPAddress != "10.0.0.1" || entries[0].UserAgent != "test-agent" || *entries[0].UserID != "u1" {
		t.Errorf("unexpected audit entries: %+v", entries)
	}
}
