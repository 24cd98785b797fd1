package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"chandabaz/internal/cache"
	"chandabaz/internal/handlers"
	"chandabaz/internal/media"
	"chandabaz/internal/middleware"
	"chandabaz/internal/models"
	"chandabaz/internal/service"
	"chandabaz/internal/testutil"
	"chandabaz/internal/visibility"
)

type testServer struct {
	handler http.Handler
	mem     *testutil.MemoryStore
	auth    *testutil.AuthHelper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := testutil.NewMemoryStore()
	stores := mem.Stores()
	tokens := testutil.NewAuthService(t)

	files, err := media.NewFileStore(t.TempDir(), "/uploads", 1<<20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	limits := media.Limits{MaxFiles: 5, MaxFileSize: 1 << 20}
	accounts := cache.NewAccountCache(16, time.Minute)
	audit := service.NewAuditService(stores.Audit)

	authSvc := service.NewAuthService(stores.Users, tokens, accounts, audit)
	postSvc := service.NewPostService(stores.Posts, stores.Users, files, limits, audit, nil)
	userSvc := service.NewUserService(stores.Users, stores.Posts, accounts, audit)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, &handlers.Handlers{
		Auth:     handlers.NewAuthHandler(authSvc),
		Posts:    handlers.NewPostHandler(postSvc, limits),
		Comments: handlers.NewCommentHandler(service.NewCommentService(stores.Comments, stores.Posts, stores.Users, audit)),
		Users:    handlers.NewUserHandler(userSvc),
		Admin:    handlers.NewAdminHandler(postSvc, userSvc),
		Audit:    handlers.NewAuditHandler(audit),
	}, middleware.NewAuthMiddleware(authSvc))

	return &testServer{handler: mux, mem: mem, auth: testutil.NewAuthHelper(tokens)}
}

func (s *testServer) do(t *testing.T, req *http.Request) *testutil.TestResponse {
	t.Helper()
	rr := testutil.NewTestResponse()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) json(t *testing.T, method, url string, body any, user *models.User) *testutil.TestResponse {
	t.Helper()
	return s.do(t, s.auth.NewJSONRequest(t, method, url, body, user))
}

type file struct {
	name, contentType, data string
}

func multipartRequest(t *testing.T, method, url string, fields map[string]string, files []file) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="media"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart failed: %v", err)
		}
		_, _ = part.Write([]byte(f.data))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func reportFields() map[string]string {
	return map[string]string{
		"title":        "Bribe at passport office",
		"description":  "Clerk asked for 2000 taka",
		"location":     "Dhaka",
		"incidentDate": "2024-01-15",
		"isAnonymous":  "true",
		"tags":         "passport, bribe",
	}
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	body := map[string]string{"name": "Rahim", "email": "rahim@example.com", "password": "secret1"}
	rr := s.json(t, http.MethodPost, "/api/auth/register", body, nil)
	rr.AssertStatus(t, http.StatusCreated)

	var session struct {
		Token string `json:"token"`
		User  struct {
			ID           string `json:"id"`
			Role         string `json:"role"`
			PasswordHash string `json:"passwordHash"`
		} `json:"user"`
	}
	env := rr.Envelope(t, &session)
	if !env.Success || session.Token == "" || session.User.Role != "citizen" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("password hash leaked into the response")
	}

	s.json(t, http.MethodPost, "/api/auth/register", body, nil).AssertStatus(t, http.StatusConflict)
	s.json(t, http.MethodPost, "/api/auth/register", map[string]string{"name": "X", "password": "secret1"}, nil).
		AssertStatus(t, http.StatusBadRequest)

	s.json(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "rahim@example.com", "password": "nope"}, nil).
		AssertStatus(t, http.StatusUnauthorized)

	rr = s.json(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "RAHIM@example.com", "password": "secret1"}, nil)
	rr.AssertStatus(t, http.StatusOK)
	rr.Envelope(t, &session)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr = s.do(t, req)
	rr.AssertStatus(t, http.StatusOK)

	s.json(t, http.MethodGet, "/api/auth/me", nil, nil).AssertStatus(t, http.StatusUnauthorized)
}

func TestReportLifecycle(t *testing.T) {
	s := newTestServer(t)
	stores := s.mem.Stores()
	admin := testutil.CreateUser(t, stores, models.RoleAdmin)
	author := testutil.CreateUser(t, stores, models.RoleCitizen)

	req := multipartRequest(t, http.MethodPost, "/api/posts", reportFields(), []file{{"proof.jpg", "image/jpeg", "jpeg-bytes"}})
	s.auth.AddAuthHeader(t, req, author)
	rr := s.do(t, req)
	rr.AssertStatus(t, http.StatusCreated)

	var created visibility.ReportView
	rr.Envelope(t, &created)
	if created.Status != models.StatusPending || len(created.Media) != 1 || len(created.Tags) != 2 {
		t.Fatalf("unexpected report: %+v", created)
	}

	// pending reports are hidden from the public
	rr = s.json(t, http.MethodGet, "/api/posts", nil, nil)
	rr.AssertStatus(t, http.StatusOK)
	if env := rr.Envelope(t, nil); env.Pagination == nil || env.Pagination.Total != 0 || string(env.Data) != "[]" {
		t.Errorf("expected empty public list, got %s", rr.Body.String())
	}
	s.json(t, http.MethodGet, "/api/posts/"+created.ID, nil, nil).AssertStatus(t, http.StatusNotFound)
	s.json(t, http.MethodGet, "/api/posts/"+created.ID, nil, author).AssertStatus(t, http.StatusOK)

	// moderation
	s.json(t, http.MethodPut, "/api/admin/posts/"+created.ID+"/approve", nil, author).AssertStatus(t, http.StatusForbidden)
	s.json(t, http.MethodPut, "/api/admin/posts/"+created.ID+"/reject", map[string]string{"reason": " "}, admin).
		AssertStatus(t, http.StatusBadRequest)
	s.json(t, http.MethodPut, "/api/admin/posts/"+created.ID+"/reject", nil, admin).AssertStatus(t, http.StatusBadRequest)
	s.json(t, http.MethodPost, "/api/admin/posts/"+created.ID+"/approve", nil, admin).AssertStatus(t, http.StatusOK)
	s.json(t, http.MethodPut, "/api/admin/posts/"+created.ID+"/approve", nil, admin).AssertStatus(t, http.StatusConflict)

	// public detail hides the anonymous author and counts the view
	rr = s.json(t, http.MethodGet, "/api/posts/"+created.ID, nil, nil)
	rr.AssertStatus(t, http.StatusOK)
	var public map[string]any
	rr.Envelope(t, &public)
	if public["author"] != nil {
		t.Errorf("anonymous author leaked: %v", public["author"])
	}
	if _, ok := public["approvedBy"]; ok {
		t.Error("approvedBy must be omitted for the public")
	}
	if public["viewCount"] != float64(1) {
		t.Errorf("expected one view, got %v", public["viewCount"])
	}

	rr = s.json(t, http.MethodGet, "/api/posts?search=passport&mediaType=image", nil, nil)
	rr.AssertStatus(t, http.StatusOK)
	if env := rr.Envelope(t, nil); env.Pagination.Total != 1 {
		t.Errorf("expected search hit, got %s", rr.Body.String())
	}

	// owner resubmit is only legal after a rejection
	s.json(t, http.MethodPut, "/api/posts/"+created.ID+"/resubmit", nil, author).AssertStatus(t, http.StatusConflict)
	s.json(t, http.MethodPut, "/api/admin/posts/"+created.ID+"/reject", map[string]string{"reason": "blurry"}, admin).
		AssertStatus(t, http.StatusOK)

	rr = s.json(t, http.MethodGet, "/api/posts/my?status=rejected", nil, author)
	rr.AssertStatus(t, http.StatusOK)
	var mine []visibility.ReportView
	rr.Envelope(t, &mine)
	if len(mine) != 1 || mine[0].RejectionReason == nil || *mine[0].RejectionReason != "blurry" {
		t.Errorf("owner must see the rejection reason: %s", rr.Body.String())
	}

	req = multipartRequest(t, http.MethodPut, "/api/posts/"+created.ID+"/resubmit", nil, []file{{"clear.pdf", "application/pdf", "%PDF"}})
	s.auth.AddAuthHeader(t, req, author)
	rr = s.do(t, req)
	rr.AssertStatus(t, http.StatusOK)
	rr.Envelope(t, &created)
	if created.Status != models.StatusPending || created.Media[0].Type != models.MediaPDF {
		t.Errorf("unexpected resubmitted report: %+v", created)
	}

	s.json(t, http.MethodDelete, "/api/posts/"+created.ID, nil, author).AssertStatus(t, http.StatusOK)
	s.json(t, http.MethodGet, "/api/posts/"+created.ID, nil, author).AssertStatus(t, http.StatusNotFound)
}

func TestCreatePostRejectsBadUploads(t *testing.T) {
	s := newTestServer(t)
	author := testutil.CreateUser(t, s.mem.Stores(), models.RoleCitizen)

	tests := []struct {
		name   string
		fields map[string]string
		files  []file
	}{
		{"unsupported type", reportFields(), []file{{"run.exe", "application/octet-stream", "MZ"}}},
		{"too many files", reportFields(), []file{
			{"1.png", "image/png", "x"}, {"2.png", "image/png", "x"}, {"3.png", "image/png", "x"},
			{"4.png", "image/png", "x"}, {"5.png", "image/png", "x"}, {"6.png", "image/png", "x"},
		}},
		{"missing title", map[string]string{"description": "d", "location": "l", "incidentDate": "2024-01-01"}, nil},
		{"bad date", map[string]string{"title": "t", "description": "d", "location": "l", "incidentDate": "soon"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, http.MethodPost, "/api/posts", tt.fields, tt.files)
			s.auth.AddAuthHeader(t, req, author)
			rr := s.do(t, req)
			rr.AssertStatus(t, http.StatusBadRequest)
			if env := rr.Envelope(t, nil); env.Success || env.Message == "" {
				t.Errorf("expected error message, got %s", rr.Body.String())
			}
		})
	}

	req := multipartRequest(t, http.MethodPost, "/api/posts", reportFields(), nil)
	s.do(t, req).AssertStatus(t, http.StatusUnauthorized)
}

func TestListFilterValidation(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.mem.Stores(), models.RoleAdmin)

	for _, url := range []string{
		"/api/posts?mediaType=audio",
		"/api/posts?startDate=yesterday",
		"/api/posts?startDate=2024-02-01&endDate=2024-01-01",
	} {
		s.json(t, http.MethodGet, url, nil, nil).AssertStatus(t, http.StatusBadRequest)
	}
	s.json(t, http.MethodGet, "/api/admin/posts?status=archived", nil, admin).AssertStatus(t, http.StatusBadRequest)
}

func TestPageBeyondEndIsEmpty(t *testing.T) {
	s := newTestServer(t)
	stores := s.mem.Stores()
	admin := testutil.CreateUser(t, stores, models.RoleAdmin)
	testutil.CreatePost(t, stores, admin.ID, testutil.WithStatus(models.StatusApproved, admin.ID))

	for _, page := range []string{"2", "9223372036854775807"} {
		rr := s.json(t, http.MethodGet, "/api/posts?limit=100&page="+page, nil, nil)
		rr.AssertStatus(t, http.StatusOK)
		env := rr.Envelope(t, nil)
		if string(env.Data) != "[]" || env.Pagination == nil || env.Pagination.Total != 1 {
			t.Errorf("page=%s: expected empty data with total 1, got %s", page, rr.Body.String())
		}
	}
}

func TestAdminListShowsAuthorContact(t *testing.T) {
	s := newTestServer(t)
	stores := s.mem.Stores()
	admin := testutil.CreateUser(t, stores, models.RoleAdmin)
	author := testutil.CreateUser(t, stores, models.RoleCitizen)
	testutil.CreatePost(t, stores, author.ID, testutil.WithStatus(models.StatusApproved, admin.ID))

	rr := s.json(t, http.MethodGet, "/api/admin/posts", nil, admin)
	rr.AssertStatus(t, http.StatusOK)
	var posts []visibility.ReportView
	rr.Envelope(t, &posts)
	if len(posts) != 1 || posts[0].Author == nil || posts[0].Author.Email == nil || *posts[0].Author.Email != *author.Email {
		t.Fatalf("admin listing should carry the author's email, got %s", rr.Body.String())
	}

	rr = s.json(t, http.MethodGet, "/api/posts", nil, nil)
	rr.AssertStatus(t, http.StatusOK)
	if strings.Contains(rr.Body.String(), *author.Email) {
		t.Error("public listing leaked the author's email")
	}
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	stores := s.mem.Stores()
	admin := testutil.CreateUser(t, stores, models.RoleAdmin)
	author := testutil.CreateUser(t, stores, models.RoleCitizen)
	reader := testutil.CreateUser(t, stores, models.RoleCitizen)

	pending := testutil.CreatePost(t, stores, author.ID)
	approved := testutil.CreatePost(t, stores, author.ID, testutil.WithStatus(models.StatusApproved, admin.ID))

	s.json(t, http.MethodPost, "/api/comments/"+pending.ID, map[string]any{"content": "hi"}, reader).
		AssertStatus(t, http.StatusNotFound)
	s.json(t, http.MethodPost, "/api/comments/"+approved.ID, map[string]any{"content": "hi"}, nil).
		AssertStatus(t, http.StatusUnauthorized)
	s.json(t, http.MethodPost, "/api/comments/"+approved.ID, map[string]any{"content": strings.Repeat("x", 1001)}, reader).
		AssertStatus(t, http.StatusBadRequest)

	rr := s.json(t, http.MethodPost, "/api/comments/"+approved.ID, map[string]any{"content": "same here", "isAnonymous": true}, reader)
	rr.AssertStatus(t, http.StatusCreated)
	var comment visibility.CommentView
	rr.Envelope(t, &comment)
	if comment.Author != nil {
		t.Error("anonymous comment leaked its author")
	}

	rr = s.json(t, http.MethodGet, "/api/comments/"+approved.ID, nil, nil)
	rr.AssertStatus(t, http.StatusOK)
	if env := rr.Envelope(t, nil); env.Pagination == nil || env.Pagination.Total != 1 {
		t.Errorf("unexpected comment list: %s", rr.Body.String())
	}

	s.json(t, http.MethodDelete, "/api/comments/"+comment.ID, nil, author).AssertStatus(t, http.StatusForbidden)
	s.json(t, http.MethodDelete, "/api/comments/"+comment.ID, nil, reader).AssertStatus(t, http.StatusOK)
	s.json(t, http.MethodDelete, "/api/comments/"+comment.ID, nil, reader).AssertStatus(t, http.StatusNotFound)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateUser(t, s.mem.Stores(), models.RoleCitizen)

	s.json(t, http.MethodPut, "/api/users/me/name", map[string]string{"name": "New", "email": "x@y.com"}, user).
		AssertStatus(t, http.StatusBadRequest)

	rr := s.json(t, http.MethodPut, "/api/users/me/name", map[string]string{"name": "New Name"}, user)
	rr.AssertStatus(t, http.StatusOK)
	var updated models.User
	rr.Envelope(t, &updated)
	if updated.Name != "New Name" {
		t.Errorf("name not updated: %+v", updated)
	}

	rr = s.json(t, http.MethodGet, "/api/users/me/stats", nil, user)
	rr.AssertStatus(t, http.StatusOK)
	var stats models.StatusCounts
	rr.Envelope(t, &stats)
	if stats.Total != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	stores := s.mem.Stores()
	admin := testutil.CreateUser(t, stores, models.RoleAdmin)
	citizen := testutil.CreateUser(t, stores, models.RoleCitizen)
	testutil.CreatePost(t, stores, citizen.ID)

	for _, url := range []string{"/api/admin/stats", "/api/admin/users", "/api/admin/posts/pending", "/api/admin/audit-logs"} {
		s.json(t, http.MethodGet, url, nil, nil).AssertStatus(t, http.StatusUnauthorized)
		s.json(t, http.MethodGet, url, nil, citizen).AssertStatus(t, http.StatusForbidden)
		s.json(t, http.MethodGet, url, nil, admin).AssertStatus(t, http.StatusOK)
	}

	rr := s.json(t, http.MethodGet, "/api/admin/stats", nil, admin)
	var stats models.AdminStats
	rr.Envelope(t, &stats)
	if stats.TotalUsers != 1 || stats.PendingPosts != 1 {
		t.Errorf("unexpected admin stats: %+v", stats)
	}

	s.json(t, http.MethodPut, "/api/admin/users/"+admin.ID+"/toggle", nil, admin).AssertStatus(t, http.StatusForbidden)
	s.json(t, http.MethodPut, "/api/admin/users/missing/toggle", nil, admin).AssertStatus(t, http.StatusNotFound)

	rr = s.json(t, http.MethodPut, "/api/admin/users/"+citizen.ID+"/toggle", nil, admin)
	rr.AssertStatus(t, http.StatusOK)
	if env := rr.Envelope(t, nil); env.Message != "User deactivated" {
		t.Errorf("unexpected message %q", env.Message)
	}

	// a deactivated account is locked out of authenticated routes
	s.json(t, http.MethodGet, "/api/users/me/stats", nil, citizen).AssertStatus(t, http.StatusForbidden)

	rr = s.json(t, http.MethodGet, "/api/admin/audit-logs?action="+service.ActionUserToggled, nil, admin)
	rr.AssertStatus(t, http.StatusOK)
	var logs []models.AuditLog
	rr.Envelope(t, &logs)
	if len(logs) != 1 || logs[0].ResourceID != citizen.ID {
		t.Errorf("unexpected audit logs: %+v", logs)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rr := s.json(t, http.MethodGet, "/api/nothing-here", nil, nil)
	rr.AssertStatus(t, http.StatusNotFound)
	if env := rr.Envelope(t, nil); env.Success {
		t.Error("expected failure envelope")
	}
}

func TestEnvelopeNormalisesNilSlices(t *testing.T) {
	s := newTestServer(t)
	stores := s.mem.Stores()
	admin := testutil.CreateUser(t, stores, models.RoleAdmin)
	p := testutil.NewPost(admin.ID, testutil.WithStatus(models.StatusApproved, admin.ID))
	p.Tags, p.Media = nil, nil
	if err := stores.Posts.Create(t.Context(), p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rr := s.json(t, http.MethodGet, "/api/posts/"+p.ID, nil, nil)
	rr.AssertStatus(t, http.StatusOK)
	var raw map[string]json.RawMessage
	rr.Envelope(t, &raw)
	if string(raw["tags"]) != "[]" || string(raw["media"]) != "[]" {
		t.Errorf("expected empty arrays, got tags=%s media=%s", raw["tags"], raw["media"])
	}
}
