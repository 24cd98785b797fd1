package handlers

import (
	"net/http"

	"chandabaz/internal/middleware"
)

// Handlers groups every API handler
type Handlers struct {
	Auth     *AuthHandler
	Posts    *PostHandler
	Comments *CommentHandler
	Users    *UserHandler
	Admin    *AdminHandler
	Audit    *AuditHandler
}

// RegisterRoutes mounts the /api routes on mux
func RegisterRoutes(mux *http.ServeMux, h *Handlers, authMw *middleware.AuthMiddleware) {
	public := func(fn http.HandlerFunc) http.Handler { return fn }
	optional := func(fn http.HandlerFunc) http.Handler { return authMw.OptionalAuth(fn) }
	authed := func(fn http.HandlerFunc) http.Handler { return authMw.Authenticate(fn) }
	admin := func(fn http.HandlerFunc) http.Handler {
		return authMw.Authenticate(middleware.RequireAdmin(fn))
	}

	// Auth
	mux.Handle("POST /api/auth/register", public(h.Auth.Register))
	mux.Handle("POST /api/auth/login", public(h.Auth.Login))
	mux.Handle("GET /api/auth/me", authed(h.Auth.Me))

	// Posts
	mux.Handle("GET /api/posts", optional(h.Posts.ListPosts))
	mux.Handle("GET /api/posts/my", authed(h.Posts.MyPosts))
	mux.Handle("GET /api/posts/{id}", optional(h.Posts.GetPost))
	mux.Handle("POST /api/posts", authed(h.Posts.CreatePost))
	mux.Handle("PUT /api/posts/{id}/resubmit", authed(h.Posts.ResubmitPost))
	mux.Handle("DELETE /api/posts/{id}", authed(h.Posts.DeletePost))

	// Comments
	mux.Handle("GET /api/comments/{postId}", public(h.Comments.ListComments))
	mux.Handle("POST /api/comments/{postId}", authed(h.Comments.AddComment))
	mux.Handle("DELETE /api/comments/{id}", authed(h.Comments.DeleteComment))

	// Users
	mux.Handle("GET /api/users/me/stats", authed(h.Users.MyStats))
	mux.Handle("PUT /api/users/me/name", authed(h.Users.UpdateMyName))

	// Admin
	mux.Handle("GET /api/admin/stats", admin(h.Admin.Stats))
	mux.Handle("GET /api/admin/posts", admin(h.Admin.ListPosts))
	mux.Handle("GET /api/admin/posts/pending", admin(h.Admin.ListPending))
	mux.Handle("POST /api/admin/posts/{id}/approve", admin(h.Admin.ApprovePost))
	mux.Handle("PUT /api/admin/posts/{id}/approve", admin(h.Admin.ApprovePost))
	mux.Handle("PUT /api/admin/posts/{id}/reject", admin(h.Admin.RejectPost))
	mux.Handle("DELETE /api/admin/posts/{id}", admin(h.Admin.DeletePost))
	mux.Handle("GET /api/admin/users", admin(h.Admin.ListUsers))
	mux.Handle("PUT /api/admin/users/{id}/toggle", admin(h.Admin.ToggleUser))
	mux.Handle("GET /api/admin/audit-logs", admin(h.Audit.ListAuditLogs))

	mux.Handle("/api/", public(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Route not found")
	}))
}
