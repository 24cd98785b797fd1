// Package client is a Go client for the /api endpoints. Credentials are
// injected through a CredentialProvider so callers decide where tokens live.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/service"
	"chandabaz/internal/visibility"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// Client talks to one API server
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialProvider
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL (for example http://localhost:5000/api).
// creds may be nil for anonymous use.
func New(baseURL string, creds CredentialProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Pagination *query.Pagination `json:"pagination"`
}

// ListOptions filters the public report list
type ListOptions struct {
	Search    string
	Location  string
	MediaType models.MediaType
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("search", o.Search)
	set("location", o.Location)
	set("mediaType", string(o.MediaType))
	set("startDate", o.StartDate)
	set("endDate", o.EndDate)
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

// Register creates a citizen account
func (c *Client) Register(ctx context.Context, in service.RegisterInput) (*service.Session, error) {
	var session service.Session
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", in, &session); err != nil {
		return nil, err
	}
	c.store(session.Token)
	return &session, nil
}

// Login signs in and hands the token to the provider when it is a TokenSink
func (c *Client) Login(ctx context.Context, in service.LoginInput) (*service.Session, error) {
	var session service.Session
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", in, &session); err != nil {
		return nil, err
	}
	c.store(session.Token)
	return &session, nil
}

// Me returns the signed-in account
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListPosts lists approved reports
func (c *Client) ListPosts(ctx context.Context, opts ListOptions) ([]visibility.ReportView, query.Pagination, error) {
	path := "/posts"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	var posts []visibility.ReportView
	env, err := c.do(ctx, http.MethodGet, path, nil, &posts)
	if err != nil {
		return nil, query.Pagination{}, err
	}
	var pg query.Pagination
	if env.Pagination != nil {
		pg = *env.Pagination
	}
	return posts, pg, nil
}

// GetPost fetches one report as the current viewer may see it
func (c *Client) GetPost(ctx context.Context, id string) (*visibility.ReportView, error) {
	var post visibility.ReportView
	if _, err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// AddComment comments on an approved report
func (c *Client) AddComment(ctx context.Context, postID string, in service.AddCommentInput) (*visibility.CommentView, error) {
	var comment visibility.CommentView
	if _, err := c.do(ctx, http.MethodPost, "/comments/"+url.PathEscape(postID), in, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// Approve publishes a pending report (admin only)
func (c *Client) Approve(ctx context.Context, id string) (*visibility.ReportView, error) {
	var post visibility.ReportView
	if _, err := c.do(ctx, http.MethodPut, "/admin/posts/"+url.PathEscape(id)+"/approve", nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Reject hides a report with a reason (admin only)
func (c *Client) Reject(ctx context.Context, id, reason string) (*visibility.ReportView, error) {
	var post visibility.ReportView
	body := map[string]string{"reason": reason}
	if _, err := c.do(ctx, http.MethodPut, "/admin/posts/"+url.PathEscape(id)+"/reject", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) store(token string) {
	if sink, ok := c.creds.(TokenSink); ok && token != "" {
		sink.SetToken(token)
	}
}

// do sends one request and decodes the envelope; out receives the data field
func (c *Client) do(ctx context.Context, method, path string, body, out any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized && c.creds != nil {
		c.creds.Invalidate(ctx)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return &env, nil
}
