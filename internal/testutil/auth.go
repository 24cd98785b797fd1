package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chandabaz/internal/auth"
	"chandabaz/internal/config"
	"chandabaz/internal/models"
)

// JWTSecret signs every token issued by NewAuthService
const JWTSecret = "test-secret-key-for-testing-only"

// NewAuthService creates a token service with the test secret
func NewAuthService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(&config.JWTConfig{Secret: JWTSecret, Expiration: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}
	return svc
}

// AuthHelper provides bearer tokens for tests
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper(svc *auth.Service) *AuthHelper {
	return &AuthHelper{Service: svc}
}

// AddAuthHeader adds an authorization header for user to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, req *http.Request, user *models.User) {
	t.Helper()

	token, err := h.Service.GenerateToken(user.ID, user.Role)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
}

// NewJSONRequest builds a request with body encoded as JSON. A nil user sends
// no authorization header.
func (h *AuthHelper) NewJSONRequest(t *testing.T, method, url string, body any, user *models.User) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		h.AddAuthHeader(t, req, user)
	}
	return req
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// Envelope is the decoded response body
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *struct {
		Total int64 `json:"total"`
		Page  int   `json:"page"`
		Pages int   `json:"pages"`
		Limit int   `json:"limit"`
	} `json:"pagination"`
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// Envelope decodes the response body. data, when non-nil, receives the data field.
func (r *TestResponse) Envelope(t *testing.T, data any) Envelope {
	t.Helper()

	var env Envelope
	if err := json.Unmarshal(r.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", r.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("Failed to decode data %s: %v", env.Data, err)
		}
	}
	return env
}
