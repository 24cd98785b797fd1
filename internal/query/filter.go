// Package query turns request parameters into validated list filters.
package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chandabaz/internal/models"
)

// Default and maximum page sizes
const (
	DefaultPublicLimit   = 12
	DefaultMyPostsLimit  = 10
	DefaultAdminLimit    = 20
	DefaultCommentsLimit = 20
	DefaultUsersLimit    = 20
	DefaultAuditLimit    = 50
	MaxLimit             = 100
	MaxSearchLength      = 200
	// MaxPage keeps (page-1)*limit inside int for any allowed limit
	MaxPage = math.MaxInt / MaxLimit
)

// ValidationError marks a rejected filter parameter
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Page is an offset window
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip, saturating instead of overflowing
func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Filter is the closed set of options accepted by post listings
type Filter struct {
	Search    string
	Location  string
	MediaType *models.MediaType
	StartDate *time.Time
	EndDate   *time.Time
	Page
}

// HasSearch reports whether relevance ranking applies
func (f Filter) HasSearch() bool {
	return f.Search != ""
}

// Scope narrows a listing to a status or an author.
// Nil fields do not constrain.
type Scope struct {
	Status   *models.Status
	AuthorID string
}

// PublicScope restricts a listing to approved posts
func PublicScope() Scope {
	st := models.StatusApproved
	return Scope{Status: &st}
}

// ParsePage reads page and limit, clamping both instead of failing
func ParsePage(values url.Values, defaultLimit int) Page {
	p := Page{Page: 1, Limit: defaultLimit}

	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && v > 0 {
		p.Page = min(v, MaxPage)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("limit"))); err == nil {
		p.Limit = v
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// ParseFilter validates the public listing parameters
func ParseFilter(values url.Values, defaultLimit int) (Filter, error) {
	f := Filter{
		Search:   strings.TrimSpace(values.Get("search")),
		Location: strings.TrimSpace(values.Get("location")),
		Page:     ParsePage(values, defaultLimit),
	}

	if len(f.Search) > MaxSearchLength {
		return Filter{}, &ValidationError{Field: "search", Message: fmt.Sprintf("must be at most %d characters", MaxSearchLength)}
	}
	if len(f.Location) > models.MaxLocationLength {
		return Filter{}, &ValidationError{Field: "location", Message: fmt.Sprintf("must be at most %d characters", models.MaxLocationLength)}
	}

	if raw := strings.TrimSpace(values.Get("mediaType")); raw != "" {
		mt := models.MediaType(strings.ToLower(raw))
		if !mt.Valid() {
			return Filter{}, &ValidationError{Field: "mediaType", Message: fmt.Sprintf("unknown media type %q, allowed: image, video, pdf", raw)}
		}
		f.MediaType = &mt
	}

	if raw := strings.TrimSpace(values.Get("startDate")); raw != "" {
		t, _, err := ParseDate(raw)
		if err != nil {
			return Filter{}, &ValidationError{Field: "startDate", Message: err.Error()}
		}
		f.StartDate = &t
	}

	if raw := strings.TrimSpace(values.Get("endDate")); raw != "" {
		t, dateOnly, err := ParseDate(raw)
		if err != nil {
			return Filter{}, &ValidationError{Field: "endDate", Message: err.Error()}
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.EndDate = &t
	}

	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return Filter{}, &ValidationError{Field: "startDate", Message: "must not be after endDate"}
	}

	return f, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and reports whether the value was
// a bare date. Bare dates are midnight UTC.
func ParseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", raw)
}

// ParseStatus reads an optional status filter. Empty means no constraint.
func ParseStatus(raw string) (*models.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	st := models.Status(strings.ToLower(raw))
	if !st.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q, allowed: pending, approved, rejected", raw)}
	}
	return &st, nil
}

// Pagination is the list metadata returned to clients
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Limit int   `json:"limit"`
}

// NewPagination computes the page count as ceil(total/limit)
func NewPagination(total int64, p Page) Pagination {
	limit := p.Limit
	if limit < 1 {
		limit = 1
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Total: total, Page: p.Page, Pages: pages, Limit: limit}
}

// EscapeLike escapes LIKE wildcards so user input matches literally
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
