package query

import (
	"errors"
	"math"
	"net/url"
	"testing"
	"time"

	"chandabaz/internal/models"
)

func TestParsePageClamps(t *testing.T) {
	tests := []struct {
		query string
		page  int
		limit int
	}{
		{"", 1, 12},
		{"page=3&limit=5", 3, 5},
		{"page=0&limit=0", 1, 1},
		{"page=-2&limit=-7", 1, 1},
		{"page=abc&limit=xyz", 1, 12},
		{"limit=1000", 1, MaxLimit},
		{"page=9223372036854775807&limit=100", MaxPage, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			p := ParsePage(values, DefaultPublicLimit)
			if p.Page != tt.page || p.Limit != tt.limit {
				t.Errorf("got page=%d limit=%d, want page=%d limit=%d", p.Page, p.Limit, tt.page, tt.limit)
			}
		})
	}
}

func TestOffsetNeverNegative(t *testing.T) {
	values := url.Values{"page": {"9223372036854775807"}, "limit": {"100"}}
	p := ParsePage(values, DefaultPublicLimit)
	if off := p.Offset(); off < 0 {
		t.Fatalf("Offset() = %d for page=%d limit=%d", off, p.Page, p.Limit)
	}

	huge := Page{Page: math.MaxInt, Limit: MaxLimit}
	if off := huge.Offset(); off != math.MaxInt {
		t.Errorf("Offset() = %d, want saturation at %d", off, math.MaxInt)
	}
	if off := (Page{Page: 0, Limit: 10}).Offset(); off != 0 {
		t.Errorf("Offset() = %d for page 0, want 0", off)
	}
}

func TestParseFilter(t *testing.T) {
	values := url.Values{
		"search":    {"  land registry  "},
		"location":  {"Dhaka"},
		"mediaType": {"VIDEO"},
		"startDate": {"2024-01-01"},
		"endDate":   {"2024-01-31"},
		"page":      {"2"},
		"limit":     {"10"},
	}

	f, err := ParseFilter(values, DefaultPublicLimit)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if f.Search != "land registry" {
		t.Errorf("search not trimmed: %q", f.Search)
	}
	if f.MediaType == nil || *f.MediaType != models.MediaVideo {
		t.Errorf("expected video media type, got %v", f.MediaType)
	}
	if !f.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", f.StartDate)
	}
	incident := time.Date(2024, 1, 31, 18, 30, 0, 0, time.UTC)
	if f.EndDate.Before(incident) {
		t.Errorf("date-only end date must include the whole day, got %v", f.EndDate)
	}
	if f.Offset() != 10 {
		t.Errorf("expected offset 10, got %d", f.Offset())
	}
	if !f.HasSearch() {
		t.Error("expected HasSearch")
	}
}

func TestParseFilterRejects(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"unknown media type", "mediaType=audio", "mediaType"},
		{"bad start date", "startDate=yesterday", "startDate"},
		{"bad end date", "endDate=2024-13-01", "endDate"},
		{"inverted range", "startDate=2024-02-01&endDate=2024-01-01", "startDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			_, err := ParseFilter(values, DefaultPublicLimit)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestParseFilterSameDayRange(t *testing.T) {
	values := url.Values{"startDate": {"2024-01-01"}, "endDate": {"2024-01-01"}}
	f, err := ParseFilter(values, DefaultPublicLimit)
	if err != nil {
		t.Fatalf("same-day range should be valid: %v", err)
	}
	if f.StartDate.After(*f.EndDate) {
		t.Error("start after end")
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(""); err != nil || st != nil {
		t.Errorf("empty status should mean no constraint, got %v, %v", st, err)
	}
	if st, err := ParseStatus("Rejected"); err != nil || *st != models.StatusRejected {
		t.Errorf("expected rejected, got %v, %v", st, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		pages int
	}{
		{0, 12, 0},
		{1, 12, 1},
		{12, 12, 1},
		{13, 12, 2},
		{100, 7, 15},
	}

	for _, tt := range tests {
		p := NewPagination(tt.total, Page{Page: 1, Limit: tt.limit})
		if p.Pages != tt.pages {
			t.Errorf("total=%d limit=%d: pages=%d, want %d", tt.total, tt.limit, p.Pages, tt.pages)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("unexpected escape: %q", got)
	}
}
