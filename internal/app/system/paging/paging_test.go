package paging

import (
	"net/http/httptest"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "/contacts", 1, DefaultLimit},
		{"explicit", "/contacts?page=3&limit=5", 3, 5},
		{"invalid page", "/contacts?page=abc", 1, DefaultLimit},
		{"zero page", "/contacts?page=0", 1, DefaultLimit},
		{"negative limit", "/contacts?limit=-4", 1, DefaultLimit},
		{"limit capped", "/contacts?limit=5000", 1, MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(httptest.NewRequest("GET", tt.url, nil))
			if p.Number != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("Parse(%q) = %+v, want page=%d limit=%d", tt.url, p, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestSkip(t *testing.T) {
	tests := []struct {
		page Page
		want int64
	}{
		{Page{Number: 1, Limit: 20}, 0},
		{Page{Number: 2, Limit: 20}, 20},
		{Page{Number: 4, Limit: 10}, 30},
		{Page{Number: 0, Limit: 10}, 0},
	}
	for _, tt := range tests {
		if got := tt.page.Skip(); got != tt.want {
			t.Errorf("%+v.Skip() = %d, want %d", tt.page, got, tt.want)
		}
	}
}

func TestMetaFor(t *testing.T) {
	m := Page{Number: 2, Limit: 10}.MetaFor(21)
	if m.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", m.TotalPages)
	}
	if m.Total != 21 || m.Page != 2 || m.Limit != 10 {
		t.Errorf("unexpected meta %+v", m)
	}
	if got := (Page{Number: 1, Limit: 10}).MetaFor(0).TotalPages; got != 0 {
		t.Errorf("empty TotalPages = %d, want 0", got)
	}
}
