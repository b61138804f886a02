// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultLimit is used when the request carries no usable "limit".
	DefaultLimit = 20
	// MaxLimit caps client-supplied limits.
	MaxLimit = 100
)

// Page is a 1-based offset page.
type Page struct {
	Number int
	Limit  int
}

// Parse reads "page" and "limit" query parameters, falling back to page 1
// and DefaultLimit on missing or invalid values.
func Parse(r *http.Request) Page {
	return Page{
		Number: positive(query.Get(r, "page"), 1),
		Limit:  clamp(positive(query.Get(r, "limit"), DefaultLimit), MaxLimit),
	}
}

func positive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func clamp(n, max int) int {
	if n > max {
		return max
	}
	return n
}

// Skip is the number of documents before this page.
func (p Page) Skip() int64 {
	if p.Number < 1 {
		return 0
	}
	return int64((p.Number - 1) * p.Limit)
}

// ApplyToFind sets skip and limit on find.
func (p Page) ApplyToFind(find *options.FindOptions) *options.FindOptions {
	return find.SetSkip(p.Skip()).SetLimit(int64(p.Limit))
}

// Meta is the pagination block returned alongside list results.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// MetaFor computes Meta for total matching documents.
func (p Page) MetaFor(total int64) Meta {
	var pages int64
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Meta{Page: p.Number, Limit: p.Limit, Total: total, TotalPages: pages}
}
