package query

import (
	"fmt"
	"net/url"
	"strings"

	"storefront-api/internal/domain"
)

// Defaults applied by Build.
const (
	DefaultPageSize = 20
	DefaultOrderBy  = "created_at"
	DefaultOrderDir = "desc"
)

// Filters narrows a catalog listing. Zero values mean "not applied".
// Price bounds are inclusive, in cents; nil means unbounded.
type Filters struct {
	Category      string
	Brand         string
	Condition     domain.Condition
	Search        string
	MinPriceCents *int64
	MaxPriceCents *int64
}

// Query is a fully resolved, bounded, ordered catalog request. Building it
// is pure: identical inputs always produce identical queries.
type Query struct {
	Filters    Filters
	Page       int
	PageSize   int
	OrderBy    string
	OrderDir   string
	RangeStart int
	RangeEnd   int
}

// Page describes where a listing sits relative to the full result count.
type Page struct {
	Total      int
	TotalPages int
	HasMore    bool
}

// Build normalizes paging arguments and computes the inclusive row range.
func Build(f Filters, page, pageSize int, orderBy, orderDir string) Query {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if orderBy == "" {
		orderBy = DefaultOrderBy
	}
	if orderDir != "asc" && orderDir != "desc" {
		orderDir = DefaultOrderDir
	}
	start := (page - 1) * pageSize
	return Query{
		Filters:    f,
		Page:       page,
		PageSize:   pageSize,
		OrderBy:    orderBy,
		OrderDir:   orderDir,
		RangeStart: start,
		RangeEnd:   start + pageSize - 1,
	}
}

// PageInfo derives pagination metadata from a total row count.
func PageInfo(total, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Page{
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

// Encode renders the query as PostgREST-style parameters so it can be
// forwarded to the hosted provider unchanged. Equality filters become
// eq.<value>, price bounds gte./lte. pairs on the same column, and free-text
// search an OR of ilike clauses over name and description.
func (q Query) Encode() url.Values {
	v := url.Values{}
	if q.Filters.Category != "" {
		v.Set("category", "eq."+q.Filters.Category)
	}
	if q.Filters.Brand != "" {
		v.Set("brand", "eq."+q.Filters.Brand)
	}
	if q.Filters.Condition != "" {
		v.Set("condition", "eq."+string(q.Filters.Condition))
	}
	if q.Filters.MinPriceCents != nil {
		v.Add("price_cents", fmt.Sprintf("gte.%d", *q.Filters.MinPriceCents))
	}
	if q.Filters.MaxPriceCents != nil {
		v.Add("price_cents", fmt.Sprintf("lte.%d", *q.Filters.MaxPriceCents))
	}
	if s := strings.TrimSpace(q.Filters.Search); s != "" {
		term := "*" + s + "*"
		v.Set("or", fmt.Sprintf("(name.ilike.%s,description.ilike.%s)", term, term))
	}
	v.Set("order", q.OrderBy+"."+q.OrderDir)
	v.Set("limit", fmt.Sprintf("%d", q.PageSize))
	v.Set("offset", fmt.Sprintf("%d", q.RangeStart))
	return v
}
