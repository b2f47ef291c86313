package models

import "strings"

// SortField is a message list sort column
type SortField string

const (
	SortByDate    SortField = "date"
	SortByFrom    SortField = "from"
	SortBySubject SortField = "subject"
)

// SortOrder is a message list sort direction
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

const (
	// DefaultPageLimit is used when no limit is requested
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size
	MaxPageLimit = 100
)

// ListOptions enumerates the recognized message query parameters.
// Zero values are replaced with defaults by Normalize.
type ListOptions struct {
	Page      int
	Limit     int
	Search    string
	SortBy    SortField
	SortOrder SortOrder
}

// Normalize applies defaults and clamps out-of-range values
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageLimit
	}
	if o.Limit > MaxPageLimit {
		o.Limit = MaxPageLimit
	}

	switch o.SortBy {
	case SortByDate, SortByFrom, SortBySubject:
	default:
		o.SortBy = SortByDate
	}

	switch SortOrder(strings.ToUpper(string(o.SortOrder))) {
	case SortAsc:
		o.SortOrder = SortAsc
	default:
		o.SortOrder = SortDesc
	}
}

// Offset returns the row offset for the current page
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Pagination describes the position of a page within the full result set
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// MessageList is a single page of cached messages
type MessageList struct {
	Emails     []*MessageRecord `json:"emails"`
	Pagination Pagination       `json:"pagination"`
}

// NewPagination computes the pagination envelope for a result set
func NewPagination(opts ListOptions, total int64) Pagination {
	totalPages := int((total + int64(opts.Limit) - 1) / int64(opts.Limit))
	return Pagination{
		CurrentPage: opts.Page,
		TotalPages:  totalPages,
		TotalCount:  total,
		Limit:       opts.Limit,
		HasNextPage: opts.Page < totalPages,
		HasPrevPage: opts.Page > 1,
	}
}
