// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// --- Pagination ---

// ListQuery contains common list parameters.
type ListQuery struct {
	Search         string `form:"search"`
	IncludeDeleted bool   `form:"includeDeleted"`
	OrderBy        string `form:"orderBy"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset         int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a domain filter with defaults applied.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	f.IncludeDeleted = q.IncludeDeleted
	f.OrderBy = q.OrderBy
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain page into a response page.
func NewListResponse[S, T any](page domain.ListResult[S], mapFn func(S) T) ListResponse[T] {
	items := make([]T, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, mapFn(it))
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseID parses a UUID field of a request body.
func ParseID(field, raw string) (id.ID, error) {
	parsed, err := id.Parse(raw)
	if err != nil || id.IsNil(parsed) {
		return id.Nil(), apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return parsed, nil
}

func newInvalidEnum(field, value string) error {
	return apperror.NewValidation("unknown " + field).
		WithDetail("field", field).
		WithDetail("value", value)
}
