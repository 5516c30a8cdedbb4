// Package pagination resolves, validates and renders paged and sorted
// listings.
//
// A listing reads its page number, page size, sort property and sort
// direction from a chain of readers (request query, remembered cookie,
// defaults). Each parameter is validated on its own, so a broken cookie value
// does not discard a valid query value for another parameter.
package pagination

import (
	"memberdesk/backend/internal/domain"
)

const (
	ParamPageNumber    = "page-number"
	ParamPageSize      = "page-size"
	ParamSortProperty  = "sort-property"
	ParamSortDirection = "sort-direction"
)

const (
	SortAscending  = "asc"
	SortDescending = "desc"
)

type Page struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type Sorting struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

func (s Sorting) Descending() bool {
	return s.Direction == SortDescending
}

// Inverted flips the sort direction.
func (s Sorting) Inverted() Sorting {
	if s.Descending() {
		s.Direction = SortAscending
	} else {
		s.Direction = SortDescending
	}
	return s
}

type PageRequest struct {
	Page    Page    `json:"page"`
	Sorting Sorting `json:"sorting"`
}

func (r PageRequest) ListOptions() domain.ListOptions {
	return domain.ListOptions{
		Offset:     r.Page.Offset(),
		Limit:      r.Page.Size,
		SortBy:     r.Sorting.Property,
		Descending: r.Sorting.Descending(),
	}
}

// Pagination describes a resolved request against a known item count.
type Pagination struct {
	Request   PageRequest `json:"request"`
	ItemCount int         `json:"item_count"`
	PageCount int         `json:"page_count"`
}

// NewPagination computes the page count (at least one) and clamps the
// requested page number into [1, PageCount].
func NewPagination(request PageRequest, itemCount int) Pagination {
	if request.Page.Size < 1 {
		request.Page.Size = 1
	}
	if itemCount < 0 {
		itemCount = 0
	}
	pageCount := (itemCount + request.Page.Size - 1) / request.Page.Size
	if pageCount < 1 {
		pageCount = 1
	}
	if request.Page.Number < 1 {
		request.Page.Number = 1
	}
	if request.Page.Number > pageCount {
		request.Page.Number = pageCount
	}
	return Pagination{Request: request, ItemCount: itemCount, PageCount: pageCount}
}

func (p Pagination) HasPrevious() bool {
	return p.Request.Page.Number > 1
}

func (p Pagination) HasNext() bool {
	return p.Request.Page.Number < p.PageCount
}

type Paged[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// FetchFunc loads one page of items and the total number of items.
type FetchFunc[T any] func(options domain.ListOptions) ([]T, int, error)

// Fetch loads the requested page. When the request points past the last page
// the last page is loaded instead.
func Fetch[T any](request PageRequest, fetch FetchFunc[T]) (Paged[T], error) {
	items, total, err := fetch(request.ListOptions())
	if err != nil {
		return Paged[T]{}, err
	}

	pagination := NewPagination(request, total)
	if pagination.Request.Page.Number != request.Page.Number && total > 0 {
		items, total, err = fetch(pagination.Request.ListOptions())
		if err != nil {
			return Paged[T]{}, err
		}
		pagination = NewPagination(pagination.Request, total)
	}
	if items == nil {
		items = []T{}
	}

	return Paged[T]{Items: items, Pagination: pagination}, nil
}
