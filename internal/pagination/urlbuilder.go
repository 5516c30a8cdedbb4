package pagination

import "net/url"

type Links struct {
	Self     string `json:"self"`
	First    string `json:"first"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
	Last     string `json:"last"`
}

// URLBuilder renders listing URLs on top of a base URL, keeping every query
// parameter that is not a listing parameter.
type URLBuilder struct {
	base url.URL
}

func NewURLBuilder(base *url.URL) URLBuilder {
	if base == nil {
		return URLBuilder{}
	}
	copied := *base
	return URLBuilder{base: copied}
}

func (b URLBuilder) build(request PageRequest) string {
	target := b.base
	query := target.Query()
	for name, values := range Values(request) {
		query[name] = values
	}
	target.RawQuery = query.Encode()
	return target.String()
}

func (b URLBuilder) Page(request PageRequest, number int) string {
	request.Page.Number = number
	return b.build(request)
}

// Sort renders the URL for sorting by property. Sorting by the current
// property again inverts the direction; any change of order restarts at the
// first page.
func (b URLBuilder) Sort(request PageRequest, property string) string {
	if request.Sorting.Property == property {
		request.Sorting = request.Sorting.Inverted()
	} else {
		request.Sorting = Sorting{Property: property, Direction: SortAscending}
	}
	request.Page.Number = 1
	return b.build(request)
}

// PageSize switches the page size and restarts at the first page.
func (b URLBuilder) PageSize(request PageRequest, size int) string {
	request.Page.Size = size
	request.Page.Number = 1
	return b.build(request)
}

func (b URLBuilder) Links(pagination Pagination) Links {
	request := pagination.Request
	links := Links{
		Self:  b.Page(request, request.Page.Number),
		First: b.Page(request, 1),
		Last:  b.Page(request, pagination.PageCount),
	}
	if pagination.HasPrevious() {
		links.Previous = b.Page(request, request.Page.Number-1)
	}
	if pagination.HasNext() {
		links.Next = b.Page(request, request.Page.Number+1)
	}
	return links
}

// PageNumbers lists the page numbers around the current page, at most
// window on each side.
func PageNumbers(pagination Pagination, window int) []int {
	current := pagination.Request.Page.Number
	start := current - window
	if start < 1 {
		start = 1
	}
	end := current + window
	if end > pagination.PageCount {
		end = pagination.PageCount
	}
	numbers := make([]int, 0, end-start+1)
	for number := start; number <= end; number++ {
		numbers = append(numbers, number)
	}
	return numbers
}
