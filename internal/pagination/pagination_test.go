package pagination

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberdesk/backend/internal/domain"
)

var testListing = Listing{
	Name:            "members",
	SortProperties:  []string{"id", "lastname", "membership_number"},
	DefaultSort:     Sorting{Property: "lastname", Direction: SortAscending},
	PageSizes:       []int{10, 20, 50},
	DefaultPageSize: 20,
}

func TestNewPaginationClampsPageNumber(t *testing.T) {
	cases := []struct {
		name      string
		number    int
		items     int
		pageCount int
		expected  int
	}{
		{name: "first page", number: 1, items: 45, pageCount: 3, expected: 1},
		{name: "last page", number: 3, items: 45, pageCount: 3, expected: 3},
		{name: "beyond last page", number: 9, items: 45, pageCount: 3, expected: 3},
		{name: "empty listing", number: 4, items: 0, pageCount: 1, expected: 1},
		{name: "non positive number", number: 0, items: 5, pageCount: 1, expected: 1},
		{name: "exact multiple", number: 2, items: 40, pageCount: 2, expected: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pagination := NewPagination(PageRequest{Page: Page{Number: tc.number, Size: 20}}, tc.items)
			assert.Equal(t, tc.pageCount, pagination.PageCount)
			assert.Equal(t, tc.expected, pagination.Request.Page.Number)
		})
	}
}

func TestPageOffsetAndListOptions(t *testing.T) {
	request := PageRequest{Page: Page{Number: 3, Size: 10}, Sorting: Sorting{Property: "lastname", Direction: SortDescending}}
	assert.Equal(t, domain.ListOptions{Offset: 20, Limit: 10, SortBy: "lastname", Descending: true}, request.ListOptions())
	assert.Equal(t, 0, Page{Number: 0, Size: 10}.Offset())
}

func TestResolvePrefersFirstValidValuePerParameter(t *testing.T) {
	query := NewQueryReader(url.Values{
		ParamPageNumber:   {"x"},
		ParamPageSize:     {"50"},
		ParamSortProperty: {"password"},
	})
	cookie := DefaultReader{
		ParamPageNumber:    "4",
		ParamPageSize:      "20",
		ParamSortProperty:  "MEMBERSHIP_NUMBER",
		ParamSortDirection: "sideways",
	}

	request := testListing.Resolve(query, cookie)

	assert.Equal(t, 4, request.Page.Number, "invalid query page number falls through to cookie")
	assert.Equal(t, 50, request.Page.Size, "valid query page size wins over cookie")
	assert.Equal(t, "membership_number", request.Sorting.Property, "sort property is canonicalized")
	assert.Equal(t, SortAscending, request.Sorting.Direction, "invalid direction falls back to default")
}

func TestResolveDefaults(t *testing.T) {
	request := testListing.Resolve()
	assert.Equal(t, PageRequest{Page: Page{Number: 1, Size: 20}, Sorting: Sorting{Property: "lastname", Direction: SortAscending}}, request)

	bare := Listing{Name: "bare"}.Resolve()
	assert.Equal(t, 20, bare.Page.Size)
	assert.Equal(t, "", bare.Sorting.Property)
}

func TestResolveRequestReadsCookie(t *testing.T) {
	remembered := PageRequest{Page: Page{Number: 2, Size: 10}, Sorting: Sorting{Property: "id", Direction: SortDescending}}
	cookie := testListing.Cookie(remembered, "/api/members")

	req := httptest.NewRequest(http.MethodGet, "/api/members?sort-direction=asc", http.NoBody)
	req.AddCookie(cookie)

	request := testListing.ResolveRequest(req)
	assert.Equal(t, 2, request.Page.Number)
	assert.Equal(t, 10, request.Page.Size)
	assert.Equal(t, "id", request.Sorting.Property)
	assert.Equal(t, SortAscending, request.Sorting.Direction)

	assert.Equal(t, "listing-members", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/api/members", cookie.Path)
}

func TestCookieReaderIgnoresGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "listing-members", Value: "%zz"})

	_, ok := NewCookieReader(req, "listing-members").Read(ParamPageNumber)
	assert.False(t, ok)
	_, ok = NewCookieReader(req, "listing-other").Read(ParamPageNumber)
	assert.False(t, ok)
}

func TestValidators(t *testing.T) {
	value, ok := PositiveInt().Validate(" 07 ")
	assert.True(t, ok)
	assert.Equal(t, "7", value)
	_, ok = PositiveInt().Validate("-1")
	assert.False(t, ok)

	_, ok = IntIn(10, 20).Validate("30")
	assert.False(t, ok)

	value, ok = SortDirection().Validate("DESC")
	assert.True(t, ok)
	assert.Equal(t, SortDescending, value)
}

func TestURLBuilder(t *testing.T) {
	base, err := url.Parse("https://example.com/api/members?search=ada&page-number=9")
	require.NoError(t, err)
	builder := NewURLBuilder(base)

	pagination := NewPagination(PageRequest{Page: Page{Number: 2, Size: 10}, Sorting: Sorting{Property: "lastname", Direction: SortAscending}}, 35)
	links := builder.Links(pagination)

	assertQuery(t, links.Self, map[string]string{"search": "ada", ParamPageNumber: "2", ParamPageSize: "10"})
	assertQuery(t, links.First, map[string]string{ParamPageNumber: "1"})
	assertQuery(t, links.Previous, map[string]string{ParamPageNumber: "1"})
	assertQuery(t, links.Next, map[string]string{ParamPageNumber: "3"})
	assertQuery(t, links.Last, map[string]string{ParamPageNumber: "4"})

	firstPage := builder.Links(NewPagination(PageRequest{Page: Page{Number: 1, Size: 50}}, 35))
	assert.Empty(t, firstPage.Previous)
	assert.Empty(t, firstPage.Next)

	toggled := builder.Sort(pagination.Request, "lastname")
	assertQuery(t, toggled, map[string]string{ParamSortProperty: "lastname", ParamSortDirection: SortDescending, ParamPageNumber: "1"})
	other := builder.Sort(pagination.Request, "id")
	assertQuery(t, other, map[string]string{ParamSortProperty: "id", ParamSortDirection: SortAscending})
	resized := builder.PageSize(pagination.Request, 50)
	assertQuery(t, resized, map[string]string{ParamPageSize: "50", ParamPageNumber: "1"})
}

func TestPageNumbers(t *testing.T) {
	pagination := NewPagination(PageRequest{Page: Page{Number: 5, Size: 10}}, 100)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, PageNumbers(pagination, 2))
	assert.Equal(t, []int{1}, PageNumbers(NewPagination(PageRequest{Page: Page{Number: 1, Size: 10}}, 0), 3))
}

func TestFetchReloadsLastPageWhenRequestIsBeyond(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var calls []domain.ListOptions
	fetch := func(options domain.ListOptions) ([]int, int, error) {
		calls = append(calls, options)
		end := options.Offset + options.Limit
		if options.Offset >= len(items) {
			return nil, len(items), nil
		}
		if end > len(items) {
			end = len(items)
		}
		return items[options.Offset:end], len(items), nil
	}

	paged, err := Fetch(PageRequest{Page: Page{Number: 7, Size: 2}}, fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, paged.Items)
	assert.Equal(t, 3, paged.Pagination.Request.Page.Number)
	require.Len(t, calls, 2)
	assert.Equal(t, 4, calls[1].Offset)

	empty, err := Fetch(PageRequest{Page: Page{Number: 1, Size: 2}}, func(domain.ListOptions) ([]int, int, error) {
		return nil, 0, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)

	expected := errors.New("db down")
	_, err = Fetch(PageRequest{Page: Page{Number: 1, Size: 2}}, func(domain.ListOptions) ([]int, int, error) {
		return nil, 0, expected
	})
	require.ErrorIs(t, err, expected)
}

func assertQuery(t *testing.T, rawURL string, expected map[string]string) {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	query := parsed.Query()
	for name, value := range expected {
		assert.Equal(t, value, query.Get(name), "query parameter %s in %s", name, rawURL)
	}
}
