package pagination

import (
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const cookiePrefix = "listing-"

const cookieMaxAge = 30 * 24 * time.Hour

// Listing configures how one paged view resolves its parameters.
type Listing struct {
	Name            string
	SortProperties  []string
	DefaultSort     Sorting
	PageSizes       []int
	DefaultPageSize int
}

func (l Listing) validators() map[string]Validator {
	return map[string]Validator{
		ParamPageNumber:    PositiveInt(),
		ParamPageSize:      IntIn(l.pageSizes()...),
		ParamSortProperty:  OneOf(l.SortProperties...),
		ParamSortDirection: SortDirection(),
	}
}

func (l Listing) pageSizes() []int {
	if len(l.PageSizes) == 0 {
		return []int{l.defaultPageSize()}
	}
	return l.PageSizes
}

func (l Listing) defaultPageSize() int {
	if l.DefaultPageSize > 0 {
		return l.DefaultPageSize
	}
	if len(l.PageSizes) > 0 {
		return l.PageSizes[0]
	}
	return 20
}

func (l Listing) defaults() DefaultReader {
	direction := l.DefaultSort.Direction
	if direction == "" {
		direction = SortAscending
	}
	property := l.DefaultSort.Property
	if property == "" && len(l.SortProperties) > 0 {
		property = l.SortProperties[0]
	}
	return DefaultReader{
		ParamPageNumber:    "1",
		ParamPageSize:      strconv.Itoa(l.defaultPageSize()),
		ParamSortProperty:  property,
		ParamSortDirection: direction,
	}
}

// Resolve picks, for every parameter, the first value from readers that
// passes validation, falling back to the listing defaults.
func (l Listing) Resolve(readers ...Reader) PageRequest {
	validators := l.validators()
	chain := append(append([]Reader{}, readers...), l.defaults())

	resolved := map[string]string{}
	for name, validator := range validators {
		for _, reader := range chain {
			raw, ok := reader.Read(name)
			if !ok {
				continue
			}
			if normalized, valid := validator.Validate(raw); valid {
				resolved[name] = normalized
				break
			}
		}
	}

	number, _ := strconv.Atoi(resolved[ParamPageNumber])
	size, _ := strconv.Atoi(resolved[ParamPageSize])
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = l.defaultPageSize()
	}
	return PageRequest{
		Page:    Page{Number: number, Size: size},
		Sorting: Sorting{Property: resolved[ParamSortProperty], Direction: resolved[ParamSortDirection]},
	}
}

// ResolveRequest reads query parameters first, then the listing cookie.
func (l Listing) ResolveRequest(r *http.Request) PageRequest {
	return l.Resolve(NewQueryReader(r.URL.Query()), NewCookieReader(r, l.CookieName()))
}

func (l Listing) CookieName() string {
	return cookiePrefix + l.Name
}

// Cookie remembers request so the next visit without parameters lands on the
// same page and order.
func (l Listing) Cookie(request PageRequest, path string) *http.Cookie {
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     l.CookieName(),
		Value:    Values(request).Encode(),
		Path:     path,
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func Values(request PageRequest) url.Values {
	values := url.Values{}
	values.Set(ParamPageNumber, strconv.Itoa(request.Page.Number))
	values.Set(ParamPageSize, strconv.Itoa(request.Page.Size))
	if request.Sorting.Property != "" {
		values.Set(ParamSortProperty, request.Sorting.Property)
	}
	if request.Sorting.Direction != "" {
		values.Set(ParamSortDirection, request.Sorting.Direction)
	}
	return values
}
