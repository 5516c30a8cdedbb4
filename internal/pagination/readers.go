package pagination

import (
	"net/http"
	"net/url"
	"strings"
)

// Reader is one source of raw listing parameters.
type Reader interface {
	Read(name string) (string, bool)
}

type ReaderFunc func(name string) (string, bool)

func (f ReaderFunc) Read(name string) (string, bool) {
	return f(name)
}

// QueryReader reads parameters from URL query values.
type QueryReader struct {
	values url.Values
}

func NewQueryReader(values url.Values) QueryReader {
	return QueryReader{values: values}
}

func (q QueryReader) Read(name string) (string, bool) {
	if q.values == nil {
		return "", false
	}
	value := strings.TrimSpace(q.values.Get(name))
	return value, value != ""
}

// CookieReader reads parameters remembered in a listing cookie. The cookie
// value is a URL-encoded query string.
type CookieReader struct {
	values url.Values
}

func NewCookieReader(r *http.Request, cookieName string) CookieReader {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return CookieReader{}
	}
	values, err := url.ParseQuery(cookie.Value)
	if err != nil {
		return CookieReader{}
	}
	return CookieReader{values: values}
}

func (c CookieReader) Read(name string) (string, bool) {
	return QueryReader(c).Read(name)
}

// DefaultReader always answers with fixed values.
type DefaultReader map[string]string

func (d DefaultReader) Read(name string) (string, bool) {
	value, ok := d[name]
	return value, ok && value != ""
}
