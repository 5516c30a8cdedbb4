package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/pagination"
)

type corsPolicy struct {
	allowAnyOrigin bool
	allowedOrigins map[string]struct{}
	allowHeaders   string
	allowMethods   string
}

func newCORSPolicy(config RuntimeConfig) corsPolicy {
	policy := corsPolicy{
		allowAnyOrigin: config.AllowAnyCORSOrigin,
		allowedOrigins: make(map[string]struct{}, len(config.CORSAllowedOrigins)),
		allowHeaders:   "Content-Type, Authorization, X-User-ID, X-Role",
		allowMethods:   "GET, POST, PUT, DELETE, OPTIONS",
	}
	for _, origin := range config.CORSAllowedOrigins {
		policy.allowedOrigins[origin] = struct{}{}
	}
	return policy
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}

// requestSegments splits the escaped path so an encoded slash stays inside
// its segment, then decodes each segment.
func requestSegments(r *http.Request) []string {
	segments := splitPath(r.URL.EscapedPath())
	for idx, segment := range segments {
		if decoded, err := url.PathUnescape(segment); err == nil {
			segments[idx] = decoded
		}
	}
	return segments
}

func parseResourceID(segments []string) (string, bool) {
	if len(segments) < 3 {
		return "", false
	}
	return segments[2], true
}

func parseSubresource(segments []string) (string, bool) {
	if len(segments) < 4 {
		return "", false
	}
	return segments[3], true
}

func parseInt64(raw string) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 1 {
		return 0, false
	}
	return value, true
}

func parseYear(raw string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}

func isCollectionRoute(segments []string, resource string) bool {
	return len(segments) == 2 && segments[1] == resource
}

func isItemRoute(segments []string, resource string) bool {
	return len(segments) >= 3 && segments[1] == resource
}

func isExactRoute(segments []string, parts ...string) bool {
	if len(segments) != len(parts) {
		return false
	}
	for idx, part := range parts {
		if segments[idx] != part {
			return false
		}
	}
	return true
}

func isSubresourceRoute(segments []string, subresource string) bool {
	value, ok := parseSubresource(segments)
	return ok && value == subresource
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		recordError(w, fmt.Errorf("write %T response: %w", body, err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDecodeError(w http.ResponseWriter, err error) {
	message := "invalid JSON"
	if strings.Contains(err.Error(), "request body too large") {
		message = fmt.Sprintf("request body too large (max %d bytes)", maxJSONBodyBytes)
	}
	writeError(w, http.StatusBadRequest, message)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var fields domain.FieldErrors
	switch {
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		recordError(w, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage drops the bare sentinel text from joined errors and joins
// the remaining details.
func validationMessage(err error) string {
	sentinel := domain.ErrValidation.Error()
	var details []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, ": "+sentinel))
		if line == "" || line == sentinel {
			continue
		}
		details = append(details, line)
	}
	if len(details) == 0 {
		return sentinel
	}
	return strings.Join(details, "; ")
}

func writeDocument(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writePDF(w http.ResponseWriter, filename string, body []byte) {
	writeDocument(w, "application/pdf", filename, body)
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type listingResponse[T any] struct {
	Items      []T                   `json:"items"`
	Pagination pagination.Pagination `json:"pagination"`
	Links      pagination.Links      `json:"links"`
}

// writeListing remembers the resolved request in the listing cookie and
// renders the page with navigation links.
func writeListing[T any](w http.ResponseWriter, r *http.Request, listing pagination.Listing, paged pagination.Paged[T]) {
	http.SetCookie(w, listing.Cookie(paged.Pagination.Request, r.URL.Path))
	builder := pagination.NewURLBuilder(r.URL)
	writeJSON(w, http.StatusOK, listingResponse[T]{
		Items:      paged.Items,
		Pagination: paged.Pagination,
		Links:      builder.Links(paged.Pagination),
	})
}

func setCORS(w http.ResponseWriter, r *http.Request, policy corsPolicy) {
	if policy.allowAnyOrigin {
		w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", policy.allowMethods)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		return
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return
	}
	if _, allowed := policy.allowedOrigins[origin]; !allowed {
		return
	}

	w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
	w.Header().Set("Access-Control-Allow-Methods", policy.allowMethods)
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
