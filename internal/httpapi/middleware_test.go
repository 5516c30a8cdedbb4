package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/logging"
)

func TestLogRequestsLevels(t *testing.T) {
	logger, logs := logging.TestObserved(t, zapcore.DebugLevel)
	handler := logRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boom":
			writeError(w, http.StatusInternalServerError, "internal server error")
		case "/healthz":
			healthz(w, r)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	for _, path := range []string{"/boom", "/healthz", "/join"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	entries := logs.FilterMessage("request served").All()
	if len(entries) != 3 {
		t.Fatalf("expected three entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.ErrorLevel, zapcore.DebugLevel, zapcore.InfoLevel}
	for idx, entry := range entries {
		if entry.Level != want[idx] {
			t.Fatalf("entry %d: level %s, want %s", idx, entry.Level, want[idx])
		}
	}
	fields := entries[2].ContextMap()
	if fields["status"] != int64(http.StatusOK) || fields["bytes"] != int64(2) {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLogRequestsAttachesHandlerErrors(t *testing.T) {
	logger, logs := logging.TestObserved(t, zapcore.InfoLevel)
	handler := logRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/failing":
			writeServiceError(w, errors.New("disk full"))
		case "/missing":
			writeServiceError(w, fmt.Errorf("member 9: %w", domain.ErrNotFound))
		default:
			recordError(w, errors.New("client went away"))
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}
	}))

	for _, path := range []string{"/failing", "/missing", "/partial"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	entries := logs.FilterMessage("request served").All()
	if len(entries) != 3 {
		t.Fatalf("expected three entries, got %d", len(entries))
	}

	failing := entries[0]
	if failing.Level != zapcore.ErrorLevel || !strings.Contains(fmt.Sprint(failing.ContextMap()["errors"]), "disk full") {
		t.Fatalf("expected error entry carrying the cause, got %s %v", failing.Level, failing.ContextMap())
	}
	if _, ok := entries[1].ContextMap()["errors"]; ok || entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("expected a 404 to be logged at info without errors, got %s %v", entries[1].Level, entries[1].ContextMap())
	}
	if entries[2].Level != zapcore.WarnLevel {
		t.Fatalf("expected recorded error on a successful response at warn, got %s", entries[2].Level)
	}

	// Writers outside the middleware ignore recorded errors.
	recorder := httptest.NewRecorder()
	writeServiceError(recorder, errors.New("disk full"))
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
}
