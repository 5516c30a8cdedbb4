package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"memberdesk/backend/internal/httpapi"
)

// stubSignals replaces signal registration and hands out the channel run
// listens on.
func stubSignals(t *testing.T) <-chan chan<- os.Signal {
	t.Helper()
	previousSignalNotify := signalNotify
	previousSignalStop := signalStop
	t.Cleanup(func() {
		signalNotify = previousSignalNotify
		signalStop = previousSignalStop
	})

	registered := make(chan chan<- os.Signal, 1)
	signalNotify = func(c chan<- os.Signal, _ ...os.Signal) {
		registered <- c
	}
	signalStop = func(chan<- os.Signal) {}
	return registered
}

func stubShutdownContext(t *testing.T, fn func(context.Context, time.Duration) (context.Context, context.CancelFunc)) {
	t.Helper()
	previous := newShutdownContext
	t.Cleanup(func() { newShutdownContext = previous })
	newShutdownContext = fn
}

func collectLogs(logs chan<- string) func(string, ...any) {
	return func(format string, args ...any) {
		logs <- fmt.Sprintf(format, args...)
	}
}

func TestRun(t *testing.T) {
	handler := http.NewServeMux()
	loggerCalled := false
	addr := "127.0.0.1:0"

	if err := run(addr, handler, func(server *http.Server, _ net.Listener) error {
		if server.Addr != addr || server.Handler != handler {
			t.Fatalf("unexpected server %s", server.Addr)
		}
		if server.ReadHeaderTimeout != 10*time.Second || server.ReadTimeout != 15*time.Second {
			t.Fatalf("unexpected read timeouts %v %v", server.ReadHeaderTimeout, server.ReadTimeout)
		}
		if server.WriteTimeout != 90*time.Second {
			t.Fatalf("expected write timeout 90s, got %v", server.WriteTimeout)
		}
		if server.IdleTimeout != 60*time.Second {
			t.Fatalf("expected idle timeout 60s, got %v", server.IdleTimeout)
		}
		return nil
	}, func(_ string, _ ...any) {
		loggerCalled = true
	}); err != nil {
		t.Fatalf("expected run success, got %v", err)
	}
	if !loggerCalled {
		t.Fatal("expected logger callback to be called")
	}

	if err := run(addr, handler, func(_ *http.Server, _ net.Listener) error {
		return http.ErrServerClosed
	}, nil); err != nil {
		t.Fatalf("expected nil on server closed, got %v", err)
	}

	expected := errors.New("boom")
	if err := run(addr, handler, func(_ *http.Server, _ net.Listener) error {
		return expected
	}, nil); !errors.Is(err, expected) {
		t.Fatalf("expected propagated error, got %v", err)
	}

	if err := run(addr, handler, nil, nil); err == nil {
		t.Fatal("expected error for nil start function")
	}
}

func TestRunGracefulShutdownCallsCleanup(t *testing.T) {
	registered := stubSignals(t)

	startRelease := make(chan struct{})
	handler := &testClosableHandler{Handler: http.NewServeMux()}
	logs := make(chan string, 16)

	runErrors := make(chan error, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", handler, func(_ *http.Server, _ net.Listener) error {
			<-startRelease
			return http.ErrServerClosed
		}, collectLogs(logs))
	}()

	(<-registered) <- syscall.SIGTERM
	close(startRelease)

	if err := <-runErrors; err != nil {
		t.Fatalf("expected graceful shutdown to return nil, got %v", err)
	}
	if !handler.closed {
		t.Fatal("expected handler cleanup to run on shutdown")
	}
	entries := drainLogChannel(logs)
	for _, expected := range []string{"shutdown signal received", "server exited gracefully", "resource cleanup completed"} {
		if !logsContain(entries, expected) {
			t.Fatalf("expected %q in logs, got %v", expected, entries)
		}
	}
}

func TestRunLogsTimeoutWaitingForServerGoroutine(t *testing.T) {
	registered := stubSignals(t)
	stubShutdownContext(t, func(parent context.Context, _ time.Duration) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, func() {}
	})

	startRelease := make(chan struct{})
	logs := make(chan string, 16)
	runErrors := make(chan error, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", http.NewServeMux(), func(_ *http.Server, _ net.Listener) error {
			<-startRelease
			return nil
		}, collectLogs(logs))
	}()

	(<-registered) <- syscall.SIGTERM

	if err := <-runErrors; err != nil {
		t.Fatalf("expected shutdown path to return nil, got %v", err)
	}
	close(startRelease)

	if entries := drainLogChannel(logs); !logsContain(entries, "timed out waiting for server goroutine to exit") {
		t.Fatalf("expected goroutine timeout log, got %v", entries)
	}
}

func TestRunLogsForcedShutdownWhenSlowRequestExceedsGracePeriod(t *testing.T) {
	registered := stubSignals(t)
	stubShutdownContext(t, func(parent context.Context, _ time.Duration) (context.Context, context.CancelFunc) {
		return context.WithTimeout(parent, 10*time.Millisecond)
	})

	router, slowStarted, releaseSlow := slowRouter()
	logs := make(chan string, 16)
	runErrors := make(chan error, 1)
	listenAddr := make(chan string, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", router, func(server *http.Server, listener net.Listener) error {
			listenAddr <- listener.Addr().String()
			return server.Serve(listener)
		}, collectLogs(logs))
	}()

	signals := <-registered
	baseURL := "http://" + <-listenAddr
	waitForReady(t, baseURL+"/ready")
	go func() {
		client := &http.Client{Timeout: 2 * time.Second}
		resp, requestErr := doGetRequest(client, baseURL+"/slow")
		if requestErr == nil {
			_ = resp.Body.Close()
		}
	}()

	<-slowStarted
	signals <- syscall.SIGTERM
	waitForLogMessage(t, logs, "server forced to shutdown")

	if err := <-runErrors; err != nil {
		t.Fatalf("expected shutdown flow to return nil after timeout, got %v", err)
	}
	close(releaseSlow)
}

func TestRunReturnsServeErrorAfterShutdownSignal(t *testing.T) {
	registered := stubSignals(t)

	startRelease := make(chan struct{})
	expected := errors.New("serve failure")
	runErrors := make(chan error, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", http.NewServeMux(), func(_ *http.Server, _ net.Listener) error {
			<-startRelease
			return expected
		}, nil)
	}()

	(<-registered) <- syscall.SIGINT
	close(startRelease)

	if err := <-runErrors; !errors.Is(err, expected) {
		t.Fatalf("expected serve error %v after shutdown, got %v", expected, err)
	}
}

func TestRunAllowsInFlightRequestAndRejectsNewRequestsOnShutdown(t *testing.T) {
	registered := stubSignals(t)

	router, slowStarted, releaseSlow := slowRouter()
	logs := make(chan string, 16)
	runErrors := make(chan error, 1)
	listenAddr := make(chan string, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", router, func(server *http.Server, listener net.Listener) error {
			listenAddr <- listener.Addr().String()
			return server.Serve(listener)
		}, collectLogs(logs))
	}()

	signals := <-registered
	baseURL := "http://" + <-listenAddr
	waitForReady(t, baseURL+"/ready")

	slowResponse := make(chan error, 1)
	go func() {
		client := &http.Client{Timeout: 2 * time.Second}
		resp, requestErr := doGetRequest(client, baseURL+"/slow")
		if requestErr != nil {
			slowResponse <- requestErr
			return
		}
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			slowResponse <- fmt.Errorf("read slow response body: %w", readErr)
			return
		}
		if resp.StatusCode != http.StatusOK || string(body) != "ok" {
			slowResponse <- fmt.Errorf("unexpected slow response %d %q", resp.StatusCode, body)
			return
		}
		slowResponse <- nil
	}()

	<-slowStarted
	signals <- syscall.SIGINT
	waitForLogMessage(t, logs, "shutdown signal received")

	if err := waitForRequestRejection(baseURL + "/ready"); err != nil {
		t.Fatalf("expected new requests to be rejected after shutdown signal: %v", err)
	}

	close(releaseSlow)
	if err := <-slowResponse; err != nil {
		t.Fatalf("expected in-flight request to complete successfully: %v", err)
	}
	if err := <-runErrors; err != nil {
		t.Fatalf("expected graceful shutdown to complete without error, got %v", err)
	}
}

func TestCloseResources(t *testing.T) {
	if err := closeResources(nil); err != nil {
		t.Fatalf("expected nil for nil handler, got %v", err)
	}
	if err := closeResources(http.NewServeMux()); err != nil {
		t.Fatalf("expected nil for non-closable handler, got %v", err)
	}

	expected := errors.New("close failed")
	handler := &testClosableHandler{Handler: http.NewServeMux(), closeErr: expected}
	if err := closeResources(handler); !errors.Is(err, expected) {
		t.Fatalf("expected close error %v, got %v", expected, err)
	}
	if !handler.closed {
		t.Fatal("expected close to be called on closable handler")
	}
}

func TestRunLogsCleanupFailure(t *testing.T) {
	registered := stubSignals(t)

	startRelease := make(chan struct{})
	logs := make(chan string, 16)
	handler := &testClosableHandler{Handler: http.NewServeMux(), closeErr: errors.New("database busy")}
	runErrors := make(chan error, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", handler, func(_ *http.Server, _ net.Listener) error {
			<-startRelease
			return nil
		}, collectLogs(logs))
	}()

	(<-registered) <- syscall.SIGTERM
	close(startRelease)

	if err := <-runErrors; err != nil {
		t.Fatalf("expected shutdown to continue when cleanup fails, got %v", err)
	}
	if entries := drainLogChannel(logs); !logsContain(entries, "resource cleanup failed: database busy") {
		t.Fatalf("expected cleanup failure to be logged, got %v", entries)
	}
}

func TestLogStartupWarnings(t *testing.T) {
	var messages []string
	logger := func(format string, args ...any) {
		messages = append(messages, fmt.Sprintf(format, args...))
	}

	logStartupWarnings(httpapi.RuntimeConfig{Mode: httpapi.RuntimeModeProduction}, logger)
	if len(messages) != 0 {
		t.Fatalf("expected no warnings in production mode, got %v", messages)
	}
	logStartupWarnings(httpapi.RuntimeConfig{Mode: httpapi.RuntimeModeDevelopment}, nil)

	logStartupWarnings(httpapi.RuntimeConfig{Mode: httpapi.RuntimeModeDevelopment}, logger)
	for _, expected := range []string{"development mode", "header-based dev auth", "do not expose"} {
		if !logsContain(messages, expected) {
			t.Fatalf("expected warning containing %q, got %v", expected, messages)
		}
	}
}

type testClosableHandler struct {
	http.Handler
	closeErr error
	closed   bool
}

func (h *testClosableHandler) Close() error {
	h.closed = true
	return h.closeErr
}

// slowRouter serves /ready immediately and holds /slow until released.
func slowRouter() (*http.ServeMux, <-chan struct{}, chan struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	router := http.NewServeMux()
	router.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router, started, release
}

func logsContain(logs []string, substring string) bool {
	for _, entry := range logs {
		if strings.Contains(entry, substring) {
			return true
		}
	}
	return false
}

func waitForReady(t *testing.T, url string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	client := &http.Client{Timeout: 200 * time.Millisecond}
	for time.Now().Before(deadline) {
		resp, err := doGetRequest(client, url)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not become ready: %s", url)
}

func waitForLogMessage(t *testing.T, logs <-chan string, substring string) {
	t.Helper()

	timeout := time.NewTimer(2 * time.Second)
	defer timeout.Stop()
	for {
		select {
		case entry := <-logs:
			if strings.Contains(entry, substring) {
				return
			}
		case <-timeout.C:
			t.Fatalf("did not observe log message containing %q", substring)
		}
	}
}

func waitForRequestRejection(url string) error {
	deadline := time.Now().Add(2 * time.Second)
	client := &http.Client{Timeout: 150 * time.Millisecond}

	for time.Now().Before(deadline) {
		resp, requestErr := doGetRequest(client, url)
		if requestErr != nil {
			return nil
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("request to %s kept succeeding during shutdown", url)
}

func drainLogChannel(logs <-chan string) []string {
	entries := make([]string, 0, 8)
	for {
		select {
		case entry := <-logs:
			entries = append(entries, entry)
		default:
			return entries
		}
	}
}

func doGetRequest(client *http.Client, url string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
