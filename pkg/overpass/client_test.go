package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
)

var testViewport = geo.Bounds{North: 48.213, South: 48.197, East: 16.383, West: 16.367}

func testClient(baseURL string) *Client {
	opts := DefaultOptions()
	opts.BaseURL = baseURL
	opts.RPS = 1000
	opts.Burst = 1000
	opts.Retry = RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	return NewClient(opts)
}

func TestQueryBuildings(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotQuery = r.PostFormValue("data")
		w.Write([]byte(`{"elements":[{"id":1,"type":"way","tags":{"building":"yes"},"geometry":[{"lat":48.2,"lon":16.37}]}]}`))
	}))
	defer srv.Close()

	elements, err := testClient(srv.URL).QueryBuildings(context.Background(), testViewport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("expected 1 element, got %d", len(elements))
	}
	if elements[0].Tags["building"] != "yes" {
		t.Errorf("element tags not decoded: %+v", elements[0].Tags)
	}
	if !strings.Contains(gotQuery, "(48.197000,16.367000,48.213000,16.383000)") {
		t.Errorf("upstream query missing bbox: %s", gotQuery)
	}
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	elements, err := testClient(srv.URL).Execute(context.Background(), "[out:json];out;")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if elements == nil {
		t.Fatalf("expected decoded (empty) element list")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestExecuteExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Execute(context.Background(), "[out:json];out;")
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	opErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if opErr.Code != ErrRateLimit {
		t.Errorf("expected code %s for HTTP 429, got %s", ErrRateLimit, opErr.Code)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestExecuteRejectsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Execute(context.Background(), "[out:json];out;")
	opErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if opErr.Code != ErrParseError {
		t.Errorf("expected code %s, got %s", ErrParseError, opErr.Code)
	}
}

func TestExecuteCollapsesIdenticalQueries(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := client.Execute(context.Background(), "[out:json];out;")
			results <- err
		}()
	}

	// Wait for the first request to reach the server, then give the
	// second call time to join it before releasing the response.
	deadline := time.After(2 * time.Second)
	for requests.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("upstream request never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected a single upstream request, got %d", got)
	}
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := url.QueryUnescape(r.URL.Query().Get("data"))
		if err != nil || !strings.Contains(data, "out meta") {
			t.Errorf("unexpected health query: %q", r.URL.RawQuery)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if err := testClient(srv.URL).CheckHealth(); err != nil {
		t.Errorf("unexpected health check failure: %v", err)
	}
}

func TestCheckHealthServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).CheckHealth(); err == nil {
		t.Errorf("expected health check failure on HTTP 503")
	}
}
