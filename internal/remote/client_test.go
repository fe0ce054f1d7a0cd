package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// mockDoer scripts HTTP responses per call and records the requests it saw.
type mockDoer struct {
	mu        sync.Mutex
	responses []*http.Response
	errs      []error
	requests  []*http.Request
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	i := len(m.requests) - 1
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	// Repeat the last scripted response for extra calls.
	return m.responses[len(m.responses)-1], nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(d *mockDoer) *Client {
	return NewClientWithDoer("https://read.example.com/", "tok-123", d, slog.Default())
}

func TestCreateBookmark_ReturnsID(t *testing.T) {
	d := &mockDoer{responses: []*http.Response{
		jsonResponse(http.StatusCreated, `{"id": "bm-42"}`),
	}}
	c := newTestClient(d)

	id, err := c.CreateBookmark(context.Background(), "https://go.dev", "The Go Programming Language", []string{"go", "go", "lang"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "bm-42" {
		t.Errorf("id = %q, want %q", id, "bm-42")
	}

	req := d.requests[0]
	if req.Method != http.MethodPost || req.URL.Path != "/api/bookmarks" {
		t.Errorf("request = %s %s, want POST /api/bookmarks", req.Method, req.URL.Path)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if req.Header.Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header missing")
	}

	body, _ := io.ReadAll(req.Body)
	// Duplicate tags must be collapsed before the server sees them.
	if want := `{"url":"https://go.dev","title":"The Go Programming Language","labels":["go","lang"]}`; string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestCreateBookmark_IDFromHeader(t *testing.T) {
	resp := jsonResponse(http.StatusAccepted, ``)
	resp.Header.Set("Bookmark-Id", "bm-7")
	d := &mockDoer{responses: []*http.Response{resp}}
	c := newTestClient(d)

	id, err := c.CreateBookmark(context.Background(), "https://go.dev", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "bm-7" {
		t.Errorf("id = %q, want %q", id, "bm-7")
	}
}

func TestCreateBookmark_RejectionIsAPIError(t *testing.T) {
	d := &mockDoer{responses: []*http.Response{
		jsonResponse(http.StatusUnprocessableEntity, `{"message": "invalid url"}`),
	}}
	c := newTestClient(d)

	_, err := c.CreateBookmark(context.Background(), "not-a-url", "", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError in chain, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid url" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "invalid url")
	}

	// Creation must not be retried: an ambiguous failure retried blindly
	// could duplicate the bookmark.
	if len(d.requests) != 1 {
		t.Errorf("requests = %d, want 1 (no transport retry on create)", len(d.requests))
	}
}

func TestDeleteBookmark_NotFoundIsSuccess(t *testing.T) {
	d := &mockDoer{responses: []*http.Response{
		jsonResponse(http.StatusNotFound, `{"message": "no such bookmark"}`),
	}}
	c := newTestClient(d)

	if err := c.DeleteBookmark(context.Background(), "bm-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req := d.requests[0]; req.URL.Path != "/api/bookmarks/bm-9" {
		t.Errorf("path = %s, want /api/bookmarks/bm-9", req.URL.Path)
	}
}

func TestDeleteBookmark_RetriesTransientFailure(t *testing.T) {
	d := &mockDoer{
		errs: []error{errors.New("connection reset"), nil},
		responses: []*http.Response{
			nil,
			jsonResponse(http.StatusNoContent, ``),
		},
	}
	c := newTestClient(d)

	if err := c.DeleteBookmark(context.Background(), "bm-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.requests) != 2 {
		t.Errorf("requests = %d, want 2 (one retry)", len(d.requests))
	}
}

func TestListLabels(t *testing.T) {
	d := &mockDoer{responses: []*http.Response{
		jsonResponse(http.StatusOK, `[{"name": "go", "count": 12}, {"name": "reading", "count": 3}, {"name": "", "count": 1}]`),
	}}
	c := newTestClient(d)

	labels, err := c.ListLabels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The nameless entry is dropped.
	if len(labels) != 2 {
		t.Fatalf("labels = %d, want 2", len(labels))
	}
	if labels[0].Name != "go" || labels[0].UsageCount != 12 {
		t.Errorf("labels[0] = %+v, want {go 12}", labels[0])
	}
}

func TestHealthCheck_NonOKIsError(t *testing.T) {
	d := &mockDoer{responses: []*http.Response{
		jsonResponse(http.StatusBadGateway, ``),
	}}
	c := newTestClient(d)

	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for 502 health check")
	}
	// Single shot: probe frequency belongs to the reachability cache.
	if len(d.requests) != 1 {
		t.Errorf("requests = %d, want 1 (no retry on probe)", len(d.requests))
	}
}

func TestHealthCheck_Unauthorized(t *testing.T) {
	d := &mockDoer{responses: []*http.Response{
		jsonResponse(http.StatusUnauthorized, ``),
	}}
	c := newTestClient(d)

	err := c.HealthCheck(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}
