package remote

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linkrelay/linkrelay/internal/model"
)

const (
	// requestTimeout bounds every API call so the sync loop cannot stall on
	// one bad network condition.
	requestTimeout = 5 * time.Second

	// probeTimeout bounds the health check. Probes must fail fast — the
	// reachability cache turns the failure into "unreachable", it never
	// propagates.
	probeTimeout = 5 * time.Second
)

// APIError is a non-2xx response from the server. The sync engine treats it
// as a per-record failure: the record stays queued, the batch continues.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Doer is the subset of [http.Client] the Client needs. Defining it as an
// interface allows mock injection in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the bookmark server's REST API. Create one with [NewClient]
// or, for tests, [NewClientWithDoer].
type Client struct {
	baseURL string
	token   string
	hc      Doer
	log     *slog.Logger
}

// NewClient creates a Client for the server at baseURL, authenticating every
// request with the given bearer token.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: requestTimeout},
		log:     logger,
	}
}

// NewClientWithDoer creates a Client with a caller-supplied HTTP doer.
// Intended for testing with a mock [Doer].
func NewClientWithDoer(baseURL, token string, hc Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      hc,
		log:     logger,
	}
}

// newRequest builds an authenticated request with a fresh request ID.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// checkStatus maps a non-2xx response to an [*APIError], decoding the JSON
// error body when present.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &APIError{StatusCode: resp.StatusCode, Message: "unauthorized — check api_token"}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: parseErrorMessage(resp.Body)}
}

// CreateBookmark creates a bookmark on the server and returns its remote ID.
// A non-2xx status is returned as an [*APIError]; the caller decides whether
// the record stays queued.
func (c *Client) CreateBookmark(ctx context.Context, bookmarkURL, title string, labels []string) (string, error) {
	body, err := buildCreateBody(bookmarkURL, title, labels)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathBookmarks, body)
	if err != nil {
		return "", err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating bookmark %q: %w", bookmarkURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("creating bookmark %q: %w", bookmarkURL, err)
	}

	id, err := parseCreateResponse(resp.Body, resp.Header.Get(headerBookmarkID))
	if err != nil {
		return "", fmt.Errorf("creating bookmark %q: %w", bookmarkURL, err)
	}
	return id, nil
}

// DeleteBookmark removes a bookmark from the server by its remote ID. A 404
// is treated as success so the operation is idempotent under retries.
func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	path := pathBookmarks + "/" + url.PathEscape(id)

	err := Retry(ctx, defaultMaxAttempts, func() error {
		req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
		if err != nil {
			return err
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("executing delete: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusNotFound {
			c.log.Debug("bookmark already gone", "id", id)
			return nil
		}
		return checkStatus(resp)
	})
	if err != nil {
		return fmt.Errorf("deleting bookmark %s: %w", id, err)
	}
	return nil
}

// ListLabels fetches the server's label vocabulary with usage counts.
func (c *Client) ListLabels(ctx context.Context) ([]model.Label, error) {
	var labels []model.Label
	err := Retry(ctx, defaultMaxAttempts, func() error {
		req, err := c.newRequest(ctx, http.MethodGet, pathLabels, nil)
		if err != nil {
			return err
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("executing label listing: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp); err != nil {
			return err
		}

		labels, err = parseLabels(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	return labels, nil
}

// HealthCheck performs a single authenticated round trip against the server.
// It is deliberately not retried — the reachability cache owns probe
// frequency, and a probe that needs retries is already an answer.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, pathProfile, nil)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}
