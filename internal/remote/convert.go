package remote

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/linkrelay/linkrelay/internal/model"
)

// API endpoint paths.
const (
	pathBookmarks = "/api/bookmarks"
	pathLabels    = "/api/bookmarks/labels"
	pathProfile   = "/api/profile"

	// headerBookmarkID carries the created bookmark's ID on servers that
	// respond 202 Accepted with an empty body.
	headerBookmarkID = "Bookmark-Id"
)

// createRequest is the JSON body for POST /api/bookmarks.
type createRequest struct {
	URL    string   `json:"url"`
	Title  string   `json:"title,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// createResponse is the JSON body some servers return on bookmark creation.
type createResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// apiLabel is a single entry of GET /api/bookmarks/labels.
type apiLabel struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// errorResponse is the JSON error body the server attaches to 4xx responses.
type errorResponse struct {
	Message string `json:"message"`
}

// buildCreateBody returns the JSON payload for bookmark creation. Tags are
// normalised so the server never sees duplicates.
func buildCreateBody(url, title string, labels []string) ([]byte, error) {
	req := createRequest{
		URL:    url,
		Title:  title,
		Labels: model.NormalizeTags(labels),
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding create request: %w", err)
	}
	return b, nil
}

// parseCreateResponse extracts the new bookmark's remote ID from the response
// body, falling back to the Bookmark-Id header for empty-body 202 responses.
func parseCreateResponse(body io.Reader, headerID string) (string, error) {
	var resp createResponse
	if err := json.NewDecoder(body).Decode(&resp); err == nil && resp.ID != "" {
		return resp.ID, nil
	}
	if headerID != "" {
		return headerID, nil
	}
	return "", fmt.Errorf("server did not return a bookmark ID")
}

// parseLabels decodes the label listing into model types.
func parseLabels(body io.Reader) ([]model.Label, error) {
	var raw []apiLabel
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding label listing: %w", err)
	}

	labels := make([]model.Label, 0, len(raw))
	for _, l := range raw {
		if l.Name == "" {
			continue
		}
		labels = append(labels, model.Label{Name: l.Name, UsageCount: l.Count})
	}
	return labels, nil
}

// parseErrorMessage extracts the error message from a 4xx body, or returns
// the empty string if the body is not the expected JSON shape.
func parseErrorMessage(body io.Reader) string {
	var resp errorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return ""
	}
	return resp.Message
}
