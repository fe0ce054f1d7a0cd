// Package model defines shared types used across the sync engine, the local
// store, and the remote client.
package model

import (
	"strings"
	"time"
)

// Bookmark is a locally queued bookmark that has not yet been accepted by the
// remote server. Its ID is the local store's row ID, not a remote identifier —
// the record earns a remote ID only once the sync engine mirrors it.
type Bookmark struct {
	// ID is the local store identity, assigned on insert.
	ID int64

	// URL is the bookmarked address. Non-empty; it is also the natural
	// dedup key for the offline queue (saving the same URL twice updates
	// the queued record in place).
	URL string

	// Title is the page title. May be empty.
	Title string

	// Tags is the normalised tag set, insertion-ordered with duplicates
	// collapsed. Stored as comma-joined text.
	Tags []string

	// CreatedAt is when the record entered the offline queue.
	CreatedAt time.Time

	// SyncAttempts counts failed mirror attempts. Advisory; the engine
	// retries queued records on every pass regardless.
	SyncAttempts int

	// LastAttemptAt is when the most recent failed mirror attempt happened.
	LastAttemptAt time.Time
}

// Label is a single entry of the tag vocabulary. UsageCount is advisory and
// mirrors the server's count when that is higher than what we have locally.
type Label struct {
	Name       string
	UsageCount int
}

// NormalizeTags trims whitespace, drops empty entries, and collapses
// duplicates while preserving first-seen order. Comparison is case-sensitive,
// matching the server's label semantics.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// EncodeTags returns the storage text form of a tag set: normalised and
// comma-joined.
func EncodeTags(tags []string) string {
	return strings.Join(NormalizeTags(tags), ",")
}

// DecodeTags parses the storage text form back into a tag slice. The empty
// string decodes to nil.
func DecodeTags(s string) []string {
	if s == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}

// ParseTagInput splits user-supplied tag input on commas. "go, sync,go"
// becomes ["go", "sync"].
func ParseTagInput(input string) []string {
	return DecodeTags(input)
}
