package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/linkrelay/linkrelay/internal/model"
)

// mockRemote implements RemoteAPI. Failures are scripted per URL.
type mockRemote struct {
	mu          sync.Mutex
	created     []string
	failURLs    map[string]error
	labels      []model.Label
	labelsErr   error
	createCalls int
	labelCalls  int
}

func newMockRemote() *mockRemote {
	return &mockRemote{failURLs: make(map[string]error)}
}

func (m *mockRemote) CreateBookmark(_ context.Context, url, _ string, _ []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if err, ok := m.failURLs[url]; ok {
		return "", err
	}
	m.created = append(m.created, url)
	return fmt.Sprintf("srv-%d", m.createCalls), nil
}

func (m *mockRemote) ListLabels(_ context.Context) ([]model.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labelCalls++
	if m.labelsErr != nil {
		return nil, m.labelsErr
	}
	return m.labels, nil
}

func (m *mockRemote) createdURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

func (m *mockRemote) calls() (create, labels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.labelCalls
}

// mockStore implements LocalStore over an in-memory slice.
type mockStore struct {
	mu        sync.Mutex
	bookmarks []*model.Bookmark
	labels    []model.Label
	listErr   error
	upsertErr error
	attempts  map[int64]int
}

func newMockStore(bookmarks ...*model.Bookmark) *mockStore {
	return &mockStore{bookmarks: bookmarks, attempts: make(map[int64]int)}
}

func (m *mockStore) ListPending(context.Context) ([]*model.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*model.Bookmark, len(m.bookmarks))
	for i, b := range m.bookmarks {
		cp := *b
		out[i] = &cp
	}
	return out, nil
}

func (m *mockStore) DeleteBookmark(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bookmarks {
		if b.ID == id {
			m.bookmarks = append(m.bookmarks[:i], m.bookmarks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockStore) PendingCount(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookmarks), nil
}

func (m *mockStore) RecordAttempt(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[id]++
	return nil
}

func (m *mockStore) UpsertLabels(_ context.Context, labels []model.Label) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	m.labels = append(m.labels, labels...)
	return len(labels), nil
}

func (m *mockStore) remaining() []*model.Bookmark {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Bookmark(nil), m.bookmarks...)
}

func (m *mockStore) attemptCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[id]
}

func (m *mockStore) cachedLabels() []model.Label {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Label(nil), m.labels...)
}

// mockReach implements Reachability with a settable answer and an optional
// gate to hold Check open. entered is signalled once when the first Check
// begins, so tests can park a pass mid-flight deterministically.
type mockReach struct {
	mu      sync.Mutex
	online  bool
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (m *mockReach) Check(context.Context) bool {
	m.mu.Lock()
	block := m.block
	online := m.online
	m.mu.Unlock()
	if m.entered != nil {
		m.once.Do(func() { close(m.entered) })
	}
	if block != nil {
		<-block
	}
	return online
}

func (m *mockReach) setOnline(v bool) {
	m.mu.Lock()
	m.online = v
	m.mu.Unlock()
}
