package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/voxgate-ai/voxgate/internal/store"
)

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	messages map[string][]store.Message
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]*store.Session),
		messages: make(map[string][]store.Message),
	}
}

func (m *memStore) CreateSession(ctx context.Context) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &store.Session{
		ID:        uuid.NewString(),
		Title:     store.DefaultTitle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) EnsureSession(ctx context.Context, id string) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := &store.Session{ID: id, Title: store.DefaultTitle, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.sessions[id] = s
	return s, nil
}

func (m *memStore) ListSessions(ctx context.Context) ([]store.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.SessionSummary
	for _, s := range m.sessions {
		out = append(out, store.SessionSummary{Session: *s, MessageCount: len(m.messages[s.ID])})
	}
	return out, nil
}

func (m *memStore) Messages(ctx context.Context, sessionID string) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, store.ErrNotFound
	}
	return m.messages[sessionID], nil
}

func (m *memStore) AddMessage(ctx context.Context, sessionID, text string, isUser bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[sessionID] = append(m.messages[sessionID], store.Message{
		Text: text, IsUser: isUser, Timestamp: time.Now(),
	})
	return nil
}

func (m *memStore) MessageCount(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[sessionID]), nil
}

func (m *memStore) SetTitle(ctx context.Context, sessionID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	s.Title = title
	return nil
}

func (m *memStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return store.ErrNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.messages, sessionID)
	return nil
}

func newTestAPI(t *testing.T) (*memStore, *mux.Router) {
	t.Helper()
	ms := newMemStore()
	api := NewSessionsAPI(ms)
	r := mux.NewRouter()
	api.Register(r)
	return ms, r
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	_, r := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := uuid.Parse(body["id"]); err != nil {
		t.Errorf("id is not a UUID: %q", body["id"])
	}
	if body["title"] != store.DefaultTitle {
		t.Errorf("title: want %q, got %q", store.DefaultTitle, body["title"])
	}
}

func TestListSessions(t *testing.T) {
	t.Parallel()

	ms, r := newTestAPI(t)
	s, _ := ms.CreateSession(context.Background())
	_ = ms.AddMessage(context.Background(), s.ID, "hello", true)
	_ = ms.AddMessage(context.Background(), s.ID, "hi there", false)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", w.Code)
	}
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("sessions: want 1, got %d", len(body))
	}
	if got := body[0]["message_count"].(float64); got != 2 {
		t.Errorf("message_count: want 2, got %v", got)
	}
	if got := body[0]["created_at_display"].(string); got == "" {
		t.Error("created_at_display is empty")
	}
}

func TestGetMessages(t *testing.T) {
	t.Parallel()

	ms, r := newTestAPI(t)
	s, _ := ms.CreateSession(context.Background())
	_ = ms.AddMessage(context.Background(), s.ID, "what is 2+2", true)
	_ = ms.AddMessage(context.Background(), s.ID, "four", false)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+s.ID+"/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", w.Code)
	}
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("messages: want 2, got %d", len(body))
	}
	if body[0]["text"] != "what is 2+2" || body[0]["is_user"] != true {
		t.Errorf("first message: got %v", body[0])
	}
	if body[1]["text"] != "four" || body[1]["is_user"] != false {
		t.Errorf("second message: got %v", body[1])
	}
}

func TestGetMessages_MalformedID(t *testing.T) {
	t.Parallel()

	_, r := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", w.Code)
	}
}

func TestGetMessages_UnknownSession(t *testing.T) {
	t.Parallel()

	_, r := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString()+"/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: want 404, got %d", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	ms, r := newTestAPI(t)
	s, _ := ms.CreateSession(context.Background())

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+s.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status: want 200, got %d", w.Code)
	}

	// Deleting again: 404.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status: want 404, got %d", w.Code)
	}
}

func TestDeleteSession_MalformedID(t *testing.T) {
	t.Parallel()

	_, r := newTestAPI(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/xyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", w.Code)
	}
}
