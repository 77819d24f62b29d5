// Package httpapi exposes the session management REST surface backed by the
// session store:
//
//	POST   /api/sessions               create a session
//	GET    /api/sessions               list sessions, newest activity first
//	GET    /api/sessions/{id}/messages list a session's messages
//	DELETE /api/sessions/{id}          delete a session
//
// Session IDs in the URL must be well-formed UUIDs; malformed IDs get a 400
// and unknown sessions a 404.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/voxgate-ai/voxgate/internal/store"
)

// SessionsAPI serves the /api/sessions routes.
type SessionsAPI struct {
	store store.Store
	now   func() time.Time
}

// NewSessionsAPI creates the API over the given store.
func NewSessionsAPI(s store.Store) *SessionsAPI {
	return &SessionsAPI{store: s, now: time.Now}
}

// Register mounts the routes on the given router.
func (a *SessionsAPI) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions", a.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions", a.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/messages", a.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", a.handleDelete).Methods(http.MethodDelete)
}

// sessionListItem is one entry in the GET /api/sessions response.
type sessionListItem struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	CreatedAt        string `json:"created_at"`
	CreatedAtDisplay string `json:"created_at_display"`
	MessageCount     int    `json:"message_count"`
}

// messageItem is one entry in the messages response.
type messageItem struct {
	Text      string `json:"text"`
	IsUser    bool   `json:"is_user"`
	Timestamp string `json:"timestamp"`
}

func (a *SessionsAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := a.store.CreateSession(r.Context())
	if err != nil {
		slog.Error("create session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": s.ID, "title": s.Title})
}

func (a *SessionsAPI) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.store.ListSessions(r.Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	now := a.now()
	out := make([]sessionListItem, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionListItem{
			ID:               s.ID,
			Title:            s.Title,
			CreatedAt:        s.CreatedAt.Format(time.RFC3339),
			CreatedAtDisplay: store.FormatRelative(s.CreatedAt, now),
			MessageCount:     s.MessageCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *SessionsAPI) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	msgs, err := a.store.Messages(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		slog.Error("list messages failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	out := make([]messageItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageItem{
			Text:      m.Text,
			IsUser:    m.IsUser,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *SessionsAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	err := a.store.DeleteSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		slog.Error("delete session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// sessionID extracts and validates the {id} path variable. On a malformed
// UUID it writes the 400 response and returns ok=false.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session_id format")
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
