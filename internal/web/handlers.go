package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pocketomega/agentrt/internal/session"
)

const (
	maxRequestBody  = 1 << 20         // 1MB max request body
	maxMessageRunes = 8000            // max user message length in runes
	chatTimeout     = 5 * time.Minute // global timeout for one /chat turn
)

// handleSessions serves GET /sessions: the user's session listing plus the
// active session ID (spec.md §4.8 list, §4.9 "list user's sessions").
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	infos := s.sessions.List(userID)
	active, _ := s.sessions.Active(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": infos,
		"active":   active,
	})
}

// handleSessionsNew serves POST /sessions/new: creates a session and marks
// it active.
func (s *Server) handleSessionsNew(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := s.sessions.New(r.Context(), userID)
	if err != nil {
		log.Printf("[web] sessions/new: %v", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id})
}

// handleSessionLoad serves POST /sessions/{id}/load: returns the history
// tail (excluding the system prompt) and marks id active.
func (s *Server) handleSessionLoad(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	history, err := s.sessions.Load(userID, id)
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleSessionDelete serves DELETE /sessions/{id}: removes the session
// file and any cached runtime.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if err := s.sessions.Delete(userID, id); err != nil {
		writeSessionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// handleChat serves POST /chat: runs one agent turn and streams its event
// sequence as SSE (spec.md §4.9). When session_id is omitted, the turn is
// routed to the user's active session, creating one if none exists yet.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		http.Error(w, "message too long", http.StatusRequestEntityTooLarge)
		return
	}

	// The turn does not inherit the request's cancellation, so a client
	// disconnect does not cancel it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), chatTimeout)
	defer cancel()

	sessionID := req.SessionID
	if sessionID == "" {
		if active, ok := s.sessions.Active(userID); ok {
			sessionID = active
		} else {
			id, err := s.sessions.New(ctx, userID)
			if err != nil {
				log.Printf("[web] chat: create active session: %v", err)
				http.Error(w, "failed to create session", http.StatusInternalServerError)
				return
			}
			sessionID = id
		}
	}

	rt, err := s.sessions.GetOrCreate(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSessionID) {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		log.Printf("[web] chat: get_or_create: %v", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	sse := newSSEWriter(w, r)
	if sse == nil {
		return
	}

	events := rt.Agent.Step(ctx, req.Message)
	for ev := range events {
		if !sse.Send(ev) {
			break // client disconnected
		}
	}
	// Drain the rest so the turn still runs to completion and autosaves.
	for range events {
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[web] encode response: %v", err)
	}
}

func writeSessionErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidSessionID):
		http.Error(w, "invalid session id", http.StatusBadRequest)
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	default:
		log.Printf("[web] session error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
