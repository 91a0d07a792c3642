// Package web implements the HTTP + SSE surface (spec.md §4.9, component
// C9): bearer-token auth resolving to a user_id, the session-management
// endpoints, and the streaming /chat endpoint that drives one agent turn.
package web

import (
	"context"
	"embed"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketomega/agentrt/internal/session"
)

//go:embed templates/index.html
var content embed.FS

// Server holds the HTTP server and its dependencies.
type Server struct {
	tmpl          *template.Template
	mux           *http.ServeMux
	auth          *TokenAuth
	sessions      *session.Manager
	healthHandler *HealthHandler
}

// NewServer creates a new web server wired to the session manager.
func NewServer(auth *TokenAuth, sessions *session.Manager, healthInfo HealthInfo) (*Server, error) {
	tmpl, err := template.ParseFS(content, "templates/index.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		tmpl:          tmpl,
		mux:           http.NewServeMux(),
		auth:          auth,
		sessions:      sessions,
		healthHandler: NewHealthHandler(healthInfo),
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes wires spec.md §4.9's endpoint table. Every route except
// "/" and the health check requires a bearer token.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/health", s.healthHandler.ServeHTTP)

	s.mux.HandleFunc("GET /sessions", s.auth.Require(s.handleSessions))
	s.mux.HandleFunc("POST /sessions/new", s.auth.Require(s.handleSessionsNew))
	s.mux.HandleFunc("POST /sessions/{id}/load", s.auth.Require(s.handleSessionLoad))
	s.mux.HandleFunc("DELETE /sessions/{id}", s.auth.Require(s.handleSessionDelete))
	s.mux.HandleFunc("POST /chat", s.auth.Require(s.handleChat))
}

// handleIndex serves the static entry page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.tmpl.Execute(w, nil); err != nil {
		log.Printf("[web] template render: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Start begins listening on the configured port with graceful shutdown.
// On SIGINT/SIGTERM, it waits up to 10s for in-flight requests to finish —
// spec.md §4.9: "Connection aborts... do not cancel in-flight tool calls;
// they run to completion and autosave."
func (s *Server) Start() error {
	port := os.Getenv("WEB_PORT")
	if port == "" {
		port = "8080"
	}
	// Default to localhost to avoid unintentional LAN exposure for a local tool.
	host := os.Getenv("WEB_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	addr := host + ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("received signal %v, shutting down gracefully...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown error: %v", err)
		}
	}()

	log.Printf("agent runtime server listening at http://%s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Println("server stopped gracefully")
		return nil
	}
	return err
}
