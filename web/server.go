// Package web serves the local settings and history UI and pushes agent
// status over a websocket.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jinzheng8115/smartanychat/config"
	"github.com/jinzheng8115/smartanychat/storage"
)

//go:embed static/*
var staticFiles embed.FS

// Agent statuses pushed to clients
const (
	StatusIdle       = "idle"
	StatusCapturing  = "capturing"
	StatusGenerating = "generating"
	StatusInjecting  = "injecting"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// Server represents the web server
type Server struct {
	db     *storage.DB
	store  *config.Store
	port   int
	hub    *Hub
	logger *slog.Logger

	mu      sync.RWMutex
	status  string
	onClear func()
}

// NewServer creates a new web server
func NewServer(db *storage.DB, store *config.Store, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		store:  store,
		port:   port,
		hub:    NewHub(logger),
		logger: logger,
		status: StatusIdle,
	}
}

// OnClearConversation sets the callback for the clear-conversation endpoint
func (s *Server) OnClearConversation(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = fn
}

// Handler returns the HTTP routes
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	mux.HandleFunc("GET /api/roles", s.handleListRoles)
	mux.HandleFunc("POST /api/roles", s.handleAddRole)
	mux.HandleFunc("PUT /api/roles/{name}", s.handleUpdateRole)
	mux.HandleFunc("DELETE /api/roles/{name}", s.handleDeleteRole)
	mux.HandleFunc("POST /api/roles/{name}/select", s.handleSelectRole)
	mux.HandleFunc("GET /api/history", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)
	mux.HandleFunc("POST /api/history/clear-conversation", s.handleClearConversation)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Run serves until ctx is cancelled. It listens on localhost only.
func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Starting web server", "port", s.port, "url", s.URL())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// URL returns the address of the settings page
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Status returns the last broadcast status
func (s *Server) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// BroadcastStatus records and broadcasts a status update to all connected clients
func (s *Server) BroadcastStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.hub.BroadcastMessage(Message{
		Type: MessageTypeStatus,
		Data: StatusMessage{Status: status},
	})
}

// BroadcastRecord announces a new history entry to all connected clients
func (s *Server) BroadcastRecord(r *storage.Record) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeRecord,
		Data: RecordMessage{
			ID:        r.ID,
			Action:    r.Action,
			Success:   r.Success,
			Chars:     r.ResponseChars,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected WebSocket Upgrade", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	// New clients start from the current status.
	if data, err := json.Marshal(Message{Type: MessageTypeStatus, Data: StatusMessage{Status: s.Status()}}); err == nil {
		client.send <- data
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// sameHostOrigin accepts requests without an Origin header and browser
// pages served by this server.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host
}
