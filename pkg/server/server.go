package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"walletchat/pkg/assistant"
	"walletchat/pkg/conversation"
	"walletchat/pkg/models"
	"walletchat/pkg/wallet"
	"walletchat/pkg/watcher"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Status is the body of GET /api/status.
type Status struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	Busy      bool   `json:"busy"`
	State     string `json:"state"`
	Turns     int    `json:"turns"`
}

type sendRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error        string               `json:"error"`
	Notification *models.Notification `json:"notification,omitempty"`
}

type Server struct {
	assistant *assistant.Assistant
	history   *watcher.Watcher
	logger    *slog.Logger
	clients   map[*websocket.Conn]bool
	mu        sync.Mutex
	mux       *http.ServeMux
}

// NewServer exposes the assistant over HTTP. history may be nil.
func NewServer(a *assistant.Assistant, history *watcher.Watcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		assistant: a,
		history:   history,
		logger:    logger,
		clients:   make(map[*websocket.Conn]bool),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/messages", s.handleMessages)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /api/send", s.handleSend)
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on port until ctx is done.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.listenToConversation(ctx, s.assistant.Conversation().Subscribe())
	if s.history != nil {
		go s.listenToHistory(ctx, s.history.Subscribe())
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) status() Status {
	session := s.assistant.Session()
	return Status{
		Address:   session.Address(),
		Connected: session.Connected(),
		Busy:      s.assistant.Busy(),
		State:     s.assistant.State().String(),
		Turns:     s.assistant.Conversation().Len(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.assistant.Conversation().Turns())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	samples := []models.BalanceSample{}
	if s.history != nil {
		if got := s.history.Samples(s.assistant.Session().Address()); got != nil {
			samples = got
		}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	note, err := s.assistant.Session().Connect(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, note)
	case errors.Is(err, wallet.ErrWalletUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Notification: &note})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Notification: &note})
	}
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	note := s.assistant.Session().Disconnect()
	if s.history != nil {
		s.history.Clear()
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.assistant.Send(r.Context(), req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res.Turn)
	case errors.Is(err, assistant.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, assistant.ErrWalletNotConnected):
		note := assistant.NotConnectedNotification()
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: err.Error(), Notification: &note})
	case errors.Is(err, assistant.ErrBusy), errors.Is(err, assistant.ErrCycleCancelled):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("send failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Initial snapshot and registration happen under the broadcast lock so no
	// event is written concurrently or lost in between.
	s.mu.Lock()
	initialData := map[string]interface{}{
		"type": "initial",
		"data": map[string]interface{}{
			"status":   s.status(),
			"messages": s.assistant.Conversation().Turns(),
		},
	}
	if err := conn.WriteJSON(initialData); err != nil {
		s.mu.Unlock()
		return
	}
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToConversation(ctx context.Context, sub conversation.Subscriber) {
	defer s.assistant.Conversation().Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) listenToHistory(ctx context.Context, sub watcher.Subscriber) {
	defer s.history.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
