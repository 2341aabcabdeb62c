package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"image-optimizer-go/internal/archive"
	"image-optimizer-go/internal/config"
	"image-optimizer-go/internal/optimizer"
	"image-optimizer-go/internal/stats"
)

// Server exposes the image optimizer over HTTP: multipart upload in, ZIP
// archive out, with live progress over a websocket.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	optimizer  *optimizer.Optimizer
	archiver   *archive.Builder

	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	activeBatches int64

	statsMutex sync.RWMutex
	lastStats  *stats.Statistics
}

// WSMessage is the envelope for websocket progress events.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details []itemErrorDetail `json:"details,omitempty"`
}

type itemErrorDetail struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// NewServer returns a new Server wired to the given optimizer and archiver.
func NewServer(cfg *config.Config, log *logrus.Logger, opt *optimizer.Optimizer, arch *archive.Builder) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		optimizer: opt,
		archiver:  arch,
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/optimize", s.handleOptimize).Methods("POST")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server on the given port and blocks until it stops.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Write timeout must cover a whole batch plus archive streaming.
		ReadTimeout:  s.cfg.RequestTimeout(),
		WriteTimeout: s.cfg.RequestTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting image optimizer server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.statsMutex.RLock()
	last := s.lastStats
	s.statsMutex.RUnlock()

	var summary interface{}
	if last != nil {
		summary = map[string]interface{}{
			"summary":   last.GetSummary(),
			"processed": atomic.LoadInt64(&last.ItemsProcessed),
			"succeeded": atomic.LoadInt64(&last.ItemsSucceeded),
			"failed":    atomic.LoadInt64(&last.ItemsFailed),
			"saved":     stats.FormatBytes(last.BytesSaved()),
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_batches": atomic.LoadInt64(&s.activeBatches),
		"last_batch":     summary,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// Broadcasts come in from every batch worker, but gorilla/websocket
	// permits only one concurrent writer per connection. Holding the write
	// lock for the whole loop serializes them.
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			conn.Close()
			delete(s.wsClients, conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, resp errorResponse) {
	s.writeJSON(w, statusCode, resp)
}
