package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// Write deadline for pushes to dashboard clients
const liveWriteWait = 10 * time.Second

// LiveHub pushes every accepted sample to connected dashboard clients over
// WebSocket, replacing a polling loop on /latest. Broadcast is best-effort:
// a client that cannot keep up is dropped.
type LiveHub struct {
	upgrader       websocket.Upgrader
	logger         zerolog.Logger
	allowedOrigins []string
	mutex          sync.Mutex
	clients        map[*websocket.Conn]struct{}
}

// NewLiveHub creates a new hub for dashboard push feeds
func NewLiveHub(logger zerolog.Logger, allowedOrigins ...string) *LiveHub {
	h := &LiveHub{
		logger:         logger,
		allowedOrigins: allowedOrigins,
		clients:        make(map[*websocket.Conn]struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *LiveHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	if len(h.allowedOrigins) == 0 {
		h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: no allowed origins configured")
		return false
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// ServeHTTP handles WebSocket connection requests from dashboards
func (h *LiveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info().Str("remote", conn.RemoteAddr().String()).Int("clients", count).Msg("Dashboard connected")

	// The feed is push-only; the read loop exists to observe the close
	go h.readLoop(conn)
}

// readLoop discards inbound messages and unregisters the client on close
func (h *LiveHub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// Broadcast pushes a sample to every connected client. Clients whose write
// fails or times out are dropped.
func (h *LiveHub) Broadcast(sample *models.Sample) {
	payload, err := json.Marshal(sample)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal sample for broadcast")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Dropping slow dashboard client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount returns the number of connected dashboard clients
func (h *LiveHub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// remove unregisters a client connection
func (h *LiveHub) remove(conn *websocket.Conn) {
	conn.Close()

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Dashboard disconnected")
	}
}
