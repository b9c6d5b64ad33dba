package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fawkes-platform/smart-alerting/internal/metrics"
	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// WebSocketHandler streams routed alert groups to connected dashboards. It
// implements the processor's RoutedListener so the pipeline pushes groups
// here after routing.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.RWMutex
	clients map[string]chan *models.AlertGroup
}

func NewWebSocketHandler(log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			// TODO: tighten in prod (check Origin against CORS config)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  log,
		clients: make(map[string]chan *models.AlertGroup),
	}
}

// GroupRouted fans a routed group out to every connected client without
// blocking the pipeline; slow clients miss updates.
func (h *WebSocketHandler) GroupRouted(group *models.AlertGroup) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- group:
		default:
		}
	}
}

// HandleGroupsStream handles GET /api/v1/stream/groups.
func (h *WebSocketHandler) HandleGroupsStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := generateClientID()
	updates := make(chan *models.AlertGroup, 16)

	h.mu.Lock()
	h.clients[clientID] = updates
	h.mu.Unlock()
	metrics.ActiveWebSocketConnections.Inc()
	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.ActiveWebSocketConnections.Dec()
	}()

	h.logger.Info("WebSocket client connected", "client_id", clientID)

	// basic heartbeat so idle proxies don't drop us
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case group := <-updates:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(map[string]interface{}{
				"type":      "group_routed",
				"data":      group,
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				h.logger.Error("WebSocket write failed", "client_id", clientID, "error", err)
				return
			}

		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(map[string]interface{}{
				"type": "heartbeat",
				"data": map[string]any{"ts": time.Now().UnixMilli()},
			}); err != nil {
				return
			}

		case <-c.Request.Context().Done():
			return
		}
	}
}

func generateClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "client-" + hex.EncodeToString([]byte(time.Now().Format("150405.000")))
	}
	return "client-" + hex.EncodeToString(b)
}
