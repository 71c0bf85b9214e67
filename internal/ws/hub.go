package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"chatguard/internal/httputil"
	"chatguard/internal/metrics"
	"chatguard/internal/models"
	"chatguard/internal/service"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// MessageHandler receives raw sendMessage payloads from connections.
type MessageHandler interface {
	HandleIncoming(ctx context.Context, raw json.RawMessage)
}

// Hub tracks live websocket connections and fans canonical records out to
// all of them. Membership changes are the only mutation to the connection
// set; a connection that drops is removed and never re-added (a new physical
// connection gets a new entry).
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	handler MessageHandler
	origins []string
	logger  *logrus.Logger
}

func NewHub(handler MessageHandler, origins []string, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		handler: handler,
		origins: origins,
		logger:  logger,
	}
}

// SetHandler wires the inbound message handler. The hub and the pipeline
// reference each other (hub delegates inbound, pipeline broadcasts back), so
// one side is attached after construction. Must be called before the hub
// accepts connections.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. The inbound origin allowlist is enforced by the upgrade.
func (h *Hub) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: h.origins,
		})
		if err != nil {
			h.logger.WithError(err).WithField(service.LogFieldRemoteIP, httputil.GetClientIP(r)).
				Warn("Websocket upgrade rejected")
			return
		}

		c := newClient(h, conn, httputil.GetClientIP(r))
		h.register(c)
		defer h.unregister(c)

		c.run(r.Context())
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetGauge("connected_clients", float64(count), nil, "Currently connected websocket clients")
	h.logger.WithFields(logrus.Fields{
		"client_id":              c.id,
		service.LogFieldRemoteIP: c.remoteIP,
	}).Info("Client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	c.close()

	metrics.SetGauge("connected_clients", float64(count), nil, "Currently connected websocket clients")
	h.logger.WithField("client_id", c.id).Info("Client disconnected")
}

// Broadcast delivers one canonical record to every currently tracked
// connection. Delivery is best-effort: a full or dead client is skipped and
// never blocks the others or the pipeline that triggered the fan-out.
func (h *Hub) Broadcast(ctx context.Context, msg *models.ChatMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			metrics.IncrementCounter("delivery_failures", nil, "Broadcast writes dropped for a single client")
			h.logger.WithFields(logrus.Fields{
				"client_id":               c.id,
				service.LogFieldMessageID: msg.ID,
			}).Warn("Client send buffer full, dropping delivery")
		}
	}
}

// ClientCount returns the number of tracked connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
