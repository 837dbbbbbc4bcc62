package dashboard

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"whalesignal/internal/models"
	"whalesignal/logger"
)

const wsWriteTimeout = 5 * time.Second

// setupHub holds the latest trade setup and pushes every new one to the
// connected websocket clients. Only the latest setup is retained.
type setupHub struct {
	mu      sync.RWMutex
	latest  *models.TradeSetup
	updated time.Time
	clients map[*wsClient]struct{}

	upgrader websocket.Upgrader
	log      *logger.Log
}

type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func newSetupHub(log *logger.Log, allowOrigins []string) *setupHub {
	return &setupHub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowOrigins),
		},
		log: log,
	}
}

// originChecker applies the dashboard CORS list to websocket upgrades. An
// empty list or "*" admits every origin; requests without an Origin header
// come from non-browser clients and are always admitted.
func originChecker(allowOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := strings.TrimRight(strings.ToLower(r.Header.Get("Origin")), "/")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// current returns the latest setup and when it was stored.
func (h *setupHub) current() (models.TradeSetup, time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return models.TradeSetup{}, time.Time{}, false
	}
	return *h.latest, h.updated, true
}

func (h *setupHub) update(setup models.TradeSetup) {
	payload, err := json.Marshal(setup)
	if err != nil {
		h.log.WithComponent("dashboard").WithError(err).Warn("failed to encode setup")
		return
	}

	h.mu.Lock()
	h.latest = &setup
	h.updated = time.Now()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.log.WithComponent("dashboard").WithError(err).Debug("dropping websocket client")
			h.remove(c)
		}
	}
}

func (h *setupHub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (h *setupHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// serve upgrades the request, sends the current setup and keeps the
// connection registered until the client goes away.
func (h *setupHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithComponent("dashboard").WithError(err).Debug("websocket upgrade failed")
		return
	}
	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		if payload, err := json.Marshal(latest); err == nil {
			if err := client.write(payload); err != nil {
				h.remove(client)
				return
			}
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(client)
			return
		}
	}
}

func (h *setupHub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}
