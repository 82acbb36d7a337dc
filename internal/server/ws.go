package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/dactilo/internal/app"
	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/metrics"
)

const (
	clientSendBuffer = 32
	writeTimeout     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub streams recognized letters, words and shortcuts to WebSocket
// clients as JSON. Slow clients miss events instead of stalling delivery.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewEventHub creates an EventHub. m may be nil.
func NewEventHub(m *metrics.Metrics) *EventHub {
	return &EventHub{
		clients: make(map[*hubClient]struct{}),
		metrics: m,
		log:     logging.WithComponent("hub"),
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)

	// Reads only detect the close; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
}

func (h *EventHub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// HandleEvent broadcasts rec to every connected client.
func (h *EventHub) HandleEvent(rec app.Record) {
	msg, err := json.Marshal(rec)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.metrics.RecordDropped("websocket")
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
