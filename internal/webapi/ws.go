package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/logging"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingInterval    = pongWait * 9 / 10
	maxPayloadBytes = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *logging.Logger
}

// Hub fans values of type T, published on a source bus.Bus[T], out to every
// WebSocket client connected on one route as JSON text frames. It optionally
// also accepts inbound client frames via OnMessage, for routes where the
// browser reports state back (the YouTube overlay's position ticks).
type Hub[T any] struct {
	source *bus.Bus[T]
	auth   Authenticator
	log    *logging.Logger

	onMessage func(clientID string, raw []byte)

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub constructs a Hub reading from source. A nil authn accepts every
// connection, matching the teacher's allowAllAuthenticator default.
func NewHub[T any](source *bus.Bus[T], authn Authenticator, log *logging.Logger) *Hub[T] {
	if authn == nil {
		authn = allowAllAuthenticator{}
	}
	if log == nil {
		log = logging.NewTestLogger()
	}
	return &Hub[T]{
		source:  source,
		auth:    authn,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// OnMessage registers a callback invoked with every inbound client text
// frame. Only one callback is kept; a later call replaces the former.
func (h *Hub[T]) OnMessage(fn func(clientID string, raw []byte)) {
	h.onMessage = fn
}

// ServeHTTP upgrades the request to a WebSocket connection and registers it
// with the hub.
func (h *Hub[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.RemoteAddr
	if h.auth != nil {
		subject, err := h.auth.Authenticate(r)
		if err != nil {
			h.log.Warn("rejecting websocket connection: authentication failed", logging.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if subject != "" {
			clientID = subject
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", logging.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		id:   clientID,
		log:  h.log.With(logging.String("client_id", clientID)),
	}
	conn.SetReadLimit(maxPayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.register(client)
	go h.readPump(client)
	go h.writePump(client)
}

func (h *Hub[T]) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub[T]) deregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub[T]) readPump(c *wsClient) {
	defer func() {
		h.deregister(c)
		_ = c.conn.Close()
	}()
	for {
		messageType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected websocket close", logging.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if h.onMessage != nil {
			h.onMessage(c.id, msg)
		}
	}
}

func (h *Hub[T]) writePump(c *wsClient) {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pingTicker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Error("write error", logging.Error(err))
				h.deregister(c)
				return
			}
		case <-pingTicker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("ping failure", logging.Error(err))
				h.deregister(c)
				return
			}
		}
	}
}

// Run subscribes to the hub's source bus and fans every published value out
// to connected clients as JSON, until ctx is done or the bus is closed.
func (h *Hub[T]) Run(ctx context.Context) {
	reader := h.source.Subscribe(32)
	defer reader.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-reader.Messages():
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("failed to marshal broadcast payload", logging.Error(err))
				continue
			}
			h.broadcast(payload)
		}
	}
}

func (h *Hub[T]) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// ClientCount reports how many clients are currently connected, used by the
// readiness handler.
func (h *Hub[T]) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
