package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	sendBufferSize = 16
)

// ErrSessionClosed is returned by Send once the session's socket is gone.
var ErrSessionClosed = errors.New("preview session closed")

// Update is pushed to the browser after a refetch.
type Update struct {
	HTML    string `json:"html"`
	Version string `json:"version,omitempty"`
}

// SessionHandler starts the server side of a preview session when its
// socket connects. send pushes an update to the browser. The returned stop
// function runs when the socket closes.
type SessionHandler func(ctx context.Context, sessionID string, send func(Update) error) (stop func(), err error)

// Bridge connects preview pages to the server over a websocket. Events the
// page forwards from the editor are published to the hub under the page's
// session id.
type Bridge struct {
	hub      *Hub
	handler  SessionHandler
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]int
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithSessionHandler sets the handler run for every connected session.
func WithSessionHandler(h SessionHandler) BridgeOption {
	return func(b *Bridge) {
		b.handler = h
	}
}

// WithCheckOrigin replaces the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) BridgeOption {
	return func(b *Bridge) {
		b.upgrader.CheckOrigin = fn
	}
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a Bridge publishing to hub.
func NewBridge(hub *Hub, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: slog.Default(),
		conns:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connections returns the number of open sockets.
func (b *Bridge) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.conns {
		n += c
	}
	return n
}

// ServeHTTP upgrades the request to a websocket for the session named by
// the "session" query parameter.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WarnContext(r.Context(), "websocket upgrade failed", "session", sessionID, "error", err)
		return
	}

	c := &client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		logger:    b.logger.With("session", sessionID),
	}

	b.track(sessionID, 1)
	defer b.track(sessionID, -1)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	stop := func() {}
	if b.handler != nil {
		s, err := b.handler(ctx, sessionID, c.push)
		if err != nil {
			c.logger.Warn("preview session rejected", "error", err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown session"),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}
		stop = s
	}

	go c.writePump()
	c.readPump(b.hub)

	stop()
	c.logger.Debug("preview session closed")
}

func (b *Bridge) track(sessionID string, delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[sessionID] += delta
	if b.conns[sessionID] <= 0 {
		delete(b.conns, sessionID)
	}
}

type client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	logger    *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) push(u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "failed to encode preview update")
	}

	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrSessionClosed
	default:
		return errors.New("preview update buffer full")
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump publishes every event the page forwards until the socket closes.
func (c *client) readPump(hub *Hub) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var ev ContentSavedEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Debug("ignoring malformed preview message", "error", err)
			continue
		}
		n := hub.Publish(c.sessionID, ev)
		c.logger.Debug("content saved", "contentLink", ev.ContentLink, "subscribers", n)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
