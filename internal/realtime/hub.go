// Package realtime streams catalog snapshots to WebSocket clients.
//
// Each client is bound to a role when it connects and only ever receives
// snapshots projected for that role, so staff connections never carry
// purchase prices. The hub also implements notify.Notifier and forwards
// notices to every client.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"invoiceflow/internal/catalog"
	"invoiceflow/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
	noticeBuffer   = 64
)

// Event types sent to clients.
const (
	EventSnapshot = "snapshot"
	EventNotice   = "notice"
)

type snapshotEvent struct {
	Type     string                 `json:"type"`
	Products []catalog.ExportRecord `json:"products"`
}

type noticeEvent struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Client is one connected stream consumer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	role model.Role
	send chan []byte
}

// Hub tracks connected clients and fans catalog snapshots out to them.
type Hub struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	snapshots  chan []model.Product
	notices    chan []byte
	done       chan struct{}

	// Owned by Run.
	clients map[*Client]bool
	latest  []model.Product
	loaded  bool

	count     atomic.Int64
	onClients func(int)
}

// Option configures a Hub.
type Option func(*Hub)

// WithClientGauge reports the client count every time it changes.
func WithClientGauge(fn func(int)) Option {
	return func(h *Hub) { h.onClients = fn }
}

// WithCheckOrigin replaces the default allow-all origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub creates a Hub. Run must be started before clients connect.
func NewHub(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: logger.With().Str("component", "realtime").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		snapshots:  make(chan []model.Product, 1),
		notices:    make(chan []byte, noticeBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run is the hub event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info().Msg("stream hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.clientsChanged()
			h.logger.Info().Str("role", string(client.role)).Int("total", len(h.clients)).Msg("stream client connected")
			if h.loaded {
				if msg, err := encodeSnapshot(h.latest, client.role); err == nil {
					h.deliver(client, msg)
				}
			}

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.Info().Int("total", len(h.clients)).Msg("stream client disconnected")
			}

		case products := <-h.snapshots:
			h.latest = products
			h.loaded = true
			encoded := make(map[model.Role][]byte)
			for client := range h.clients {
				msg, ok := encoded[client.role]
				if !ok {
					var err error
					msg, err = encodeSnapshot(products, client.role)
					if err != nil {
						h.logger.Error().Err(err).Msg("failed to encode snapshot")
						continue
					}
					encoded[client.role] = msg
				}
				h.deliver(client, msg)
			}

		case msg := <-h.notices:
			for client := range h.clients {
				h.deliver(client, msg)
			}
		}
	}
}

// Publish queues a snapshot for broadcast. It never blocks; a snapshot not
// yet picked up is replaced by the newer one.
func (h *Hub) Publish(products []model.Product) {
	for {
		select {
		case h.snapshots <- products:
			return
		default:
		}
		select {
		case <-h.snapshots:
		default:
		}
	}
}

// NotifyError broadcasts an error notice.
func (h *Hub) NotifyError(message string) {
	h.notice("error", message)
}

// NotifySuccess broadcasts a success notice.
func (h *Hub) NotifySuccess(message string) {
	h.notice("success", message)
}

func (h *Hub) notice(level, message string) {
	msg, err := json.Marshal(noticeEvent{Type: EventNotice, Level: level, Message: message})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode notice")
		return
	}
	select {
	case h.notices <- msg:
	default:
		h.logger.Warn().Str("message", message).Msg("notice dropped, hub busy")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// ServeWS upgrades the request and registers a client for role.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, role model.Role) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, role: role, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// deliver queues msg for a client, dropping clients that cannot keep up.
func (h *Hub) deliver(client *Client, msg []byte) {
	select {
	case client.send <- msg:
	default:
		h.logger.Warn().Str("role", string(client.role)).Msg("stream client too slow, dropping")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.clientsChanged()
}

func (h *Hub) clientsChanged() {
	n := len(h.clients)
	h.count.Store(int64(n))
	if h.onClients != nil {
		h.onClients(n)
	}
}

func encodeSnapshot(products []model.Product, role model.Role) ([]byte, error) {
	return json.Marshal(snapshotEvent{
		Type:     EventSnapshot,
		Products: catalog.Project(products, role),
	})
}

// readPump drains the connection so control frames are processed. Clients
// do not send commands.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Msg("unexpected stream close")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
