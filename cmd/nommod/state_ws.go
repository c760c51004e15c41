package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket
// ============================================================================
//
// Desktop widgets and OSD overlays subscribe here to mirror the sink level
// the wheel is driving. A Hub fans serialized frames out to connected
// clients, each client gets its own write pump, and a broadcaster goroutine
// turns reducer broadcasts into wire frames.
//
// Two rules keep this layer honest:
//   - It never reads DaemonState directly. The connect-time snapshot goes
//     through the event loop like everything else.
//   - A client that stops draining its queue gets dropped, not waited on.
//
// Frames are JSON text with a {type, ts, data} envelope; the first frame on
// every connection is "state_init" carrying a StateSnapshot.
// ============================================================================

// wsLevelChangedData is the JSON `data` payload for "level_changed".
type wsLevelChangedData struct {
	Percent uint8 `json:"percent"`
	Muted   bool  `json:"muted"`
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// broadcast carries frames that are already serialized JSON.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf sizes each client's outbound queue. Zero picks a default.
	SendBuf int

	// BroadcastBuf sizes the hub's inbound queue. Zero picks a default.
	BroadcastBuf int
}

// NewHub builds a hub; nothing happens until Run is started.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run serves register/unregister/broadcast traffic until ctx is canceled,
// then closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("state ws hub running")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("state ws hub shutting down")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("state ws client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "connection closed")

		case msg := <-h.broadcast:
			// Removal mutates the clients map, so collect stalled clients
			// while ranging and drop them once the lock is released.
			var stalled []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					stalled = append(stalled, c)
				}
			}
			h.mu.Unlock()

			for _, c := range stalled {
				h.removeClient(c, "send queue full")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// writePump exits when send closes. The channel may already be
		// closed if removal races the shutdown path, hence the recover.
		safeCloseChan(c.send)

		h.logger.Info("state ws client dropped", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

// BroadcastBytes queues a serialized frame for fanout without blocking.
// A full hub queue drops the frame; the next level change supersedes it.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("state ws hub queue full, frame dropped", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient wraps a websocket connection with its outbound queue.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus unwraps a websocket close error into its code and text.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// logPumpExit records why a pump stopped, quiet about the expected
// already-closed case.
func (c *Client) logPumpExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("state ws "+pump+" closed", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("state ws "+pump+" stopped", "remote_addr", c.remoteAddr, "error", err)
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. A closed send channel means the hub dropped
// this client.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logPumpExit("writer", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logPumpExit("writer", err)
				return
			}
		}
	}
}

// readPump exists to notice disconnects and service control frames; the
// state stream is one-way, so inbound payloads are discarded. On read
// error it hands the client back to the hub for removal.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, _, err := c.conn.ReadMessage()
		if err != nil {
			c.logPumpExit("reader", err)

			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler and wiring
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub *Hub

	// events feeds the connect-time snapshot request into the daemon loop.
	events chan<- Event
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer assembles the state WS pieces. The caller registers the handler
// on a mux and starts Hub().Run and RunBroadcaster as goroutines.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	hub := NewHub(logger, cfg.Hub)
	return &Server{
		logger: logger,
		hub:    hub,
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register mounts the WS handler at path.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	// The daemon serves localhost tooling; origin checks belong to whatever
	// fronts it if it is ever exposed further.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades the connection, registers it with the hub and
// delivers the state_init frame.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("state ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register before anything else so broadcasts can reach the client.
	s.hub.register <- client

	// The pumps must outlive this handler. net/http cancels r.Context()
	// on return, which would tear the connection down with an abnormal
	// closure, so the pumps run on a background context and end via hub
	// removal or socket errors instead.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	// The snapshot round-trip does use r.Context(): if the client hangs
	// up mid-handshake there is nobody left to deliver state_init to.
	if s.events != nil {
		reply := make(chan StateSnapshot, 1)

		select {
		case <-r.Context().Done():
			return
		case s.events <- RequestStateSnapshot{Reply: reply}:
		}

		waitCtx := r.Context()
		if _, has := r.Context().Deadline(); !has {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(r.Context(), 1*time.Second)
			defer cancel()
		}

		select {
		case <-waitCtx.Done():
			if !errors.Is(waitCtx.Err(), context.Canceled) {
				s.logger.Warn("state ws snapshot request timed out", "error", waitCtx.Err())
			}
			return

		case snap := <-reply:
			now := time.Now().UTC()
			initMsg, mErr := json.Marshal(envelope{
				Type: "state_init",
				Ts:   &now,
				Data: snap,
			})
			if mErr == nil {
				// A client that cannot even take state_init is not
				// worth keeping.
				select {
				case client.send <- initMsg:
				default:
					s.hub.unregister <- client
					return
				}
			}
		}
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster converts reducer broadcasts into wire frames and hands
// them to the hub. Wheel presses are discrete and infrequent, so every
// level change goes out as its own frame with no coalescing.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-src:
			if !ok {
				logger.Info("state ws broadcaster stopping, source closed")
				return
			}

			typ, data, at, known := convertBroadcast(b)
			if !known {
				continue
			}

			ts := at
			if ts.IsZero() {
				ts = time.Now().UTC()
			}

			msg, err := json.Marshal(envelope{
				Type: typ,
				Ts:   &ts,
				Data: data,
			})
			if err != nil {
				logger.Warn("state ws frame marshal failed", "error", err, "type", typ)
				continue
			}

			hub.BroadcastBytes(msg)
		}
	}
}

func convertBroadcast(b StateBroadcast) (typ string, data any, at time.Time, ok bool) {
	switch ev := b.(type) {
	case BroadcastLevelChanged:
		return "level_changed", wsLevelChangedData{
			Percent: ev.Level.Percent(),
			Muted:   ev.Level.IsMuted(),
		}, ev.At, true

	default:
		return "", nil, time.Time{}, false
	}
}
