package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
	"nav-simulator/internal/view"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// HubMetrics is implemented by the metrics collector; nil disables it.
type HubMetrics interface {
	ClientConnected()
	ClientDisconnected()
}

// Hub fans coordinator snapshots out to websocket viewers. Each viewer gets
// frames rendered for its own 3D preference.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan nav.Snapshot
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu          sync.RWMutex
	systemTheme nav.Theme
	log         *logrus.Logger
	metrics     HubMetrics
}

func NewHub(systemTheme nav.Theme, log *logrus.Logger, m HubMetrics) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		broadcast:   make(chan nav.Snapshot, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		systemTheme: systemTheme,
		log:         log,
		metrics:     m,
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.ClientConnected()
			}
			h.log.WithFields(logrus.Fields{"client": c.id, "clients": count}).Info("viewer connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				h.dropLocked(c)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{"client": c.id, "clients": count}).Info("viewer disconnected")

		case snap := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- snap:
				default:
					h.dropLocked(c)
					h.log.WithField("client", c.id).Warn("dropped slow viewer")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

// Broadcast queues snap for every viewer without blocking the caller.
func (h *Hub) Broadcast(snap nav.Snapshot) {
	select {
	case h.broadcast <- snap:
	default:
		h.log.Debug("broadcast queue full, dropping snapshot")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket viewer.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan nav.Snapshot
	threeD bool
}

// serve registers the client, queues initial, then blocks until the
// connection closes.
func (h *Hub) serve(conn *websocket.Conn, threeD bool, initial nav.Snapshot) {
	c := &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan nav.Snapshot, sendBuffer),
		threeD: threeD,
	}
	c.send <- initial
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

// readPump only detects disconnection and pongs; viewers send nothing.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(view.FrameFor(snap, c.threeD, c.hub.systemTheme)); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.hub.serve(conn, wants3D(r), s.nav.Snapshot())
}
