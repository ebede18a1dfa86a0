package web

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
)

// Hub pushes status to websocket clients. It is a shutter.Observer and
// broadcasts on every controller notification. Broadcasting never blocks:
// a client that has not taken the previous status misses the update and gets
// the next one.
type Hub struct {
	snapshot func() shutter.Snapshot
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

var _ shutter.Observer = (*Hub)(nil)

type client struct {
	conn *websocket.Conn
	send chan Status
}

func newHub(snapshot func() shutter.Snapshot, logger *zap.Logger) *Hub {
	return &Hub{
		snapshot: snapshot,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

func (h *Hub) OnStateChange(_, _ shutter.State)         { h.broadcast() }
func (h *Hub) OnError(_ string, _ error)                { h.broadcast() }
func (h *Hub) OnRecordingStarted(_ shutter.Destination) { h.broadcast() }
func (h *Hub) OnRecordingStopped(_ shutter.Destination) { h.broadcast() }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast() {
	st := newStatus(h.snapshot())
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- st:
		default:
		}
	}
}

// serve registers conn and pumps status to it until the client goes away.
func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan Status, 8)}
	c.send <- newStatus(h.snapshot())

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case st := <-c.send:
			if err := conn.WriteJSON(st); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
