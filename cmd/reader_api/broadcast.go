package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

// writeWait bounds a single message write so a stalled client cannot hold up reads.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // collectors connect from other hosts on the LAN
	},
}

// wsHub tracks websocket clients for broadcasting readings.
type wsHub struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]bool
	log       logrus.FieldLogger
	writeWait time.Duration
}

func newWsHub(log logrus.FieldLogger) *wsHub {
	return &wsHub{clients: make(map[*websocket.Conn]bool), log: log, writeWait: writeWait}
}

// serve upgrades the request, sends the latest reading if any and keeps the
// connection registered until the client goes away.
func (h *wsHub) serve(w http.ResponseWriter, r *http.Request, latest *types.Reading) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	h.add(conn)
	if latest != nil {
		h.send(conn, latest.ToJsonBytes())
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *wsHub) broadcast(reading *types.Reading) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	msg := reading.ToJsonBytes()
	for _, client := range clients {
		h.send(client, msg)
	}
}

func (h *wsHub) send(conn *websocket.Conn, msg []byte) {
	// gorilla connections allow one concurrent writer; the hub lock serializes writers.
	h.mu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, msg)
	}
	h.mu.Unlock()
	if err != nil {
		h.remove(conn)
	}
}

func (h *wsHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *wsHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.WithField("remote", conn.RemoteAddr().String()).Info("WebSocket client connected")
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, known := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
	if known {
		h.log.WithField("remote", conn.RemoteAddr().String()).Info("WebSocket client disconnected")
	}
}
