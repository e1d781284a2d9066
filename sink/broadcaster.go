package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Broadcaster pushes every result as JSON to all connected websocket clients.
// Run must be running for clients to register and for messages to flow.
type Broadcaster struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	dropped    atomic.Uint64
	sent       atomic.Uint64
}

func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, max(buffer, 1)),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			lgr.Logger.Info("websocket client connected", slog.Int("clients", count))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			lgr.Logger.Info("websocket client disconnected", slog.Int("clients", count))

		case message := <-h.broadcast:
			h.write(websocket.TextMessage, message)
			h.sent.Add(1)

		case <-ticker.C:
			h.write(websocket.PingMessage, nil)
		}
	}
}

// write sends to every client, removing those that fail.
func (h *Broadcaster) write(kind int, message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(kind, message); err != nil {
			lgr.Logger.Warn("websocket write failed", slog.Any("error", err))
			delete(h.clients, client)
			client.Close()
		}
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lgr.Logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; reading drives pong handling and close detection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

func (h *Broadcaster) Name() string {
	return "websocket"
}

// Consume never blocks. When the outbound buffer is full the message is dropped.
func (h *Broadcaster) Consume(res model.Result) error {
	message, err := json.Marshal(res)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
	}
	return nil
}

func (h *Broadcaster) Close() error {
	return nil
}

func (h *Broadcaster) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Broadcaster) Dropped() uint64 {
	return h.dropped.Load()
}
