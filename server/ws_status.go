package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"weradio/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusHub pushes the station status to every connected websocket client
// on the publish cadence, so UIs do not need to poll /status.
type StatusHub struct {
	api *APIHandler

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewStatusHub creates an empty hub.
func NewStatusHub(api *APIHandler) *StatusHub {
	return &StatusHub{
		api:     api,
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWS upgrades the connection and registers the client.
func (hub *StatusHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket升级失败", logger.ErrorField(err))
		return
	}

	hub.mu.Lock()
	hub.clients[conn] = true
	count := len(hub.clients)
	hub.mu.Unlock()
	logger.Info("websocket客户端接入", logger.Int("clients", count))

	// 读取泵只用于感知断开
	go func() {
		defer hub.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (hub *StatusHub) drop(conn *websocket.Conn) {
	hub.mu.Lock()
	if _, ok := hub.clients[conn]; ok {
		delete(hub.clients, conn)
		conn.Close()
	}
	hub.mu.Unlock()
}

// Run broadcasts status updates until ctx is done.
func (hub *StatusHub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.closeAll()
			return
		case <-ticker.C:
			hub.broadcast()
		}
	}
}

func (hub *StatusHub) broadcast() {
	hub.mu.Lock()
	empty := len(hub.clients) == 0
	hub.mu.Unlock()
	if empty {
		return
	}

	status := hub.api.localStatus()

	hub.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(hub.clients))
	for conn := range hub.clients {
		conns = append(conns, conn)
	}
	hub.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteJSON(status); err != nil {
			hub.drop(conn)
		}
	}
}

func (hub *StatusHub) closeAll() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for conn := range hub.clients {
		conn.Close()
	}
	hub.clients = make(map[*websocket.Conn]bool)
}
