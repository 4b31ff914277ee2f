package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"creaturenet/logging"
)

// Spectator 负责发送（写）数据到观战端的轻量包装
type Spectator struct {
	ID   string
	ws   *websocket.Conn
	send chan []byte
}

func newSpectator(ws *websocket.Conn) *Spectator {
	return &Spectator{
		ID:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// enqueue 将要发送的帧压入队列（非阻塞，满则丢弃）
func (c *Spectator) enqueue(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃新帧（防止阻塞广播）
		return false
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *Spectator) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 观战端只读；读循环仅用于感知断开与响应 pong
func (c *Spectator) readPump(hub *SpectatorHub) {
	defer c.ws.Close()
	defer hub.remove(c.ID)
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Log.Debugw("spectator read error", "spectator", c.ID, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// SpectatorHub 管理所有观战连接，把每次广播的载荷原样转发为文本帧
type SpectatorHub struct {
	mu      sync.RWMutex
	conns   map[string]*Spectator
	metrics *Metrics

	upgrader websocket.Upgrader
}

// NewSpectatorHub 创建观战中心
func NewSpectatorHub(metrics *Metrics) *SpectatorHub {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &SpectatorHub{
		conns:   make(map[string]*Spectator),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// 演示环境：允许所有来源（生产环境需严格限制）
				return true
			},
		},
	}
}

// Publish 实现 Publisher；在读锁内投递，保证不会写入已关闭的队列
func (h *SpectatorHub) Publish(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		if !c.enqueue(payload) {
			h.metrics.IncSpectatorDrop()
		}
	}
}

// Count 当前观战连接数
func (h *SpectatorHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *SpectatorHub) add(c *Spectator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

// remove 移除并关闭发送队列以结束写协程
func (h *SpectatorHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[id]; ok {
		delete(h.conns, id)
		close(c.send)
		logging.Log.Infow("spectator left", "spectator", id)
	}
}

// Close 断开所有观战连接
func (h *SpectatorHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		delete(h.conns, id)
		close(c.send)
	}
}

// HandleWS WebSocket 接入：GET /ws
func (h *SpectatorHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newSpectator(ws)
	h.add(c)
	logging.Log.Infow("spectator joined", "spectator", c.ID, "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump(h)
}
