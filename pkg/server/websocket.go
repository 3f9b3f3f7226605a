package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shouni/gemini-image-studio/pkg/controller"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	addr string
	// sent は最後に送った State.Version。hub.mu で保護する。
	sent uint64
}

// Hub は接続中の WebSocket クライアントに状態のスナップショットを配信します。
// 接続直後に現在の状態を 1 回送り、以降は変更のたびに送ります。
// 既に送ったものより古い Version のスナップショットは送りません。
type Hub struct {
	upgrader websocket.Upgrader
	snapshot func() controller.State

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub は Hub を作成します。snapshot は接続直後に送る状態を返す関数です。
func NewHub(snapshot func() controller.State) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		snapshot: snapshot,
		clients:  make(map[*wsClient]struct{}),
	}
}

// ServeHTTP は接続を WebSocket にアップグレードしてクライアントを登録します。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "WebSocketへのアップグレードに失敗しました", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize), addr: r.RemoteAddr}

	// 登録とスナップショットの取得を同じロック内で行い、その間の変更を取りこぼさない。
	h.mu.Lock()
	st := h.snapshot()
	data, err := json.Marshal(st)
	if err != nil {
		h.mu.Unlock()
		slog.ErrorContext(r.Context(), "状態のシリアライズに失敗しました", "error", err)
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	c.sent = st.Version
	c.send <- data
	n := len(h.clients)
	h.mu.Unlock()

	slog.Info("WebSocketクライアントが接続しました", "remote", c.addr, "clients", n)
	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast は状態をすべてのクライアントに送ります。送信待ちが溢れたクライアントは切断します。
func (h *Hub) Broadcast(st controller.State) {
	data, err := json.Marshal(st)
	if err != nil {
		slog.Error("状態のシリアライズに失敗しました", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if st.Version <= c.sent {
			continue
		}
		select {
		case c.send <- data:
			c.sent = st.Version
		default:
			slog.Warn("送信バッファが一杯のためクライアントを切断します", "remote", c.addr)
			h.removeLocked(c)
		}
	}
}

// ClientCount は接続中のクライアント数を返します。
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close はすべてのクライアントを切断します。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	h.removeLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("WebSocketクライアントが切断しました", "remote", c.addr, "clients", n)
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump はクライアントからのメッセージを読み捨て、切断を検出します。
func (h *Hub) readPump(c *wsClient) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocketが予期せず切断されました", "remote", c.addr, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("WebSocketへの書き込みに失敗しました", "remote", c.addr, "error", err)
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
