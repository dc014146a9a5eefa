package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhifu/donation-dashboard/services"
	"github.com/zhifu/donation-dashboard/utils"
)

const (
	cleanupInterval = 30 * time.Second
	writeWait       = 10 * time.Second
	maxMessageSize  = 512
	sendBufferSize  = 8
)

// wsCommand is sent by clients: {"action":"refresh"|"next"|"prev"}.
type wsCommand struct {
	Action string `json:"action"`
}

type wsMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsClient is one connected dashboard. Only writePump writes data frames;
// the hub pings through WriteControl, which gorilla allows concurrently.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	session *services.Session
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
}

// Hub WebSocket连接管理
type Hub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	stop       chan struct{}
	stopOnce   sync.Once
	mutex      sync.Mutex
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		stop:       make(chan struct{}),
		log:        log.With().Str("component", "websocket").Logger(),
	}
}

// Run 运行WebSocket管理循环
func (h *Hub) Run() {
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Info().Str("conn_id", client.id).Int("clients", count).Msg("client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Info().Str("conn_id", client.id).Int("clients", count).Msg("client disconnected")

		case <-cleanupTicker.C:
			h.cleanupInvalidConnections()

		case <-h.stop:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop closes every connection and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) add(client *wsClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) remove(client *wsClient) {
	select {
	case h.unregister <- client:
	case <-h.stop:
		client.close()
	}
}

// cleanupInvalidConnections 清理无效的WebSocket连接
// Pings run outside the lock so a slow peer does not block registration.
func (h *Hub) cleanupInvalidConnections() {
	h.mutex.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	var invalid []*wsClient
	for _, client := range clients {
		deadline := time.Now().Add(writeWait)
		if err := client.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			invalid = append(invalid, client)
		}
	}
	if len(invalid) == 0 {
		return
	}

	h.mutex.Lock()
	removed := 0
	for _, client := range invalid {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			client.close()
			removed++
		}
	}
	count := len(h.clients)
	h.mutex.Unlock()

	h.log.Info().Int("removed", removed).Int("clients", count).Msg("cleaned up invalid connections")
}

// close cancels in-flight fetches of the client and drops the connection.
func (c *wsClient) close() {
	c.cancel()
	c.conn.Close()
}

func (c *wsClient) writePump() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *wsClient) enqueue(msg wsMessage) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal message")
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}

// refresh refetches in the background; an older refresh finishing late is
// dropped by the session.
func (c *wsClient) refresh() {
	go func() {
		snapshot, applied := c.session.Refresh(c.ctx)
		if applied {
			c.enqueue(wsMessage{Type: "dashboard", Data: snapshot})
		}
	}()
}

func (c *wsClient) handle(cmd wsCommand) {
	switch cmd.Action {
	case "refresh":
		c.refresh()
	case "next":
		c.enqueue(wsMessage{Type: "dashboard", Data: c.session.NextPage()})
	case "prev":
		c.enqueue(wsMessage{Type: "dashboard", Data: c.session.PrevPage()})
	default:
		c.enqueue(wsMessage{Type: "error", Error: "unknown action " + cmd.Action})
	}
}

// WebSocketHandler 处理WebSocket连接
func (ar *APIRoutes) WebSocketHandler(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conn, err := ar.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ar.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	id := utils.GenerateConnID()
	session := ar.dashboard.NewSession(userID)
	client := &wsClient{
		id:      id,
		conn:    conn,
		session: session,
		send:    make(chan []byte, sendBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		log:     ar.log.With().Str("conn_id", id).Str("user_id", session.UserID()).Logger(),
	}

	if !ar.hub.add(client) {
		client.close()
		return
	}
	defer ar.hub.remove(client)

	go client.writePump()
	client.refresh()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			client.enqueue(wsMessage{Type: "error", Error: "invalid message"})
			continue
		}
		client.handle(cmd)
	}
}
