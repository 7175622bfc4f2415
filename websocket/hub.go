package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 10 * 1024 * 1024 // 10MB for base64 audio frames
	sendBuffer     = 256
)

// Hub tracks live interview connections. A session has at most one client;
// a new connection for the same session replaces the old one.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    string
	SessionID string

	// MessageHandler runs on the read goroutine, in arrival order
	MessageHandler func(*Client, Message)
	// OnClose runs once after the read loop exits
	OnClose func(*Client)

	closeOnce sync.Once
	sendMu    sync.RWMutex
	closed    bool
}

// Message is a client to server frame
type Message struct {
	Type   string  `json:"type"` // tts_started, tts_ended, level, pcm, transcript, recognizer_error, end
	Text   string  `json:"text,omitempty"`
	Final  bool    `json:"final,omitempty"`
	Level  float64 `json:"level,omitempty"`
	PCM    string  `json:"pcm,omitempty"` // base64 little-endian PCM16
	Reason string  `json:"reason,omitempty"`
}

// ServerMessage is a server to client frame
type ServerMessage struct {
	Type        string      `json:"type"` // question, state, transcript, feedback, completed, error
	Content     string      `json:"content,omitempty"`
	QuestionID  string      `json:"question_id,omitempty"`
	Index       int         `json:"index"`
	Total       int         `json:"total,omitempty"`
	AudioBase64 string      `json:"audio_base64,omitempty"`
	State       string      `json:"state,omitempty"`
	Restart     bool        `json:"restart_recognizer,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				client.closeSend()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.SessionID]; ok && old != client {
				old.closeSend()
				slog.Info("Replacing live connection", "session_id", client.SessionID)
			}
			h.clients[client.SessionID] = client
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.SessionID]; ok && cur == client {
				delete(h.clients, client.SessionID)
			}
			h.mu.Unlock()
			client.closeSend()
			slog.Info("Client unregistered", "user_id", client.UserID, "session_id", client.SessionID)
		}
	}
}

// Count returns the number of connected sessions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient attaches conn to an interview session
func (h *Hub) RegisterClient(conn *websocket.Conn, userID, sessionID string) *Client {
	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		// hub stopped; the write loop exits right away
		client.closeSend()
	}
	return client
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.Send)
		c.sendMu.Unlock()
	})
}

// SendJSON queues v without blocking. It reports false when the client is
// gone or its buffer is full.
func (c *Client) SendJSON(v interface{}) bool {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal message", "error", err, "session_id", c.SessionID)
		return false
	}

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- b:
		return true
	default:
		slog.Warn("Client send buffer full, dropping message", "session_id", c.SessionID)
		return false
	}
}

// Close asks the write loop to send a close frame and stop
func (c *Client) Close() {
	c.closeSend()
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
		if c.OnClose != nil {
			c.OnClose(c)
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			break
		}
		// any frame proves the peer is alive
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err, "session_id", c.SessionID)
			continue
		}
		if c.MessageHandler != nil {
			c.MessageHandler(c, msg)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			// one JSON document per frame so clients can parse each message directly
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
