package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startHubServer upgrades every request and registers it under the "session" query value
func startHubServer(t *testing.T, hub *Hub, onMessage func(*Client, Message)) (*httptest.Server, chan *Client) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	clients := make(chan *Client, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := hub.RegisterClient(conn, "user-1", r.URL.Query().Get("session"))
		client.MessageHandler = onMessage
		go client.WritePump()
		go client.ReadPump()
		clients <- client
	}))
	t.Cleanup(srv.Close)
	return srv, clients
}

func dial(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	received := make(chan Message, 1)
	srv, clients := startHubServer(t, hub, func(c *Client, m Message) {
		received <- m
		c.SendJSON(ServerMessage{Type: "transcript", Content: m.Text})
	})

	conn := dial(t, srv, "s1")
	<-clients
	waitFor(t, func() bool { return hub.Count() == 1 })

	if err := conn.WriteJSON(Message{Type: "transcript", Text: "hello", Final: true}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-received:
		if m.Type != "transcript" || m.Text != "hello" || !m.Final {
			t.Errorf("server got %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not handled")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var reply ServerMessage
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("reply is not a single JSON document: %v", err)
	}
	if reply.Type != "transcript" || reply.Content != "hello" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestHubReplacesConnectionForSameSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	srv, clients := startHubServer(t, hub, nil)

	first := dial(t, srv, "s1")
	oldClient := <-clients
	dial(t, srv, "s1")
	<-clients

	// the replaced connection gets a close frame
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
	waitFor(t, func() bool { return !oldClient.SendJSON(ServerMessage{Type: "state"}) })
	if hub.Count() != 1 {
		t.Errorf("count = %d, want 1", hub.Count())
	}
}

func TestHubStopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv, clients := startHubServer(t, hub, nil)
	conn := dial(t, srv, "s1")
	client := <-clients
	waitFor(t, func() bool { return hub.Count() == 1 })

	cancel()
	waitFor(t, func() bool { return hub.Count() == 0 })
	if client.SendJSON(ServerMessage{Type: "state"}) {
		t.Error("send succeeded after hub stopped")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close")
	}

	// registering after shutdown must not block
	done := make(chan struct{})
	go func() {
		hub.RegisterClient(nil, "u", "s2")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RegisterClient blocked after shutdown")
	}
}
