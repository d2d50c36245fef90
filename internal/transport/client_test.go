package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/rickgao/dragonhub/internal/router"
	"github.com/rickgao/dragonhub/internal/routes"
)

// mockWSServer runs handler on every upgraded connection.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = time.Second
	return cfg
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// collect reads n events from client or fails the test.
func collect(t *testing.T, client *Client, n int) []Event {
	t.Helper()

	var received []Event
	timeout := time.After(2 * time.Second)

	for len(received) < n {
		select {
		case ev, ok := <-client.Events():
			if !ok {
				t.Fatalf("connection ended after %d of %d events: %v", len(received), n, client.Err())
			}
			received = append(received, ev)
		case <-timeout:
			t.Fatalf("timeout waiting for events, received %d of %d", len(received), n)
		}
	}
	return received
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name          string
		data          string
		binary        bool
		wantReply     *router.Reply
		wantPublished *routes.Published
	}{
		{
			name: "reply",
			data: `{"context":{"client_callback_name":"cb-1","state":"success"},"data":"pong"}`,
			wantReply: &router.Reply{
				Context: router.ReplyContext{ClientCallbackName: "cb-1", State: router.StateSuccess},
				Data:    "pong",
			},
		},
		{
			name:          "published",
			data:          `{"channel":"room","data":{"n":1}}`,
			wantPublished: &routes.Published{Channel: "room", Data: map[string]any{"n": float64(1)}},
		},
		{
			name: "unrecognized object",
			data: `{"hello":"world"}`,
		},
		{
			name: "plain text",
			data: "hello",
		},
		{
			name:   "binary frame",
			data:   `{"channel":"room"}`,
			binary: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decodeEvent([]byte(tt.data), tt.binary)
			if diff := cmp.Diff(tt.wantReply, ev.Reply); diff != "" {
				t.Errorf("Reply mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantPublished, ev.Published); diff != "" {
				t.Errorf("Published mismatch (-want +got):\n%s", diff)
			}
			if string(ev.Raw) != tt.data {
				t.Errorf("Raw = %s, want %s", ev.Raw, tt.data)
			}
			if ev.Binary != tt.binary {
				t.Errorf("Binary = %v, want %v", ev.Binary, tt.binary)
			}
			if ev.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		})
	}
}

func TestClient_Ping(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	client := ts.dial(t)

	if err := client.Ping(testContext(t)); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestClient_CallKeepsCallbackName(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	client := ts.dial(t)

	callback, err := client.Call(routes.HeartbeatRoute, "ping", map[string]any{router.CallbackKey: "mine"})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if callback != "mine" {
		t.Errorf("Call() callback = %q, want mine", callback)
	}

	// Nobody is waiting on "mine", so the reply surfaces as an event.
	ev := collect(t, client, 1)[0]
	if ev.Reply == nil {
		t.Fatalf("event = %s, want a reply", ev.Raw)
	}
	if ev.Reply.Context.ClientCallbackName != "mine" || ev.Reply.Data != "pong" {
		t.Errorf("Reply = %+v, want callback mine and data pong", *ev.Reply)
	}
}

func TestClient_CallGeneratesCallbackNames(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	client := ts.dial(t)

	first, err := client.Call(routes.HeartbeatRoute, "ping", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	second, err := client.Call(routes.HeartbeatRoute, "ping", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if first == "" || first == second {
		t.Errorf("callbacks = %q, %q, want distinct non-empty names", first, second)
	}

	got := collect(t, client, 2)
	if got[0].Reply.Context.ClientCallbackName != first || got[1].Reply.Context.ClientCallbackName != second {
		t.Errorf("reply callbacks = %q, %q, want %q, %q",
			got[0].Reply.Context.ClientCallbackName, got[1].Reply.Context.ClientCallbackName, first, second)
	}
}

func TestClient_RequestErrorReply(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	client := ts.dial(t)

	reply, err := client.Request(testContext(t), routes.PubSubRoute, "subscribe", nil)
	if !errors.Is(err, ErrCallFailed) {
		t.Fatalf("Request error = %v, want ErrCallFailed", err)
	}
	if reply.Context.State != router.StateError {
		t.Errorf("State = %q, want %q", reply.Context.State, router.StateError)
	}
	if reply.Data != "missing argument: channels" {
		t.Errorf("Data = %v, want missing argument: channels", reply.Data)
	}

	// Handler errors leave the connection usable.
	if err := client.Ping(testContext(t)); err != nil {
		t.Errorf("Ping after error reply failed: %v", err)
	}
}

func TestClient_SubscribePublish(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	alice := ts.dial(t)
	bob := ts.dial(t)
	ctx := testContext(t)

	for _, c := range []*Client{alice, bob} {
		if err := c.Subscribe(ctx, "room"); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	delivered, err := alice.Publish(ctx, "room", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if delivered != 2 {
		t.Errorf("Publish() delivered = %d, want 2", delivered)
	}

	for name, c := range map[string]*Client{"alice": alice, "bob": bob} {
		ev := collect(t, c, 1)[0]
		want := &routes.Published{Channel: "room", Data: map[string]any{"text": "hi"}}
		if diff := cmp.Diff(want, ev.Published); diff != "" {
			t.Errorf("%s event mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestClient_Unsubscribe(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	client := ts.dial(t)
	ctx := testContext(t)

	if err := client.Subscribe(ctx, "a", "b"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := client.Unsubscribe(ctx, "a"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	if diff := cmp.Diff([]string{"b"}, ts.hub.Channels()); diff != "" {
		t.Errorf("Channels() mismatch (-want +got):\n%s", diff)
	}

	delivered, err := client.Publish(ctx, "a", "gone")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if delivered != 0 {
		t.Errorf("Publish() to left channel delivered = %d, want 0", delivered)
	}
}

func TestClient_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	if _, err := Dial(testContext(t), testClientConfig(url), nil, nil); err == nil {
		t.Error("expected Dial to fail against a closed server")
	}
}

func TestClient_Close(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	client := ts.dial(t)

	if err := client.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := client.Call(routes.HeartbeatRoute, "ping", nil); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Call after Close error = %v, want ErrAlreadyClosed", err)
	}

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after Close")
	}
	if _, ok := <-client.Events(); ok {
		t.Error("Events channel should be closed")
	}
	if err := client.Err(); err != nil {
		t.Errorf("Err() after Close = %v, want nil", err)
	}
}

func TestClient_ServerGoesAway(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})

	client, err := Dial(testContext(t), testClientConfig(wsURL(server)), nil, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after server close")
	}
	if !websocket.IsCloseError(client.Err(), websocket.CloseGoingAway) {
		t.Errorf("Err() = %v, want going-away close error", client.Err())
	}

	_, err = client.Request(testContext(t), routes.HeartbeatRoute, "ping", nil)
	if err == nil {
		t.Error("Request on ended connection should fail")
	}
}

func TestClient_AnswersServerPing(t *testing.T) {
	pongReceived := make(chan string, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.SetPongHandler(func(data string) error {
			pongReceived <- data
			return nil
		})
		conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(time.Second))
		// Reading drives the pong handler.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	})

	client, err := Dial(testContext(t), testClientConfig(wsURL(server)), nil, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	select {
	case data := <-pongReceived:
		if data != "keepalive" {
			t.Errorf("pong data = %q, want keepalive", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for pong")
	}
}

func TestClient_ReadTimeout(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // silent until the client gives up
	})

	cfg := testClientConfig(wsURL(server))
	cfg.ReadTimeout = 50 * time.Millisecond
	client, err := Dial(testContext(t), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle connection to time out")
	}
	if client.Err() == nil {
		t.Error("Err() = nil, want timeout error")
	}
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	if clientCfg.ReadTimeout != 60*time.Second {
		t.Errorf("ReadTimeout = %v, want 60s", clientCfg.ReadTimeout)
	}
	if clientCfg.BufferSize != 256 {
		t.Errorf("BufferSize = %d, want 256", clientCfg.BufferSize)
	}

	cfg := DefaultConfig()
	if cfg.Path != "/ws" {
		t.Errorf("Path = %q, want /ws", cfg.Path)
	}
	if cfg.SendBuffer != 1024 {
		t.Errorf("SendBuffer = %d, want 1024", cfg.SendBuffer)
	}
}
