package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/dragonhub/internal/normalize"
	"github.com/rickgao/dragonhub/internal/router"
	"github.com/rickgao/dragonhub/internal/routes"
)

// Event is one frame pushed by the server that no Request was waiting for.
// At most one of Reply and Published is set.
type Event struct {
	Reply      *router.Reply
	Published  *routes.Published
	Raw        []byte
	Binary     bool
	ReceivedAt time.Time
}

// Client speaks the route/verb protocol over a single WebSocket connection.
type Client struct {
	cfg    ClientConfig
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	seq     atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan router.Reply // callback name → waiter
	err     error

	events    chan Event
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to cfg.URL. header is sent with the handshake and may be nil.
func Dial(ctx context.Context, cfg ClientConfig, header http.Header, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		logger:  logger.With("url", cfg.URL),
		pending: make(map[string]chan router.Reply),
		events:  make(chan Event, cfg.BufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	// The server pings; every ping or frame pushes the idle deadline out.
	c.extendDeadline()
	conn.SetPingHandler(func(data string) error {
		c.extendDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	go c.readLoop()

	c.logger.Debug("websocket connected")
	return c, nil
}

func (c *Client) extendDeadline() {
	if c.cfg.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

// Call sends verb to route with args and returns the callback name the
// server will echo in its reply. A callback name already present in args
// is kept.
func (c *Client) Call(route, verb string, args map[string]any) (string, error) {
	msg := make(map[string]any, len(args)+3)
	for k, v := range args {
		msg[k] = v
	}
	msg[router.RouteKey] = route
	msg[router.VerbKey] = verb

	callback := normalize.String(msg, router.CallbackKey)
	if callback == "" {
		callback = c.nextCallback()
		msg[router.CallbackKey] = callback
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode %s.%s: %w", route, verb, err)
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		return "", err
	}
	return callback, nil
}

// Request is Call followed by a wait for the matching reply. An error
// reply is returned together with an error wrapping ErrCallFailed.
func (c *Client) Request(ctx context.Context, route, verb string, args map[string]any) (router.Reply, error) {
	callback := c.nextCallback()
	wait := make(chan router.Reply, 1)

	c.mu.Lock()
	c.pending[callback] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, callback)
		c.mu.Unlock()
	}()

	withCallback := make(map[string]any, len(args)+1)
	for k, v := range args {
		withCallback[k] = v
	}
	withCallback[router.CallbackKey] = callback

	if _, err := c.Call(route, verb, withCallback); err != nil {
		return router.Reply{}, err
	}

	select {
	case reply := <-wait:
		return checkReply(route, verb, reply)
	case <-ctx.Done():
		return router.Reply{}, ctx.Err()
	case <-c.done:
		select {
		case reply := <-wait:
			return checkReply(route, verb, reply)
		default:
		}
		if err := c.Err(); err != nil {
			return router.Reply{}, err
		}
		return router.Reply{}, ErrAlreadyClosed
	}
}

func checkReply(route, verb string, reply router.Reply) (router.Reply, error) {
	if reply.Context.State == router.StateError {
		return reply, fmt.Errorf("%s.%s: %w: %v", route, verb, ErrCallFailed, reply.Data)
	}
	return reply, nil
}

// Subscribe joins channels.
func (c *Client) Subscribe(ctx context.Context, channels ...string) error {
	_, err := c.Request(ctx, routes.PubSubRoute, "subscribe", map[string]any{"channels": channels})
	return err
}

// Unsubscribe leaves channels.
func (c *Client) Unsubscribe(ctx context.Context, channels ...string) error {
	_, err := c.Request(ctx, routes.PubSubRoute, "unsubscribe", map[string]any{"channels": channels})
	return err
}

// Publish sends data to channel and returns how many subscribers got it.
func (c *Client) Publish(ctx context.Context, channel string, data any) (int, error) {
	reply, err := c.Request(ctx, routes.PubSubRoute, "publish", map[string]any{
		"channel": channel,
		"data":    data,
	})
	if err != nil {
		return 0, err
	}
	body, _ := reply.Data.(map[string]any)
	delivered, _ := body["delivered"].(float64)
	return int(delivered), nil
}

// Ping round-trips the heartbeat route.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, routes.HeartbeatRoute, "ping", nil)
	return err
}

// Events returns frames that were not claimed by a Request. It is closed
// when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil if it is still
// running or was closed with Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame, waits briefly for the server to answer and
// closes the socket. Further calls are no-ops.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)

		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		select {
		case <-c.done:
		case <-time.After(time.Second):
		}
		err = c.conn.Close()
	})
	return err
}

func (c *Client) nextCallback() string {
	return "cb-" + strconv.FormatUint(c.seq.Add(1), 10)
}

func (c *Client) write(msgType int, data []byte) error {
	select {
	case <-c.closing:
		return ErrAlreadyClosed
	case <-c.done:
		return ErrAlreadyClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(msgType, data)
}

// readLoop decodes frames, hands replies to waiting Requests and queues
// everything else on the events channel.
func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
			default:
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				c.logger.Debug("connection ended", "error", err)
			}
			return
		}
		c.extendDeadline()

		ev := decodeEvent(data, msgType == websocket.BinaryMessage)
		if ev.Reply != nil && c.resolve(*ev.Reply) {
			continue
		}

		select {
		case c.events <- ev:
		case <-c.closing:
			return
		}
	}
}

// resolve delivers reply to the Request waiting on its callback name.
func (c *Client) resolve(reply router.Reply) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	wait, ok := c.pending[reply.Context.ClientCallbackName]
	if !ok {
		return false
	}
	delete(c.pending, reply.Context.ClientCallbackName)
	wait <- reply
	return true
}

func decodeEvent(data []byte, binary bool) Event {
	ev := Event{Raw: data, Binary: binary, ReceivedAt: time.Now()}
	if binary {
		return ev
	}

	body := normalize.ToJSON(data)
	if _, ok := body["context"]; ok {
		var reply router.Reply
		if json.Unmarshal(data, &reply) == nil {
			ev.Reply = &reply
		}
		return ev
	}
	if normalize.String(body, "channel") != "" {
		var pub routes.Published
		if json.Unmarshal(data, &pub) == nil {
			ev.Published = &pub
		}
	}
	return ev
}
