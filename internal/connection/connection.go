package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/dragonhub/internal/normalize"
	"github.com/rickgao/dragonhub/internal/pubsub"
	"github.com/rickgao/dragonhub/internal/router"
)

// Connection binds a transport session to the route and pub/sub registries.
// It implements router.Caller for handlers and pubsub.Subscriber for
// fan-out.
type Connection struct {
	session Session
	routes  *router.Registry
	hub     *pubsub.Registry
	logger  *slog.Logger

	mu     sync.RWMutex
	state  State
	pubSub *pubsub.Registry // bound on open, nil before

	valuesMu sync.Mutex
	values   map[string]any
}

// New creates an unbound connection for session. hub is the pub/sub
// registry the connection attaches to when opened.
func New(session Session, routes *router.Registry, hub *pubsub.Registry, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}

	return &Connection{
		session: session,
		routes:  routes,
		hub:     hub,
		logger:  logger.With("conn", session.ID()),
		values:  make(map[string]any),
	}
}

// ID returns the session's identifier.
func (c *Connection) ID() string {
	return c.session.ID()
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// PubSub returns the registry bound at open time, or nil before OnOpen.
func (c *Connection) PubSub() *pubsub.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pubSub
}

// OnOpen attaches the pub/sub registry and moves the connection to open.
func (c *Connection) OnOpen(ctx context.Context) error {
	if c.session.IsClosed() {
		return ErrSessionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateOpen:
		return ErrAlreadyOpen
	case StateClosed:
		return ErrConnectionClosed
	}

	c.pubSub = c.hub
	c.state = StateOpen

	c.logger.Debug("connection opened")
	return nil
}

// OnMessage normalizes raw and dispatches it to its route.
//
// An unknown route or verb aborts the connection before the error is
// returned. Errors from the handler itself leave the connection open.
func (c *Connection) OnMessage(ctx context.Context, raw any) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}

	msg := normalize.ToJSON(raw)

	err := c.routes.Dispatch(ctx, c, msg)
	if err == nil {
		return nil
	}

	if router.IsFatal(err) {
		c.abort(err)
		return err
	}

	c.logger.Warn("handler failed", "error", err)
	return err
}

// abort is the forced close taken on a protocol violation.
func (c *Connection) abort(reason error) {
	c.logger.Warn("aborting connection", "reason", reason)
	c.close()
}

// OnClose removes the connection from every channel and closes the
// session. Calling it more than once is a no-op.
func (c *Connection) OnClose() {
	c.close()
}

// Close implements router.Caller.
func (c *Connection) Close() error {
	c.close()
	return nil
}

func (c *Connection) close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	bound := c.pubSub
	c.mu.Unlock()

	var left []string
	if bound != nil {
		left = bound.UnsubscribeAll(c)
	}

	if !c.session.IsClosed() {
		if err := c.session.Close(); err != nil {
			c.logger.Debug("session close failed", "error", err)
		}
	}

	c.logger.Debug("connection closed", "channels_left", len(left))
}

// Send encodes message and hands it to the session. On a connection that
// is not open it does nothing and returns nil.
//
// []byte, json.RawMessage and string payloads are sent as text frames
// unchanged, Binary as a binary frame, anything else is JSON-encoded.
func (c *Connection) Send(message any) error {
	if c.State() != StateOpen {
		return nil
	}

	payload, binary, err := encode(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.session.SendMessage(payload, binary)
}

func encode(message any) ([]byte, bool, error) {
	switch m := message.(type) {
	case Binary:
		return m, true, nil
	case []byte:
		return m, false, nil
	case json.RawMessage:
		return m, false, nil
	case string:
		return []byte(m), false, nil
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return nil, false, err
		}
		return data, false, nil
	}
}

// Subscribe adds the connection to channels. It is a no-op unless the
// connection is open.
func (c *Connection) Subscribe(channels ...string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != StateOpen || c.pubSub == nil {
		return
	}
	c.pubSub.Subscribe(channels, c)
}

// Unsubscribe removes the connection from channels.
func (c *Connection) Unsubscribe(channels ...string) {
	if bound := c.PubSub(); bound != nil {
		bound.Unsubscribe(channels, c)
	}
}

// Subscriptions returns the channels the connection currently belongs to.
func (c *Connection) Subscriptions() []string {
	if bound := c.PubSub(); bound != nil {
		return bound.ChannelsOf(c)
	}
	return nil
}

// Publish fans message out on the bound registry.
func (c *Connection) Publish(channel string, message any) int {
	bound := c.PubSub()
	if bound == nil {
		return 0
	}
	return bound.Publish(channel, message)
}

// Set stores a per-connection value.
func (c *Connection) Set(key string, value any) {
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	c.values[key] = value
}

// Get loads a per-connection value.
func (c *Connection) Get(key string) (any, bool) {
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

var (
	_ router.Caller     = (*Connection)(nil)
	_ pubsub.Subscriber = (*Connection)(nil)
)
