package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/dragonhub/internal/connection"
	"github.com/rickgao/dragonhub/internal/pubsub"
	"github.com/rickgao/dragonhub/internal/router"
)

// Server accepts WebSocket connections and feeds their events into
// connection.Connection state machines.
type Server struct {
	cfg    Config
	routes *router.Registry
	hub    *pubsub.Registry
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*wsSession
	closing  bool
	wg       sync.WaitGroup

	// Stats
	accepted       atomic.Int64
	rejected       atomic.Int64
	received       atomic.Int64
	dispatchErrors atomic.Int64
	handlerErrors  atomic.Int64
}

// NewServer creates a WebSocket server that dispatches through routes and
// publishes through hub.
func NewServer(cfg Config, routes *router.Registry, hub *pubsub.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		routes:   routes,
		hub:      hub,
		logger:   logger,
		sessions: make(map[string]*wsSession),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin:       s.checkOrigin,
	}
	return s
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Path != "" && r.URL.Path != s.cfg.Path {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	closing := s.closing
	if !closing {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	if closing {
		s.rejected.Add(1)
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.rejected.Add(1)
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.serve(r.Context(), ws, r.RemoteAddr)
}

func (s *Server) serve(ctx context.Context, ws *websocket.Conn, remote string) {
	sess := newSession(uuid.NewString(), ws, s.cfg, s.logger)
	conn := connection.New(sess, s.routes, s.hub, s.logger)

	s.track(sess)
	defer s.untrack(sess)

	s.accepted.Add(1)
	sess.start()

	defer func() {
		conn.OnClose()
		sess.Close()
		if !sess.wait(drainTimeout) {
			s.logger.Debug("session flush timed out", "session", sess.ID())
		}
	}()

	if err := conn.OnOpen(ctx); err != nil {
		s.logger.Warn("open failed", "session", sess.ID(), "error", err)
		return
	}

	s.logger.Debug("session accepted", "session", sess.ID(), "remote", remote)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !sess.IsClosed() {
				s.logger.Debug("read failed", "session", sess.ID(), "error", err)
			}
			return
		}
		s.received.Add(1)

		if err := conn.OnMessage(ctx, data); err != nil {
			if router.IsFatal(err) {
				s.dispatchErrors.Add(1)
				s.logger.Warn("closing session on protocol error",
					"session", sess.ID(),
					"remote", remote,
					"error", err,
				)
				return
			}
			if errors.Is(err, connection.ErrNotOpen) {
				return
			}
			s.handlerErrors.Add(1)
		}
	}
}

func (s *Server) track(sess *wsSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *Server) untrack(sess *wsSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID())
}

// checkOrigin allows requests without an Origin header and those whose
// origin is listed in cfg.AllowedOrigins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// Shutdown closes every live session and waits for their handlers to
// return, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	live := make([]*wsSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	s.logger.Info("closing websocket sessions", "count", len(live))

	for _, sess := range live {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("websocket shutdown timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()

	return ServerStats{
		ActiveSessions:   active,
		AcceptedTotal:    s.accepted.Load(),
		RejectedTotal:    s.rejected.Load(),
		MessagesReceived: s.received.Load(),
		DispatchErrors:   s.dispatchErrors.Load(),
		HandlerErrors:    s.handlerErrors.Load(),
	}
}

// drainTimeout bounds how long a closing session may take to flush.
const drainTimeout = 2 * time.Second
