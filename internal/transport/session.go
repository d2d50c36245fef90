package transport

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// frame is one queued outbound message.
type frame struct {
	data   []byte
	binary bool
}

// wsSession is a connection.Session backed by a gorilla WebSocket.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	out *SendQueue[frame]

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	writerDone chan struct{}
}

func newSession(id string, conn *websocket.Conn, cfg Config, logger *slog.Logger) *wsSession {
	return &wsSession{
		id:         id,
		conn:       conn,
		cfg:        cfg,
		logger:     logger.With("session", id),
		out:        NewSendQueue[frame](cfg.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ID returns the session ID.
func (s *wsSession) ID() string {
	return s.id
}

// SendMessage queues payload for the writer goroutine. It never blocks.
// A peer that lets its queue fill up is disconnected; its backlog is
// dropped.
func (s *wsSession) SendMessage(payload []byte, binary bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	err := s.out.Send(frame{data: payload, binary: binary})
	if errors.Is(err, ErrSendQueueFull) {
		s.logger.Warn("send queue full, closing session", "queued", s.out.Len())
		s.Close()
		s.out.DrainTo(0)
		// Unblock the writer and the read loop now rather than after a
		// write timeout.
		if s.conn != nil {
			s.conn.Close()
		}
	}
	return err
}

// Close stops accepting frames. The writer flushes what is queued, sends a
// close frame and closes the socket.
func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.out.Close()
	})
	return nil
}

// IsClosed reports whether Close has been called.
func (s *wsSession) IsClosed() bool {
	return s.closed.Load()
}

// start launches the writer and keep-alive goroutines and arms the read
// deadline.
func (s *wsSession) start() {
	s.conn.SetReadLimit(s.cfg.ReadLimit)
	// Without pings nothing would extend the deadline.
	if s.cfg.PingInterval > 0 && s.cfg.PongTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		})
	}

	go s.writeLoop()
	if s.cfg.PingInterval > 0 {
		go s.pingLoop()
	}
}

// writeLoop is the only goroutine that writes data frames.
func (s *wsSession) writeLoop() {
	defer close(s.writerDone)
	defer s.conn.Close()

	for {
		f, ok := s.out.Receive()
		if !ok {
			break
		}

		msgType := websocket.TextMessage
		if f.binary {
			msgType = websocket.BinaryMessage
		}

		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := s.conn.WriteMessage(msgType, f.data); err != nil {
			s.logger.Debug("write failed", "error", err)
			s.Close()
			// Drop whatever is left; the peer is gone.
			s.out.DrainTo(0)
			return
		}
	}

	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

// pingLoop sends keep-alive pings until the session closes.
func (s *wsSession) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
				s.Close()
				return
			}
		}
	}
}

// wait blocks until the writer has flushed and closed the socket, or the
// timeout passes.
func (s *wsSession) wait(timeout time.Duration) bool {
	select {
	case <-s.writerDone:
		return true
	case <-time.After(timeout):
		return false
	}
}
