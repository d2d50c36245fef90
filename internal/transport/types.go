package transport

import (
	"errors"
	"time"
)

// Errors
var (
	ErrAlreadyClosed = errors.New("already closed")
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("send queue full")
	ErrCallFailed    = errors.New("call failed")
)

// Config configures the WebSocket server.
type Config struct {
	Path              string        // URL path the server upgrades on ("" = any)
	ReadLimit         int64         // Max inbound frame size in bytes
	WriteTimeout      time.Duration // Write deadline per frame
	PingInterval      time.Duration // Keep-alive ping period, <= 0 disables pings and the pong deadline
	PongTimeout       time.Duration // Read deadline while pinging, extended by every pong
	SendBuffer        int           // Max queued outbound frames per session, overflow disconnects
	ReadBufferSize    int
	WriteBufferSize   int
	AllowedOrigins    []string // Empty or "*" allows every origin
	EnableCompression bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:            "/ws",
		ReadLimit:       64 * 1024,
		WriteTimeout:    5 * time.Second,
		PingInterval:    25 * time.Second,
		PongTimeout:     60 * time.Second,
		SendBuffer:      1024,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// ServerStats contains server statistics.
type ServerStats struct {
	ActiveSessions   int
	AcceptedTotal    int64
	RejectedTotal    int64
	MessagesReceived int64
	DispatchErrors   int64
	HandlerErrors    int64
}

// ClientConfig configures a protocol client.
type ClientConfig struct {
	URL              string        // e.g. ws://localhost:8080/ws
	HandshakeTimeout time.Duration // Dial handshake limit
	ReadTimeout      time.Duration // Idle limit, reset by every frame and server ping (0 = none)
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Events channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}
