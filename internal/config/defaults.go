package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultAddr            = ":8080"
	DefaultWSPath          = "/ws"
	DefaultHealthPath      = "/health"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadLimit       = 64 * 1024
	DefaultWriteTimeout    = 5 * time.Second
	DefaultPingInterval    = 25 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultSendBuffer      = 1024
	DefaultReadBufferSize  = 4096
	DefaultWriteBufferSize = 4096
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultStatsInterval   = time.Minute
)

const (
	instanceIDPrefix    = "dragonhub-"
	instanceIDSuffixLen = 8
)

// ApplyDefaults fills every unset optional field. Zero means unset, so
// intervals that can be turned off take a negative value for that.
func (c *ServerConfig) ApplyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = instanceIDPrefix + uuid.NewString()[:instanceIDSuffixLen]
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.HealthPath == "" {
		c.Server.HealthPath = DefaultHealthPath
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// WebSocket defaults
	if c.WebSocket.ReadLimit == 0 {
		c.WebSocket.ReadLimit = DefaultReadLimit
	}
	if c.WebSocket.WriteTimeout == 0 {
		c.WebSocket.WriteTimeout = DefaultWriteTimeout
	}
	if c.WebSocket.PingInterval == 0 {
		c.WebSocket.PingInterval = DefaultPingInterval
	}
	if c.WebSocket.PongTimeout == 0 {
		c.WebSocket.PongTimeout = DefaultPongTimeout
	}
	if c.WebSocket.SendBuffer == 0 {
		c.WebSocket.SendBuffer = DefaultSendBuffer
	}
	if c.WebSocket.ReadBufferSize == 0 {
		c.WebSocket.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WebSocket.WriteBufferSize == 0 {
		c.WebSocket.WriteBufferSize = DefaultWriteBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.StatsInterval == 0 {
		c.Log.StatsInterval = DefaultStatsInterval
	}
}
