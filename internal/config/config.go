package config

import "time"

// ServerConfig is the root configuration for a dragonhub instance.
type ServerConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    HTTPConfig      `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Log       LogConfig       `yaml:"log"`
}

// InstanceConfig identifies this server.
type InstanceConfig struct {
	ID string `yaml:"id"` // Generated when empty
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	WSPath          string        `yaml:"ws_path"`
	HealthPath      string        `yaml:"health_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig holds per-session transport settings.
type WebSocketConfig struct {
	ReadLimit         int64         `yaml:"read_limit"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"` // Negative disables pings
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	SendBuffer        int           `yaml:"send_buffer"`
	ReadBufferSize    int           `yaml:"read_buffer_size"`
	WriteBufferSize   int           `yaml:"write_buffer_size"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	EnableCompression bool          `yaml:"enable_compression"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level         string        `yaml:"level"`          // debug, info, warn, error
	Format        string        `yaml:"format"`         // text or json
	StatsInterval time.Duration `yaml:"stats_interval"` // Period of the stats log line, negative disables
}
