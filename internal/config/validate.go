package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ServerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with '/', got %q", c.Server.WSPath)
	}
	if !strings.HasPrefix(c.Server.HealthPath, "/") {
		return fmt.Errorf("server.health_path must start with '/', got %q", c.Server.HealthPath)
	}
	if c.Server.WSPath == c.Server.HealthPath {
		return fmt.Errorf("server.ws_path and server.health_path must differ, both are %q", c.Server.WSPath)
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if err := c.WebSocket.validate("websocket"); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (ws *WebSocketConfig) validate(prefix string) error {
	if ws.ReadLimit < 1 {
		return fmt.Errorf("%s.read_limit must be >= 1", prefix)
	}
	if ws.WriteTimeout <= 0 {
		return fmt.Errorf("%s.write_timeout must be > 0", prefix)
	}
	if ws.SendBuffer < 1 {
		return fmt.Errorf("%s.send_buffer must be >= 1", prefix)
	}
	if ws.PingInterval > 0 && ws.PongTimeout <= ws.PingInterval {
		return fmt.Errorf("%s.pong_timeout (%s) must exceed ping_interval (%s)", prefix, ws.PongTimeout, ws.PingInterval)
	}
	for _, origin := range ws.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("%s.allowed_origins must not contain empty entries", prefix)
		}
	}
	return nil
}
