// Package config defines the configuration schema for toolrelay.
//
// Files are JSON with camelCase keys, or YAML with the same keys when the
// file extension is .yaml or .yml.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/toolrelay/toolrelay/internal/config/gateway"
	"github.com/toolrelay/toolrelay/internal/config/tool"
)

// ServerConfig is what discover reports about this relay.
type ServerConfig struct {
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:         "toolrelay",
		Version:      "0.1.0",
		Capabilities: []string{"tools", "execution", "broadcast"},
	}
}

// ExecutionConfig controls invocation bookkeeping.
type ExecutionConfig struct {
	TimeoutSeconds   int `json:"timeoutSeconds" yaml:"timeoutSeconds"` // 0 disables
	RetentionSeconds int `json:"retentionSeconds" yaml:"retentionSeconds"`
	SweepSeconds     int `json:"sweepSeconds" yaml:"sweepSeconds"`
}

func defaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{TimeoutSeconds: 300, RetentionSeconds: 30, SweepSeconds: 1}
}

func (e ExecutionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func (e ExecutionConfig) Retention() time.Duration {
	return time.Duration(e.RetentionSeconds) * time.Second
}

func (e ExecutionConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepSeconds) * time.Second
}

// StoreConfig enables SQLite persistence of provider tools when DSN is set.
type StoreConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.toolrelay/config.json.
type Config struct {
	Server    ServerConfig          `json:"server" yaml:"server"`
	Gateway   gateway.GatewayConfig `json:"gateway" yaml:"gateway"`
	Execution ExecutionConfig       `json:"execution" yaml:"execution"`
	Tools     tool.ToolsConfig      `json:"tools" yaml:"tools"`
	Store     StoreConfig           `json:"store" yaml:"store"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Server:    defaultServerConfig(),
		Gateway:   gateway.DefaultGatewayConfig(),
		Execution: defaultExecutionConfig(),
		Tools:     tool.DefaultToolConfigs(),
	}
}

// Validate range-checks the values the relay relies on.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Name != "", "server.name is required")
	check(c.Gateway.Port > 0 && c.Gateway.Port <= 65535, "gateway.port %d out of range", c.Gateway.Port)
	check(len(c.Gateway.Path) > 0 && c.Gateway.Path[0] == '/', "gateway.path %q must start with /", c.Gateway.Path)
	check(c.Gateway.MaxMessageBytes > 0, "gateway.maxMessageBytes must be positive")
	check(c.Gateway.SendBuffer > 0, "gateway.sendBuffer must be positive")
	check(c.Gateway.PingIntervalSeconds > 0, "gateway.pingIntervalSeconds must be positive")
	check(c.Gateway.RateLimit >= 0, "gateway.rateLimit must not be negative")
	check(c.Gateway.RateLimit == 0 || c.Gateway.RateBurst > 0, "gateway.rateBurst must be positive when rateLimit is set")
	check(c.Execution.TimeoutSeconds >= 0, "execution.timeoutSeconds must not be negative")
	check(c.Execution.RetentionSeconds >= 0, "execution.retentionSeconds must not be negative")
	check(c.Execution.SweepSeconds > 0, "execution.sweepSeconds must be positive")

	return errors.Join(errs...)
}
