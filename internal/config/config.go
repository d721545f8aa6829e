package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CRESCENT_SERVER_PORT
const EnvPrefix = "CRESCENT"

// Config represents the root configuration structure for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	MaxConnections  int64         `mapstructure:"max_connections"`  // connections served at once, the rest wait in the backlog
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`     // longest silence between reads, 0 disables
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // 0 disables
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // how long to wait for clients before closing them
}

// Address returns host:port to listen on
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// ProtocolConfig bounds what a single request may claim
type ProtocolConfig struct {
	MaxDepth    int `mapstructure:"max_depth"`
	MaxBulkLen  int `mapstructure:"max_bulk_len"`
	MaxArrayLen int `mapstructure:"max_array_len"`
	MaxLineLen  int `mapstructure:"max_line_len"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load reads the configuration from a file and overrides it with environment variables.
// A .env file in path, when present, is loaded into the environment first
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports settings the server can not run with
func (c *Config) Validate() error {
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections)
	}
	if c.Protocol.MaxDepth < 1 {
		return fmt.Errorf("protocol.max_depth must be positive, got %d", c.Protocol.MaxDepth)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "6379")
	v.SetDefault("server.max_connections", 10000)
	v.SetDefault("server.idle_timeout", "0s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "5s")

	// Protocol
	v.SetDefault("protocol.max_depth", 32)
	v.SetDefault("protocol.max_bulk_len", 512*1024*1024)
	v.SetDefault("protocol.max_array_len", 1024*1024)
	v.SetDefault("protocol.max_line_len", 64*1024)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9121")
}
