// Package config provides configuration management for tpattern commands.
package config

import (
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/tpattern"
	"github.com/solatis/tpattern/internal/types"
)

// DetectionConfig holds the detection parameters.
type DetectionConfig struct {
	Significance       float64
	Window             int64
	MinEventSupport    int
	MinPairSupport     int
	MaxRounds          int
	MaxSynthesisRounds int
	TimeUnit           time.Duration
}

// ServerConfig holds configuration for the gRPC pattern service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxEvents      int
}

// Config is the complete tpattern configuration.
type Config struct {
	Detection   DetectionConfig
	Server      ServerConfig
	DatabaseURL string
}

// DefaultDetectionConfig returns the standard detection parameters.
func DefaultDetectionConfig() DetectionConfig {
	engine := tpattern.DefaultConfig()
	return DetectionConfig{
		Significance:       engine.Significance,
		Window:             engine.Window,
		MinEventSupport:    engine.MinEventSupport,
		MinPairSupport:     engine.MinPairSupport,
		MaxRounds:          engine.MaxRounds,
		MaxSynthesisRounds: engine.MaxSynthesisRounds,
		TimeUnit:           engine.TimeUnit,
	}
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		RequestTimeout: 60 * time.Second,
		MaxEvents:      100000,
	}
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Detection: DefaultDetectionConfig(),
		Server:    DefaultServerConfig(),
	}
}

// Engine converts the detection section into engine parameters.
func (d DetectionConfig) Engine() tpattern.Config {
	return tpattern.Config{
		Significance:       d.Significance,
		Window:             d.Window,
		MinEventSupport:    d.MinEventSupport,
		MinPairSupport:     d.MinPairSupport,
		MaxRounds:          d.MaxRounds,
		MaxSynthesisRounds: d.MaxSynthesisRounds,
		TimeUnit:           d.TimeUnit,
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Detection.Engine().Validate(); err != nil {
		return errors.Wrap(err, "detection")
	}
	if err := c.Server.Validate(); err != nil {
		return errors.Wrap(err, "server")
	}
	return nil
}

// Validate checks port range and positive limits.
func (s ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return errors.Wrapf(types.ErrInvalidConfig, "port must be between 1 and 65535, got %d", s.Port)
	}
	if s.RequestTimeout <= 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "request_timeout must be positive, got %v", s.RequestTimeout)
	}
	if s.MaxEvents <= 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "max_events must be positive, got %d", s.MaxEvents)
	}
	return nil
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
