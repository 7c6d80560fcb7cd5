// Package peerconfig loads TOML-backed configuration for the example peer
// driver in internal/peer: connection timeouts, frame size limits, and
// reconnect backoff. None of this is normative for the wire protocol or
// RPC correlation core; it configures the glue above it.
package peerconfig

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// BackoffConfig tunes the example driver's jittered exponential reconnect
// backoff.
type BackoffConfig struct {
	InitialDelayMS int64   `toml:"initial_delay_ms"`
	Multiplier     float64 `toml:"multiplier"`
	MaxDelayMS     int64   `toml:"max_delay_ms"`
	Jitter         bool    `toml:"jitter"`
}

// Config holds every knob the example peer driver needs. Durations are
// stored as milliseconds on the wire (TOML has no native duration type)
// and exposed as time.Duration through accessor methods.
type Config struct {
	ConnectTimeoutMS   int64         `toml:"connect_timeout_ms"`
	HandshakeTimeoutMS int64         `toml:"handshake_timeout_ms"`
	ReadTimeoutMS      int64         `toml:"read_timeout_ms"`
	WriteTimeoutMS     int64         `toml:"write_timeout_ms"`
	RequestTimeoutMS   int64         `toml:"request_timeout_ms"`
	MaxFrameBytes      uint32        `toml:"max_frame_bytes"`
	MaxHandshakeBytes  uint32        `toml:"max_handshake_bytes"`
	Backoff            BackoffConfig `toml:"backoff"`
}

// DefaultConfig returns the driver's built-in defaults, used as the
// starting point before any TOML file is applied.
func DefaultConfig() Config {
	return Config{
		ConnectTimeoutMS:   5000,
		HandshakeTimeoutMS: 5000,
		ReadTimeoutMS:      15000,
		WriteTimeoutMS:     15000,
		RequestTimeoutMS:   10000,
		MaxFrameBytes:      1 << 20,
		MaxHandshakeBytes:  8 << 10,
		Backoff: BackoffConfig{
			InitialDelayMS: 250,
			Multiplier:     2.0,
			MaxDelayMS:     5000,
			Jitter:         true,
		},
	}
}

// Load reads path as TOML over DefaultConfig, so an input file only needs
// to override the fields it cares about, then validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("peerconfig: load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would leave the driver stuck (a
// non-positive connect, handshake, or request timeout) or make backoff
// delays shrink over attempts. Read and write timeouts are not checked.
func (c Config) Validate() error {
	if c.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("peerconfig: connect_timeout_ms must be positive")
	}
	if c.HandshakeTimeoutMS <= 0 {
		return fmt.Errorf("peerconfig: handshake_timeout_ms must be positive")
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("peerconfig: request_timeout_ms must be positive")
	}
	if c.Backoff.InitialDelayMS < 0 {
		return fmt.Errorf("peerconfig: backoff.initial_delay_ms must not be negative")
	}
	if c.Backoff.Multiplier < 1.0 {
		return fmt.Errorf("peerconfig: backoff.multiplier must be >= 1.0")
	}
	return nil
}

func (c Config) ConnectTimeout() time.Duration   { return time.Duration(c.ConnectTimeoutMS) * time.Millisecond }
func (c Config) HandshakeTimeout() time.Duration { return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond }
func (c Config) ReadTimeout() time.Duration      { return time.Duration(c.ReadTimeoutMS) * time.Millisecond }
func (c Config) WriteTimeout() time.Duration     { return time.Duration(c.WriteTimeoutMS) * time.Millisecond }
func (c Config) RequestTimeout() time.Duration   { return time.Duration(c.RequestTimeoutMS) * time.Millisecond }
