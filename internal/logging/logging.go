// Package logging builds sideband's process-wide structured logger. It
// mirrors its teacher's env-var-driven, configure-once shape but talks to
// zerolog directly rather than through a logging façade.
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Env var names controlling the logger built by Configure.
const (
	EnvLogLevel     = "SIDEBAND_LOG_LEVEL"
	EnvLogTimestamp = "SIDEBAND_LOG_TIMESTAMP"
	EnvLogNoColor   = "SIDEBAND_LOG_NOCOLOR"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Configure builds the process-wide logger on its first call; later calls
// are no-ops. Call it explicitly at process start, or let Logger call it
// lazily on first use.
func Configure() {
	once.Do(func() {
		logger = build()
	})
}

// Logger returns the process-wide logger, configuring it first if needed.
func Logger() zerolog.Logger {
	Configure()
	return logger
}

func build() zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	noColor := false
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		noColor = v
	}
	withTimestamp := true
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		withTimestamp = v
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: noColor}
	ctx := zerolog.New(output).Level(level).With()
	if withTimestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Str("component", "sideband").Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
