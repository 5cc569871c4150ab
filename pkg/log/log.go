package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init replaces it.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Level is a textual log level as found in configuration
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	// Output defaults to stdout
	Output io.Writer
}

// ParseLevel maps a textual level to a Level, defaulting to info
func ParseLevel(s string) Level {
	if _, ok := zerologLevels[Level(s)]; ok {
		return Level(s)
	}
	return InfoLevel
}

// Init configures the global level and replaces Logger
func Init(cfg Config) {
	level, ok := zerologLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithCloudID adds the cloud_id field to logger
func WithCloudID(logger zerolog.Logger, cloudID string) zerolog.Logger {
	return logger.With().Str("cloud_id", cloudID).Logger()
}

// WithChainID adds the chain_id field to logger
func WithChainID(logger zerolog.Logger, chainID string) zerolog.Logger {
	return logger.With().Str("chain_id", chainID).Logger()
}

// WithNodeID adds the node_id field to logger
func WithNodeID(logger zerolog.Logger, nodeID string) zerolog.Logger {
	return logger.With().Str("node_id", nodeID).Logger()
}
