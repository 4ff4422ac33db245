package logging

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component so log lines can be joined on them
const (
	KeyBuffer = "buffer_id"
	KeyKind   = "kind"
	KeyHandle = "handle_id"
	KeyClient = "client_id"
	KeyTrace  = "trace_id"
)

// Logger wraps zap.Logger with the playground's field vocabulary.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// DefaultConfig is JSON on stdout at info.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		OutputPaths: []string{"stdout"},
	}
}

// DevelopmentConfig is colored console output on stderr at debug.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stderr"},
	}
}

// ToolConfig keeps stdout free for command output. An empty level means
// warn.
func ToolConfig(level string, development bool) Config {
	if level == "" {
		level = "warn"
	}
	return Config{
		Level:       level,
		Development: development,
		OutputPaths: []string{"stderr"},
	}
}

// New creates a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stdout"}
	}

	encoding, encoder := "json", productionEncoder()
	if cfg.Development {
		encoding, encoder = "console", developmentEncoder()
	}

	logger, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		EncoderConfig:     encoder,
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Logger: logger}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger scoped to a component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.Named(component)}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Sync flushes buffered entries. Terminals and pipes reject fsync; those
// errors are dropped.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}

// Buffer tags an entry with a buffer id.
func Buffer(id string) zap.Field { return zap.String(KeyBuffer, id) }

// Kind tags an entry with a buffer kind.
func Kind(kind string) zap.Field { return zap.String(KeyKind, kind) }

// Handle tags an entry with a boundary handle id.
func Handle(id string) zap.Field { return zap.String(KeyHandle, id) }

// Client tags an entry with a WebSocket client id.
func Client(id string) zap.Field { return zap.String(KeyClient, id) }

// Trace tags an entry with a trace id. Empty ids are skipped.
func Trace(id string) zap.Field {
	if id == "" {
		return zap.Skip()
	}
	return zap.String(KeyTrace, id)
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

func developmentEncoder() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}

func productionEncoder() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}
