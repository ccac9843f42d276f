// Package logger provides the engine's levelled, thread-safe diagnostic
// sink. Every other package holds a *Logger rather than reaching for a
// global, mirroring how the rest of the engine threads dependencies
// explicitly instead of through package-level state.
package logger

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level gates which calls are actually emitted. Global messages bypass
// the gate entirely — they are the startup/shutdown banners a
// supervising process always wants to see.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
)

// String renders the level the way it appears in a "log-level" flag or
// environment variable.
func (level Level) String() string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarning:
		return "warning"
	default:
		return "info"
	}
}

// ParseLevel parses a case-insensitive level name, defaulting to Info
// for anything unrecognised rather than failing startup over a typo.
func ParseLevel(value string) Level {
	switch strings.ToLower(value) {
	case "debug":
		return LevelDebug
	case "warning", "warn":
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Format selects the zapcore encoder, mirroring the teacher's
// LogFormat field (text for local development, json for shipping).
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Logger is a cheap-to-clone wrapper around a zap.SugaredLogger with an
// atomic level gate. The gate is checked without taking a lock so
// hot-path calls from the Dispatcher never contend with a concurrent
// SetLevel.
type Logger struct {
	level  *atomic.Int32
	sugar  *zap.SugaredLogger
	global *zap.SugaredLogger
}

// New constructs a Logger at the given level and format, writing to
// stdout the way the teacher's NewLogger does.
func New(level Level, format Format) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == FormatText {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	atomicLevel := &atomic.Int32{}
	atomicLevel.Store(int32(level))

	return &Logger{
		level:  atomicLevel,
		sugar:  base,
		global: base.Named("global"),
	}
}

// SetLevel changes the minimum level emitted by Debug/Info/Warning.
// Global messages are unaffected.
func (logger *Logger) SetLevel(level Level) {
	logger.level.Store(int32(level))
}

// CurrentLevel returns the active gate level.
func (logger *Logger) CurrentLevel() Level {
	return Level(logger.level.Load())
}

func (logger *Logger) enabled(level Level) bool {
	return level >= Level(logger.level.Load())
}

// With returns a clone of the Logger that attaches the given structured
// key/value pairs to every subsequent call, without affecting the
// receiver's fields. The clone shares the receiver's level gate.
func (logger *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{
		level:  logger.level,
		sugar:  logger.sugar.With(keysAndValues...),
		global: logger.global.With(keysAndValues...),
	}
}

// Debug logs fine-grained diagnostic detail: per-request classification,
// filter mutations.
func (logger *Logger) Debug(message string, keysAndValues ...any) {
	if logger.enabled(LevelDebug) {
		logger.sugar.Debugw(message, keysAndValues...)
	}
}

// Info logs routine lifecycle detail.
func (logger *Logger) Info(message string, keysAndValues ...any) {
	if logger.enabled(LevelInfo) {
		logger.sugar.Infow(message, keysAndValues...)
	}
}

// Warning logs recoverable per-request/per-tunnel failures: dial
// errors, handshake errors, tunnel copy errors.
func (logger *Logger) Warning(message string, keysAndValues ...any) {
	if logger.enabled(LevelWarning) {
		logger.sugar.Warnw(message, keysAndValues...)
	}
}

// Global always emits regardless of the configured level. It exists for
// the handful of banner messages ("Service is now running...",
// "Service has been stopped.") that a supervising UI wants to see no
// matter how the level is configured — preserved from the original
// implementation's separate global sink.
func (logger *Logger) Global(message string, keysAndValues ...any) {
	logger.global.Infow(message, keysAndValues...)
}

// Sync flushes any buffered log entries. Safe to call on shutdown even
// if stdout does not support syncing (the error is intentionally
// discarded, matching zap's own documented guidance for console output).
func (logger *Logger) Sync() {
	_ = logger.sugar.Sync()
}
