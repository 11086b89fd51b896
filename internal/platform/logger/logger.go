// Package logger provides structured logging for the game server.
// Every subsystem logs through this wrapper so room codes and player ids
// show up as fields rather than string-concatenated prose.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap sugared logger with the small surface the server uses.
type Logger struct {
	s *zap.SugaredLogger
}

// New creates a production logger. Set debug for development verbosity.
func New(debug bool) *Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Building the stock zap config only fails on bad user config,
		// which cannot happen here.
		panic(err)
	}
	return &Logger{s: z.Sugar()}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }

// Event logs a game event with a normalized shape for log scraping.
func (l *Logger) Event(eventType, roomCode, actorID string, kv ...any) {
	fields := append([]any{"event", eventType, "room", roomCode, "actor", actorID}, kv...)
	l.s.Infow("game event", fields...)
}

// Sync flushes buffered log entries. Called on shutdown.
func (l *Logger) Sync() {
	_ = l.s.Sync()
}
