package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Logger defines the interface for logging in appkit.
// It provides standard logging levels and a mechanism to add structured context.
type Logger interface {
	// Debug logs a message at the debug level.
	Debug(msg string, args ...any)
	// Info logs a message at the info level.
	Info(msg string, args ...any)
	// Warn logs a message at the warning level.
	Warn(msg string, args ...any)
	// Error logs a message at the error level.
	Error(msg string, args ...any)
	// With returns a new Logger with the given structured context added.
	With(args ...any) Logger
}

// level is shared by every logger InitLogger builds, so SetLevel affects
// loggers already derived with With.
var level = new(slog.LevelVar)

// Log is the global logger instance used throughout the application.
// It is initialized with a default JSON handler pointing to stdout.
var Log Logger = newLogger(os.Stdout, level)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger replaces the global Log with a JSON logger at the given level.
// A nil writer means stdout. Daemonized processes pass a log file because
// their standard streams point at the null device.
func InitLogger(lvl string, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	level.Set(ParseLevel(lvl))
	Log = newLogger(w, level)
}

// SetLevel changes the level of the global logger at runtime.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// Level returns the current level of the global logger.
func Level() slog.Level {
	return level.Level()
}

// New builds a JSON logger writing to w.
func New(w io.Writer, lvl slog.Level) Logger {
	return newLogger(w, lvl)
}

func newLogger(w io.Writer, lvl slog.Leveler) Logger {
	opts := &slog.HandlerOptions{
		Level: lvl,
		// Add source file info for better debugging
		AddSource: true,
	}
	return &wrapper{l: slog.New(slog.NewJSONHandler(w, opts))}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() Logger {
	return &wrapper{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

type wrapper struct {
	l *slog.Logger
}

func (w *wrapper) Debug(msg string, args ...any) { w.log(slog.LevelDebug, msg, args...) }
func (w *wrapper) Info(msg string, args ...any)  { w.log(slog.LevelInfo, msg, args...) }
func (w *wrapper) Warn(msg string, args ...any)  { w.log(slog.LevelWarn, msg, args...) }
func (w *wrapper) Error(msg string, args ...any) { w.log(slog.LevelError, msg, args...) }
func (w *wrapper) With(args ...any) Logger       { return &wrapper{l: w.l.With(args...)} }

// log records the caller of Debug, Info, Warn or Error as the source.
func (w *wrapper) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !w.l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, log and the level method
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = w.l.Handler().Handle(ctx, r)
}

// Personal.AI order the ending
