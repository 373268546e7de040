package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB = 5
	maxBackups    = 3
	maxValueLen   = 200
	truncSuffix   = "…"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
	sink   *lumberjack.Logger
)

// Init opens the rotating log file tabflow.log in dir. Call once at startup.
// Safe to skip: all log calls are no-ops until Init.
// If echo is non-nil, log lines are also written there.
func Init(dir, level string, echo io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "tabflow.log"),
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}

	var w io.Writer = lj
	if echo != nil {
		w = io.MultiWriter(echo, lj)
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: truncate,
	})

	mu.Lock()
	if sink != nil {
		sink.Close()
	}
	sink = lj
	logger = slog.New(h)
	mu.Unlock()
	return nil
}

// SetLogger routes log calls to l. Tests use it to capture output.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		sink.Close()
		sink = nil
	}
	logger = nil
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a high-volume event line, e.g. every received event.
func Debug(event string, kv ...any) {
	write(slog.LevelDebug, event, nil, kv)
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("group.created", "domain", "example.com", "tabs", 3)
func Info(event string, kv ...any) {
	write(slog.LevelInfo, event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("reconcile", err, "domain", "example.com")
func Error(event string, err error, kv ...any) {
	write(slog.LevelError, event, err, kv)
}

func write(level slog.Level, event string, err error, kv []any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return
	}
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}

	attrs := make([]any, 0, len(kv)+2)
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	l.Log(ctx, level, event, attrs...)
}

func truncate(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if s := a.Value.String(); len(s) > maxValueLen {
		a.Value = slog.StringValue(s[:maxValueLen] + truncSuffix)
	}
	return a
}
