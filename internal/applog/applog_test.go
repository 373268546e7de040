package applog

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureLogger(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level, ReplaceAttr: truncate})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func TestInfoWritesEventAndPairs(t *testing.T) {
	buf := captureLogger(t, slog.LevelInfo)

	Info("group.created", "domain", "example.com", "tabs", 3)

	out := buf.String()
	for _, want := range []string{"msg=group.created", "domain=example.com", "tabs=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestErrorIncludesErr(t *testing.T) {
	buf := captureLogger(t, slog.LevelInfo)

	Error("reconcile", errors.New("group not found"), "domain", "example.com")

	out := buf.String()
	if !strings.Contains(out, `err="group not found"`) {
		t.Errorf("output %q missing err attr", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("output %q missing level", out)
	}
}

func TestDebugFilteredAtInfo(t *testing.T) {
	buf := captureLogger(t, slog.LevelInfo)

	Debug("event.recv", "tab", 1)

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLongValuesTruncated(t *testing.T) {
	buf := captureLogger(t, slog.LevelInfo)

	Info("tab.url", "url", strings.Repeat("a", 500))

	if !strings.Contains(buf.String(), truncSuffix) {
		t.Error("expected truncated value")
	}
}

func TestNoopWithoutInit(t *testing.T) {
	SetLogger(nil)
	Info("ignored")
	Error("ignored", errors.New("x"))
}

func TestInitCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := Init(dir, "debug", nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("startup", "port", 19192)
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "tabflow.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "startup") {
		t.Errorf("log file %q missing event", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
