package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestLoggingWithoutInit(t *testing.T) {
	// package-level helpers must be usable before Init
	Info(context.Background(), "hello", "k", "v")
	ErrorWithErr(context.Background(), "boom", errors.New("x"))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := InitWithConfig(LogConfig{Level: "INFO", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1}); err != nil {
		t.Fatalf("InitWithConfig: %v", err)
	}
	defer func() {
		_ = Close()
		fileWriter = nil
		_ = InitWithConfig(LogConfig{Level: "INFO", Format: "text"})
	}()

	Signal(context.Background(), "TCS.NS", "BUY", 1, 1)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(b)
	if !strings.Contains(line, `"signal":"BUY"`) || !strings.Contains(line, `"symbol":"TCS.NS"`) {
		t.Errorf("Expected signal fields in log line, got %s", line)
	}
}

func TestDebugGatedByDetailedLogging(t *testing.T) {
	_ = InitWithConfig(LogConfig{Level: "INFO", Format: "text"})
	if IsDebugEnabled() {
		t.Error("Expected debug disabled at INFO")
	}
	_ = InitWithConfig(LogConfig{Level: "DEBUG", Format: "text"})
	if !IsDebugEnabled() {
		t.Error("Expected debug enabled at DEBUG")
	}
	_ = InitWithConfig(LogConfig{Level: "INFO", Format: "text"})
}

func TestOperationTimer(t *testing.T) {
	op := StartOperation(context.Background(), "test.op", "symbol", "INFY.NS", "rows", 3)
	if op.GetContext() == nil {
		t.Fatal("Expected context")
	}
	if d := op.End("status", "ok"); d < 0 {
		t.Errorf("Expected non-negative duration, got %v", d)
	}
}
