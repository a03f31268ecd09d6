package util

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFacadeWritesThroughDefaultLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := L()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	Debug("hidden %d", 1)
	Info("scan interval changed to %ds", 4)
	Warn("status save failed: %v", "disk full")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	entries := logs.All()
	if entries[0].Message != "scan interval changed to 4s" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[1].Level)
	}
}

func TestNamedLoggerCarriesComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	Named("probes").Infow("process scan", "matches", 2)

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.LoggerName != "probes" {
		t.Errorf("expected logger name probes, got %q", entry.LoggerName)
	}
	if entry.ContextMap()["matches"] != int64(2) {
		t.Errorf("expected matches field, got %v", entry.ContextMap())
	}
}
