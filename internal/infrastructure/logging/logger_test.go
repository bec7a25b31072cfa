package logging

import (
	"log/slog"
	"testing"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewAndWith(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("New returned a nil logger")
	}

	child := logger.With("component", "test")
	if child == nil || child.Logger == nil {
		t.Fatal("With returned a nil logger")
	}
	if child == logger {
		t.Error("With did not return a new logger")
	}
}
