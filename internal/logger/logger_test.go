package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.Info("jam loaded")

	assert.Contains(t, buf.String(), "jam loaded")
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{"production uses json", "production", true},
		{"development uses pretty", "development", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			logger.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "test")
				assert.Contains(t, buf.String(), colorBold)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNamed_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.Named("session").Info("reconciled event")

	assert.Contains(t, buf.String(), `"component":"session"`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.WithError(errors.New("vote rejected")).Warn("mutation reverted")

	assert.Contains(t, buf.String(), "vote rejected")
	assert.Contains(t, buf.String(), "mutation reverted")
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.WithField("jamId", "jam-123").Info("subscribed")

	assert.Contains(t, buf.String(), "jamId")
	assert.Contains(t, buf.String(), "jam-123")
}

func TestPrettyHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	slog.New(handler).Info("song queued", "entryId", "entry-1", "votes", 3)

	output := buf.String()
	assert.Contains(t, output, "song queued")
	assert.Contains(t, output, "entryId=entry-1")
	assert.Contains(t, output, "votes=3")
	assert.Contains(t, output, "INF")
}

func TestPrettyHandler_LevelIndicators(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "pretty", Writer: &buf})

	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")

	output := buf.String()
	assert.Contains(t, output, "DBG")
	assert.Contains(t, output, "INF")
	assert.Contains(t, output, "WRN")
	assert.Contains(t, output, "ERR")
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	withAttrs := handler.WithAttrs([]slog.Attr{slog.String("jamId", "jam-1")})
	slog.New(withAttrs).Info("connected")

	assert.Contains(t, buf.String(), "jamId=jam-1")
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true})

	slog.New(handler).Info("test message")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: "json", Writer: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
}

func TestNewPrettyHandler_NilOptions(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, nil)
	require.NotNil(t, handler.opts)

	slog.New(handler).Info("test")
	assert.Contains(t, buf.String(), "test")
}
