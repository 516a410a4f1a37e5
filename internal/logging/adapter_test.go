package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil, slog.LevelInfo)
	if adapter == nil {
		t.Fatal("NewSlogAdapter returned nil")
	}
	if adapter.logger == nil {
		t.Error("adapter.logger should not be nil when created with nil")
	}
}

func TestSlogAdapter_Println(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelInfo)

	adapter.Println("Endpoint:", "getUpdates")

	assert.Contains(t, buf.String(), `msg="Endpoint: getUpdates"`)
	assert.Contains(t, buf.String(), "component=telegram")
}

func TestSlogAdapter_Printf(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelWarn)

	adapter.Printf("retrying in %d seconds\n", 3)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="retrying in 3 seconds"`)
}

func TestSlogAdapter_LevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelDebug)

	adapter.Printf("noisy")

	assert.Empty(t, buf.String())
}

func TestBotLoggerInterface(t *testing.T) {
	var _ BotLogger = (*SlogAdapter)(nil)
}
