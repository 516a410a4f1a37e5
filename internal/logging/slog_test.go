package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState string

func (s fakeState) String() string { return string(s) }

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name    string
		level   string
		format  string
		want    string
		wantErr bool
	}{
		{"text info", "info", "text", "level=INFO", false},
		{"json debug", "debug", "json", `"level":"INFO"`, false},
		{"uppercase level", "WARN", "", "", false},
		{"bad level", "loud", "text", "", true},
		{"bad format", "info", "xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := Setup(&buf, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, logger, slog.Default())

			logger.Info("hello")
			if tt.want != "" {
				assert.Contains(t, buf.String(), tt.want)
			}
		})
	}
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := WithOperation(slog.New(slog.NewTextHandler(&buf, nil)), "store.save")
	logger.Info("saved")
	assert.Contains(t, buf.String(), "operation=store.save")
}

func TestWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := WithService(slog.New(slog.NewTextHandler(&buf, nil)), "calendar")
	logger.Info("created")
	assert.Contains(t, buf.String(), "service=calendar")
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, KeyOperation, Operation("op").Key)
	assert.Equal(t, KeyService, Service("sheets").Key)
	assert.Equal(t, KeyStatus, Status(StatusSuccess).Key)

	chat := Chat(42)
	assert.Equal(t, KeyChat, chat.Key)
	assert.Equal(t, int64(42), chat.Value.Int64())

	state := State(fakeState("awaiting_date"))
	assert.Equal(t, KeyState, state.Key)
	assert.Equal(t, "awaiting_date", state.Value.String())
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("test error"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "test error", attr.Value.String())

	// nil errors produce an empty group that slog omits
	assert.Equal(t, "", Err(nil).Key)
}

func TestAnonymizeUser(t *testing.T) {
	hashed := AnonymizeUser("42")
	assert.Len(t, hashed, 21) // "user:" + 16 hex chars
	assert.Equal(t, "user:", hashed[:5])
	assert.Equal(t, hashed, AnonymizeUser("42"))
	assert.NotEqual(t, hashed, AnonymizeUser("43"))
	assert.Equal(t, "", AnonymizeUser(""))
}

func TestUserHash(t *testing.T) {
	attr := UserHash("42")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.Equal(t, AnonymizeUser("42"), attr.Value.String())
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"ya29.a_very_long_token", "[token:22 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeToken(tt.token))
		})
	}
}
