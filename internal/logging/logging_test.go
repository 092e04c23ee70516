package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithSession(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	defer Replace(nil)

	ctx := WithSession(context.Background(), "sess-1")
	assert.Equal(t, "sess-1", SessionID(ctx))

	WithContext(ctx).Info("hello")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "sess-1", entry.ContextMap()["session_id"])
}

func TestL_NopBeforeInit(t *testing.T) {
	Replace(nil)
	assert.NotNil(t, L())
	Info("dropped")
}

func TestSessionID_Missing(t *testing.T) {
	assert.Equal(t, "", SessionID(context.Background()))
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, Init(Config{Level: "info", Format: "json", OutputPath: "stderr"}))
	defer Replace(nil)

	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, globalLevel.Level())
	SetLevel("not-a-level")
	assert.Equal(t, zapcore.DebugLevel, globalLevel.Level())
	SetLevel("info")
}
