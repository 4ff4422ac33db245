package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsBothModes(t *testing.T) {
	prod, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, prod.Logger)

	dev, err := New(DevelopmentConfig())
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))
	assert.False(t, prod.Core().Enabled(zap.DebugLevel))
}

func TestToolConfig(t *testing.T) {
	cfg := ToolConfig("", false)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)

	l, err := New(ToolConfig("error", true))
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.WarnLevel))
	assert.NoError(t, l.Sync())
}

func TestFieldHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := (&Logger{Logger: zap.New(core)}).Named("preview").With(Handle("h1"))

	l.Debug("frame built", Buffer("buf_1"), Kind("css"), Client("ws_1"), Trace(""))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "preview", entry.LoggerName)
	assert.Equal(t, map[string]interface{}{
		KeyHandle: "h1",
		KeyBuffer: "buf_1",
		KeyKind:   "css",
		KeyClient: "ws_1",
	}, entry.ContextMap())
}

func TestNop(t *testing.T) {
	l := Nop().Named("x").With(zap.String("k", "v"))
	l.Info("discarded")
	assert.NoError(t, l.Sync())
}
