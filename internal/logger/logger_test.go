package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendelo/checkout/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsLevelToInfo(t *testing.T) {
	log, err := New(config.Config{AppName: "checkout", AppVersion: "0.1.0", Environment: "test"})
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewHonorsConfiguredLevel(t *testing.T) {
	log, err := New(config.Config{LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.Config{LogLevel: "chatty"})
	assert.Error(t, err)
}
