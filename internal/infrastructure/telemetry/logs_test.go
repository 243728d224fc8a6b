package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newEnabledLoggerProvider builds a provider whose exporter dials lazily, so no
// collector is needed.
func newEnabledLoggerProvider(t *testing.T) *LoggerProvider {
	t.Helper()
	original := global.GetLoggerProvider()

	lp, err := NewLoggerProvider(context.Background(), Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999",
		ServiceName:       "test-service",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = lp.Shutdown(context.Background())
		global.SetLoggerProvider(original)
	})
	return lp
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, Config{Enabled: false, CollectorEndpoint: "localhost:14317"}, nil)
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewLoggerProvider_Enabled(t *testing.T) {
	lp := newEnabledLoggerProvider(t)
	assert.True(t, lp.IsEnabled())
	assert.Same(t, lp.provider, global.GetLoggerProvider())
}

func TestNewZapOTELCore_Disabled(t *testing.T) {
	disabled, err := NewLoggerProvider(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)

	for name, lp := range map[string]*LoggerProvider{"nil provider": nil, "disabled provider": disabled} {
		t.Run(name, func(t *testing.T) {
			core := NewZapOTELCore(lp, "test-service", zapcore.InfoLevel)
			assert.False(t, core.Enabled(zapcore.ErrorLevel))
		})
	}
}

func TestNewZapOTELCore_Levels(t *testing.T) {
	lp := newEnabledLoggerProvider(t)

	t.Run("debug level is unfiltered", func(t *testing.T) {
		core := NewZapOTELCore(lp, "test-service", zapcore.DebugLevel)
		_, filtered := core.(*levelFilterCore)
		assert.False(t, filtered)
		assert.True(t, core.Enabled(zapcore.DebugLevel))
	})

	t.Run("warn level filters info", func(t *testing.T) {
		core := NewZapOTELCore(lp, "test-service", zapcore.WarnLevel)
		_, filtered := core.(*levelFilterCore)
		assert.True(t, filtered)
		assert.False(t, core.Enabled(zapcore.InfoLevel))
		assert.True(t, core.Enabled(zapcore.WarnLevel))
		assert.True(t, core.Enabled(zapcore.ErrorLevel))
	})
}

func TestLevelFilterCore(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: observed, minLevel: zapcore.WarnLevel}

	log := zap.New(core.With([]zapcore.Field{zap.String("record_number", "INV-0001")}))
	log.Info("layout started")
	log.Warn("logo unavailable")
	log.Error("serialization failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "logo unavailable", entries[0].Message)
	assert.Equal(t, "serialization failed", entries[1].Message)
	assert.Equal(t, "INV-0001", entries[0].ContextMap()["record_number"])
}

func TestNewBridgedLogger(t *testing.T) {
	base, baseLogs := observer.New(zapcore.InfoLevel)
	second, secondLogs := observer.New(zapcore.WarnLevel)

	log := NewBridgedLogger(base, second)
	log.Info("document rendered", zap.Int("pages", 2))
	log.Warn("totals mismatch")

	assert.Equal(t, 2, baseLogs.Len())
	require.Equal(t, 1, secondLogs.Len())
	assert.Equal(t, "totals mismatch", secondLogs.All()[0].Message)
}
