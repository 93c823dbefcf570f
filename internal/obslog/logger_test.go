package obslog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/oms-core/pkg/config"
)

func TestNewLoggerConsoleDestination(t *testing.T) {
	l, err := NewLogger(config.LoggingConfig{
		Level:                "info",
		Destination:          config.LoggingDestinationConsole,
		FlushIntervalSeconds: 1,
		BatchSize:            10,
	})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("engine started", map[string]interface{}{"symbol": "INTC"})
	l.flush()
	l.Stop()
}

func TestNewLoggerLocalFileDestinationWritesBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oms.log")
	l, err := NewLogger(config.LoggingConfig{
		Level:                "info",
		Destination:          config.LoggingDestinationLocalFile,
		LocalFilePath:        path,
		FlushIntervalSeconds: 60,
		BatchSize:            1,
	})
	require.NoError(t, err)

	l.Info("order rejected", map[string]interface{}{"order_id": "abc"})
	// batch_size=1 triggers an immediate flush; give the pool a moment.
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	assert.FileExists(t, path)
}

func TestLoggerBufferFlushesAtBatchSize(t *testing.T) {
	l, err := NewLogger(config.LoggingConfig{
		Level:                "info",
		Destination:          config.LoggingDestinationConsole,
		FlushIntervalSeconds: 3600,
		BatchSize:            2,
	})
	require.NoError(t, err)
	defer l.Stop()

	l.Info("one", nil)
	l.mu.Lock()
	assert.Len(t, l.buffer, 1)
	l.mu.Unlock()

	l.Info("two", nil)
	time.Sleep(20 * time.Millisecond)
	l.mu.Lock()
	assert.Len(t, l.buffer, 0)
	l.mu.Unlock()
}
