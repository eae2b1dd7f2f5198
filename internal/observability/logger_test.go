package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pontopology/internal/config"
)

type bufferSyncer struct{ bytes.Buffer }

func (b *bufferSyncer) Sync() error { return nil }

func TestConsoleLoggerColorsLevels(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bufferSyncer
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "pontopology",
		Colors:      config.ColorConfig{Info: "green"},
	}, &buf)

	GetLogger().Named("refresher").Info("snapshot built", zap.Int("nodes", 4))
	Sync()

	out := buf.String()
	assert.Contains(t, out, colorGreen+"INFO"+colorReset)
	assert.Contains(t, out, "pontopology.refresher.")
	assert.Contains(t, out, "snapshot built")
	assert.Contains(t, out, `"nodes": 4`)
}

func TestJSONLoggerAndLevelFilter(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bufferSyncer
	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "svc"}, &buf)

	l := GetLogger()
	l.Info("dropped")
	l.Warn("skipping record", zap.String("kind", "onu"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "svc", entry["logger"])
	assert.Equal(t, "onu", entry["kind"])
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bufferSyncer
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, &first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, &second)
	GetLogger().Info("hello")

	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestFileSink(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	path := filepath.Join(t.TempDir(), "pontopology.log")
	Initialize(config.LoggerConfig{Level: "info", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))
	GetLogger().Info("to file")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}
