// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/agent-browser/internal/config"
)

// initForTest resets the singleton and initializes a logger that writes to
// the returned buffer. The global logger is a singleton, so every test must
// go through this to stay isolated.
func initForTest(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize_ConsoleColors(t *testing.T) {
	buf := initForTest(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "TestService",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Info("console message")

	output := buf.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "console message")
	assert.Contains(t, output, colorGreen)
	assert.Contains(t, output, colorReset)
}

func TestInitialize_JSONFormat(t *testing.T) {
	buf := initForTest(t, config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "JSONTest",
	})

	GetLogger().Warn("structured message", zap.String("key", "value"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "JSONTest", entry["logger"])
	assert.Equal(t, "structured message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestInitialize_LogFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := t.TempDir() + "/agent-browser-test.log"
	var buf bytes.Buffer
	Initialize(config.LoggerConfig{
		Level:   "debug",
		Format:  "json",
		LogFile: logFile,
		MaxSize: 1,
	}, zapcore.AddSync(&buf))

	GetLogger().Error("goes to file")
	Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "goes to file")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	buf := initForTest(t, config.LoggerConfig{Level: "info", ServiceName: "First"})

	// A second call must be a no-op; the singleton keeps the first config.
	Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))

	GetLogger().Info("test")
	assert.Contains(t, buf.String(), "First")
	assert.NotContains(t, buf.String(), "Second")
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
}

func TestGetLogger_ReturnsGlobal(t *testing.T) {
	initForTest(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
	assert.Equal(t, globalLogger.Load(), GetLogger())
}
