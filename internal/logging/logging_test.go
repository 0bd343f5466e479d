package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("decision recorded", zap.String("decision_id", "sha256:abc"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "decision recorded", entry["msg"])
	assert.Equal(t, "sha256:abc", entry["decision_id"])
	assert.Contains(t, entry, "ts")
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "debug", "console")
	require.NoError(t, err)

	logger.Debug("cache miss")
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), "cache miss")
	assert.Contains(t, buf.String(), "DEBUG")
}

func TestInvalidSettings(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
