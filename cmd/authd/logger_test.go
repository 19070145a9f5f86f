package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slogLogger{log: newLogger(&buf, "json", false)}

	logger.Info("user %s logged in", "a@x.com")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "user a@x.com logged in", entry["msg"])
	assert.Equal(t, "authd", entry["component"])
}

func TestNewLogger_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slogLogger{log: newLogger(&buf, "text", true)}

	logger.Debug("token %d", 7)
	logger.Warn("careful")
	logger.Error("broken")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="token 7"`)
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "component=authd")
}
