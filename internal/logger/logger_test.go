package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	log := New()
	entry := log.WithComponent("quote")
	require.Equal(t, "quote", entry.Entry.Data["component"])

	nested := entry.WithFields(Fields{"symbol": "ABC"}).WithComponent("fetch")
	require.Equal(t, "fetch", nested.Entry.Data["component"])
	require.Equal(t, "ABC", nested.Entry.Data["symbol"])
}

func TestConfigureInvalid(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := New()
	require.Error(t, log.Configure("loud", "json", "stdout", 0))
	require.Error(t, log.Configure("info", "xml", "stdout", 0))
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := New()
	path := filepath.Join(t.TempDir(), "quotes.log")
	require.NoError(t, log.Configure("debug", "text", path, 0))
	require.NoError(t, log.Configure("debug", "json", path, 7))
}

func TestJSONFieldNames(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := New()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithComponent("cache").Info("sweep")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "sweep", line["message"])
	require.Equal(t, "info", line["level"])
	require.Equal(t, "cache", line["component"])
	require.Contains(t, line, "timestamp")
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil).Logger)
	l := New()
	require.Same(t, l, OrDiscard(l))
}
