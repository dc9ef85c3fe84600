package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetOutput_DeveEscreverJSONNoWriter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelWarn)
	t.Cleanup(func() { SetLevel(slog.LevelInfo) })

	Info("ignorado")
	Warn("voto rejeitado", "item", 42)

	var linha map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &linha))
	assert.Equal(t, "voto rejeitado", linha["msg"])
	assert.Equal(t, float64(42), linha["item"])
}
