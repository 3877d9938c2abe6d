package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewWithWriter_JSON tests structured output and level gating.
func TestNewWithWriter_JSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Options{Level: "warn", Format: "json"})

	logger.Info().Msg("hidden")
	logger.Warn().Str("tool", "sql_query").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"tool":"sql_query"`)
	assert.Contains(t, out, `"message":"visible"`)
}

// TestNewWithWriter_File tests that the rotating file sink receives entries.
func TestNewWithWriter_File(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Options{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})

	logger.Debug().Msg("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

// TestSetLevel tests level parsing and its fallback.
func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	assert.Equal(t, zerolog.DebugLevel, SetLevel("DEBUG"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Equal(t, zerolog.InfoLevel, SetLevel("chatty"))
	assert.Equal(t, zerolog.InfoLevel, SetLevel(""))
}
