package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputWritesFormattedMessage(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("info")

	Info("loan %s created", "abc-123")
	Debug("hidden %d", 1)

	out := buf.String()
	assert.Contains(t, out, "loan abc-123 created")
	assert.Contains(t, out, "[info]")
	assert.NotContains(t, out, "hidden")
}

func TestSetLevelFallsBackToInfo(t *testing.T) {
	SetLevel("not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	SetLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	SetLevel("info")
}

func TestInitFileOnlyCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	path, err := InitFileOnly(dir)
	require.NoError(t, err)
	defer Close()

	assert.Equal(t, dir, filepath.Dir(path))
	Warn("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
