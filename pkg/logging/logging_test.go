package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToWriter(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: LevelDebug, Format: "json", Writer: &buf}))
	assert.Error(t, Init(Config{}), "second Init must fail")

	WithPartition(WithJoin("j1"), 2, 5).Debug("partition done", "rows", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "partition done", rec["msg"])
	assert.Equal(t, "j1", rec["join_id"])
	assert.EqualValues(t, 2, rec["level"])
	assert.EqualValues(t, 5, rec["bucket"])
}

func TestLevelFiltering(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: LevelWarn, Writer: &buf}))
	GetLogger().Info("hidden")
	WithComponent("spill").Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "component=spill")

	SetLevel(LevelDebug)
	WithTable("left.csv").Debug("now visible")
	assert.Contains(t, buf.String(), "table=left.csv")
}

func TestInitToFile(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "logs", "join.log")
	require.NoError(t, Init(Config{Level: LevelInfo, OutputPath: path}))
	WithError(errors.New("disk full")).Error("spill failed")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `error="disk full"`)
	assert.Contains(t, string(data), "spill failed")
}

func TestGetLoggerBeforeInit(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	l := GetLogger()
	require.NotNil(t, l)
	assert.Same(t, l, GetLogger())

	var buf bytes.Buffer
	require.NoError(t, Init(Config{Writer: &buf}))
	assert.NotSame(t, l, GetLogger())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"debug": LevelDebug, "": LevelInfo, "warning": LevelWarn, "ERROR": LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, slog.LevelWarn, LevelWarn.Slog())
	assert.Equal(t, slog.LevelInfo, LogLevel("other").Slog())
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
