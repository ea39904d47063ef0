package config

import (
	"os"
	"path/filepath"
	"testing"

	"spilljoin/pkg/execution/join"
	"spilljoin/pkg/logging"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helpers
// ============================================================================

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spilljoin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("mode", "inner", "")
	fs.String("memory-budget", "", "")
	fs.StringSlice("left-on", nil, "")
	fs.Int("partitions", 0, "")
	fs.Bool("merge", false, "")
	return fs
}

// ============================================================================
// Layering
// ============================================================================

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "inner", cfg.Mode)
	assert.Equal(t, "256MiB", cfg.MemoryBudget)
	assert.Equal(t, 16, cfg.Partitions)
	assert.Equal(t, "_", cfg.KeySeparator)
	assert.Equal(t, " (right)", cfg.ColumnSuffix)
	assert.Equal(t, FormatCSV, cfg.Format)
	assert.Equal(t, ',', cfg.Comma())
	assert.False(t, cfg.DiskTables)
}

func TestLoadBoolFromEnv(t *testing.T) {
	t.Setenv("SPILLJOIN_DISK_TABLES", "true")
	t.Setenv("SPILLJOIN_ASSUME_MEMORY_LOW", "1")

	cfg, err := NewLoader().Load("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.DiskTables)
	assert.True(t, cfg.AssumeMemoryLow)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeYAML(t, `
mode: left_outer
memory_budget: 8MiB
partitions: 8
left_on: [id]
merge: true
`)

	t.Run("file over defaults", func(t *testing.T) {
		l := NewLoader()
		cfg, err := l.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, path, l.FileUsed())
		assert.Equal(t, "left_outer", cfg.Mode)
		assert.Equal(t, "8MiB", cfg.MemoryBudget)
		assert.Equal(t, []string{"id"}, cfg.LeftOn)
		assert.True(t, cfg.Merge)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("SPILLJOIN_MEMORY_BUDGET", "2MiB")
		t.Setenv("SPILLJOIN_LEFT_ON", "a, b")
		cfg, err := NewLoader().Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "2MiB", cfg.MemoryBudget)
		assert.Equal(t, []string{"a", "b"}, cfg.LeftOn)
		assert.Equal(t, 8, cfg.Partitions)
	})

	t.Run("changed flags over env", func(t *testing.T) {
		t.Setenv("SPILLJOIN_MEMORY_BUDGET", "2MiB")
		fs := testFlags()
		require.NoError(t, fs.Parse([]string{"--memory-budget", "1MiB", "--left-on", "x,y"}))

		cfg, err := NewLoader().Load(path, fs)
		require.NoError(t, err)
		assert.Equal(t, "1MiB", cfg.MemoryBudget)
		assert.Equal(t, []string{"x", "y"}, cfg.LeftOn)
		assert.Equal(t, "left_outer", cfg.Mode, "unchanged flag must not override the file")
		assert.Equal(t, 8, cfg.Partitions)
		assert.True(t, cfg.Merge)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

// ============================================================================
// Validation
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Mode = "sideways" }, "join mode"},
		{"bad order", func(c *Config) { c.Order = "random" }, "output order"},
		{"bad row keys", func(c *Config) { c.RowKeys = "uuid" }, "row key mode"},
		{"bad comparison", func(c *Config) { c.Comparison = "fuzzy" }, "comparison mode"},
		{"bad hash side", func(c *Config) { c.HashSide = "middle" }, "hash side"},
		{"bad compression", func(c *Config) { c.Compression = "gzip" }, "compression"},
		{"bad size", func(c *Config) { c.MemoryBudget = "lots" }, "memory_budget"},
		{"negative partitions", func(c *Config) { c.Partitions = -1 }, "negative"},
		{"negative estimate", func(c *Config) { c.LeftEstimate = -5 }, "estimates"},
		{"long delimiter", func(c *Config) { c.Delimiter = ";;" }, "delimiter"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "output format"},
		{"bad log format", func(c *Config) { c.LogFormat = "yaml" }, "log format"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewLoader().Load("", nil)
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeYAML(t, "order: sideways\n")
	_, err := NewLoader().Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output order")
}

func TestValidateJoin(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateJoin())

	cfg.LeftOn = []string{"a", "b"}
	require.NoError(t, cfg.ValidateJoin())
	assert.Equal(t, []string{"a", "b"}, cfg.RightOn)

	cfg.RightOn = []string{"x"}
	assert.Error(t, cfg.ValidateJoin())
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"4096", 4096, false},
		{"64KiB", 64 << 10, false},
		{"256MiB", 256 << 20, false},
		{"1kB", 1000, false},
		{"many", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================================
// Conversion
// ============================================================================

func TestEngineOptions(t *testing.T) {
	cfg, err := NewLoader().Load("", nil)
	require.NoError(t, err)
	cfg.MemoryBudget = "1MiB"
	cfg.AssumeMemoryLow = true
	cfg.HashSide = "left"
	cfg.Compression = "zstd"
	cfg.SpillRate = "10MiB"
	cfg.Parallelism = 3

	opts, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), opts.MemoryBudgetBytes)
	assert.True(t, opts.AssumeMemoryLow)
	assert.Equal(t, join.HashSideLeft, opts.HashSide)
	assert.Equal(t, join.CompressionZstd, opts.Compression)
	assert.Equal(t, int64(10<<20), opts.SpillBytesPerSec)
	assert.Equal(t, 64<<10, opts.SpillBlockSize)
	assert.Equal(t, 3, opts.Parallelism)
	assert.Equal(t, 16, opts.NumPartitions)
	assert.NotNil(t, opts.NewBuilder)
}

func TestLoggingConfig(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "JSON", LogFile: "join.log"}
	lc, err := cfg.Logging()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "join.log", lc.OutputPath)
}
