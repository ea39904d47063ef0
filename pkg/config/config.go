// Package config loads the settings of the storemy-join command.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// YAML file, SPILLJOIN_* environment variables, then explicitly set flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables: SPILLJOIN_MEMORY_BUDGET
// sets memory_budget.
const EnvPrefix = "SPILLJOIN_"

// DefaultFiles are looked up in the working directory when no file is given.
var DefaultFiles = []string{"spilljoin.yaml", "spilljoin.yml"}

// Output formats.
const (
	FormatCSV   = "csv"
	FormatTable = "table"
)

// Config is the merged configuration of one invocation.
type Config struct {
	// Join definition.
	Mode          string   `koanf:"mode"`
	Order         string   `koanf:"order"`
	LeftOn        []string `koanf:"left_on"`
	RightOn       []string `koanf:"right_on"`
	LeftInclude   []string `koanf:"left_include"`
	RightInclude  []string `koanf:"right_include"`
	Merge         bool     `koanf:"merge"`
	Comparison    string   `koanf:"comparison"`
	RowKeys       string   `koanf:"row_keys"`
	KeySeparator  string   `koanf:"key_separator"`
	ColumnSuffix  string   `koanf:"column_suffix"`
	SplitOutput   bool     `koanf:"split"`
	HashSide      string   `koanf:"hash_side"`
	LeftEstimate  int64    `koanf:"left_estimate"`
	RightEstimate int64    `koanf:"right_estimate"`

	// Engine resources. Sizes accept units such as "64MiB".
	MemoryBudget    string `koanf:"memory_budget"`
	AssumeMemoryLow bool   `koanf:"assume_memory_low"`
	Partitions      int    `koanf:"partitions"`
	MaxRecursion    int    `koanf:"max_recursion"`
	Parallelism     int    `koanf:"parallelism"`
	SpillDir        string `koanf:"spill_dir"`
	Compression     string `koanf:"compression"`
	SpillBlockSize  string `koanf:"spill_block_size"`
	SpillRate       string `koanf:"spill_rate"`
	BlockSize       int    `koanf:"block_size"`

	// Input and output.
	Delimiter  string `koanf:"delimiter"`
	KeyColumn  string `koanf:"key_column"`
	DiskTables bool   `koanf:"disk_tables"`
	Output     string `koanf:"output"`
	Format     string `koanf:"format"`
	Progress   bool   `koanf:"progress"`
	Summary    bool   `koanf:"summary"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	LogFile   string `koanf:"log_file"`
}

// Defaults returns the bottom configuration layer.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"mode":             "inner",
		"order":            "arbitrary",
		"merge":            false,
		"comparison":       "strict",
		"row_keys":         "concat",
		"key_separator":    "_",
		"column_suffix":    " (right)",
		"split":            false,
		"hash_side":        "auto",
		"memory_budget":    "256MiB",
		"partitions":       16,
		"max_recursion":    4,
		"parallelism":      1,
		"compression":      "lz4",
		"spill_block_size": "64KiB",
		"spill_rate":       "0",
		"block_size":       1024,
		"delimiter":        ",",
		"disk_tables":      false,
		"format":           FormatCSV,
		"summary":          true,
		"log_level":        "warn",
		"log_format":       "text",
	}
}

// Loader merges the configuration layers. The zero value is not usable; use
// NewLoader.
type Loader struct {
	k        *koanf.Koanf
	fileUsed string
}

// NewLoader returns an empty loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(".")}
}

// FileUsed is the YAML file merged by the last Load, or "".
func (l *Loader) FileUsed() string { return l.fileUsed }

// Load builds the configuration. cfgFile may be empty, in which case the
// DefaultFiles are tried. flags may be nil; only flags the user changed take
// part, with kebab-case names mapped to snake_case keys.
func (l *Loader) Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	l.k = koanf.New(".")
	l.fileUsed = ""

	if err := l.k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := findConfigFile(cfgFile)
	if path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		l.fileUsed = path
	}

	if err := l.k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := l.k.Load(posflag.ProviderWithFlag(flags, ".", l.k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dump renders the configuration merged by the last Load as YAML.
func (l *Loader) Dump() ([]byte, error) {
	return l.k.Marshal(yaml.Parser())
}

// envValue maps SPILLJOIN_LEFT_ON=a,b to left_on=[a b].
func envValue(key, value string) (string, interface{}) {
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if isListKey(name) {
		return name, splitList(value)
	}
	return name, value
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func isListKey(name string) bool {
	switch name {
	case "left_on", "right_on", "left_include", "right_include":
		return true
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseSize parses a byte size such as "64KiB", "1.5GB" or "4096".
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if v > 1<<62 {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return int64(v), nil
}
