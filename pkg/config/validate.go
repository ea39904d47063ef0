package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"spilljoin/pkg/execution/join"
	"spilljoin/pkg/logging"
	"spilljoin/pkg/types"
)

// Validate checks that every value parses. Join columns are checked
// separately by ValidateJoin so that commands not running a join can load
// the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := join.ParseJoinMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := join.ParseOutputOrder(c.Order); err != nil {
		errs = append(errs, err)
	}
	if _, err := join.ParseRowKeyMode(c.RowKeys); err != nil {
		errs = append(errs, err)
	}
	if _, err := types.ParseComparisonMode(c.Comparison); err != nil {
		errs = append(errs, err)
	}
	if _, err := join.ParseHashSide(c.HashSide); err != nil {
		errs = append(errs, err)
	}
	if _, err := join.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]string{
		"memory_budget":    c.MemoryBudget,
		"spill_block_size": c.SpillBlockSize,
		"spill_rate":       c.SpillRate,
	} {
		if _, err := ParseSize(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Partitions < 0 || c.MaxRecursion < 0 || c.Parallelism < 0 || c.BlockSize < 0 {
		errs = append(errs, errors.New("partitions, max_recursion, parallelism and block_size must not be negative"))
	}
	if c.LeftEstimate < 0 || c.RightEstimate < 0 {
		errs = append(errs, errors.New("row count estimates must not be negative"))
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter))
	}
	switch c.Format {
	case FormatCSV, FormatTable:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q (csv|table)", c.Format))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (text|json)", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ValidateJoin checks the join column lists. An empty right_on reuses
// left_on.
func (c *Config) ValidateJoin() error {
	if len(c.LeftOn) == 0 {
		return errors.New("left_on is required\nHint: pass --left-on with one or more column names")
	}
	if len(c.RightOn) == 0 {
		c.RightOn = append([]string(nil), c.LeftOn...)
	}
	if len(c.LeftOn) != len(c.RightOn) {
		return fmt.Errorf("left_on has %d columns but right_on has %d", len(c.LeftOn), len(c.RightOn))
	}
	return nil
}

// Comma is the CSV field delimiter.
func (c *Config) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// Specify applies the join definition to b.
func (c *Config) Specify(b *join.Builder) (*join.Builder, error) {
	mode, err := join.ParseJoinMode(c.Mode)
	if err != nil {
		return nil, err
	}
	order, err := join.ParseOutputOrder(c.Order)
	if err != nil {
		return nil, err
	}
	keys, err := join.ParseRowKeyMode(c.RowKeys)
	if err != nil {
		return nil, err
	}
	comparison, err := types.ParseComparisonMode(c.Comparison)
	if err != nil {
		return nil, err
	}
	return b.Mode(mode).
		OutputOrder(order).
		MergeJoinColumns(c.Merge).
		ComparisonMode(comparison).
		RowKeys(keys).
		RowKeySeparator(c.KeySeparator).
		ColumnSuffix(c.ColumnSuffix), nil
}

// Engine returns the engine options. Monitor and output builders are left
// for the caller.
func (c *Config) Engine() (join.Options, error) {
	opts := join.DefaultOptions()

	hashSide, err := join.ParseHashSide(c.HashSide)
	if err != nil {
		return opts, err
	}
	compression, err := join.ParseCompression(c.Compression)
	if err != nil {
		return opts, err
	}
	budget, err := ParseSize(c.MemoryBudget)
	if err != nil {
		return opts, err
	}
	spillBlock, err := ParseSize(c.SpillBlockSize)
	if err != nil {
		return opts, err
	}
	rate, err := ParseSize(c.SpillRate)
	if err != nil {
		return opts, err
	}

	opts.NumPartitions = c.Partitions
	opts.MaxRecursionDepth = c.MaxRecursion
	opts.Parallelism = c.Parallelism
	opts.MemoryBudgetBytes = budget
	opts.AssumeMemoryLow = c.AssumeMemoryLow
	opts.HashSide = hashSide
	opts.SpillDir = c.SpillDir
	opts.Compression = compression
	opts.SpillBlockSize = int(spillBlock)
	opts.SpillBytesPerSec = rate
	opts.BlockSize = c.BlockSize
	return opts, nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() (logging.Config, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		Level:      level,
		OutputPath: c.LogFile,
		Format:     strings.ToLower(c.LogFormat),
	}, nil
}
