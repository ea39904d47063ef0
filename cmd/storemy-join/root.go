package main

import (
	"fmt"

	"spilljoin/pkg/config"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// NewRootCmd returns the storemy-join command tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "storemy-join LEFT.csv RIGHT.csv",
		Short: "Equi-join two CSV files, spilling to disk when memory runs low",
		Long: `storemy-join computes inner, outer and anti equi-joins of two CSV files.

CSV headers name columns as "name:type" (int, float, string, bool); a bare
name is a string column. Empty cells and "?" are missing values and never
match. Settings are read from spilljoin.yaml, SPILLJOIN_* environment
variables and flags, in increasing precedence.`,
		Args:          cobra.ExactArgs(2),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd, cfgFile, args[0], args[1])
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./spilljoin.yaml)")
	addJoinFlags(rootCmd)

	rootCmd.AddCommand(newConfigCommand(&cfgFile))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func addJoinFlags(cmd *cobra.Command) {
	d := config.Defaults()
	f := cmd.Flags()

	f.StringP("mode", "m", d["mode"].(string), "join mode (inner|left_outer|right_outer|full_outer|left_anti|right_anti)")
	f.String("order", d["order"].(string), "output order (arbitrary|probe_hash|left_right)")
	f.StringSlice("left-on", nil, "left join columns; \"$rowkey\" joins on the row key")
	f.StringSlice("right-on", nil, "right join columns (default: same as --left-on)")
	f.StringSlice("left-include", nil, "left columns to output (default: all)")
	f.StringSlice("right-include", nil, "right columns to output (default: all)")
	f.Bool("merge", false, "merge join columns into a single output column")
	f.String("comparison", d["comparison"].(string), "join cell comparison (strict|as_string|numeric_as_long)")
	f.String("row-keys", d["row_keys"].(string), "output row keys (concat|sequence|retain)")
	f.String("key-separator", d["key_separator"].(string), "separator of concatenated row keys")
	f.String("column-suffix", d["column_suffix"].(string), "suffix for duplicate output column names")
	f.Bool("split", false, "write matches and unmatched rows as separate tables")
	f.String("hash-side", d["hash_side"].(string), "input kept in memory (auto|left|right)")
	f.Int64("left-estimate", 0, "override the left row count estimate")
	f.Int64("right-estimate", 0, "override the right row count estimate")

	f.String("memory-budget", d["memory_budget"].(string), "memory for the hash index, e.g. 64MiB")
	f.Bool("assume-memory-low", false, "partition to disk from the start")
	f.Int("partitions", d["partitions"].(int), "partitions per spill pass")
	f.Int("max-recursion", d["max_recursion"].(int), "repartitioning depth before joining in memory")
	f.Int("parallelism", d["parallelism"].(int), "spilled partitions joined concurrently")
	f.String("spill-dir", "", "parent directory of spill files (default: system temp)")
	f.String("compression", d["compression"].(string), "spill compression (lz4|snappy|zstd|none)")
	f.String("spill-block-size", d["spill_block_size"].(string), "spill file block size")
	f.String("spill-rate", d["spill_rate"].(string), "spill write limit per second, 0 for none")
	f.Int("block-size", d["block_size"].(int), "rows per input read")

	f.String("delimiter", d["delimiter"].(string), "CSV field delimiter")
	f.String("key-column", "", "CSV column holding row keys (default: generated Row0, Row1, ...)")
	f.Bool("disk-tables", false, "keep inputs and results in row files under --spill-dir")
	f.StringP("output", "o", "", "output file (default: stdout); with --split, the name of each table is inserted before the extension")
	f.String("format", d["format"].(string), "output format (csv|table)")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.Bool("summary", true, "print execution statistics on stderr")

	f.String("log-level", d["log_level"].(string), "log level (debug|info|warn|error)")
	f.String("log-format", d["log_format"].(string), "log format (text|json)")
	f.String("log-file", "", "log file (default: stderr)")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"inner", "left_outer", "right_outer", "full_outer", "left_anti", "right_anti"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("order", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"arbitrary", "probe_hash", "left_right"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("comparison", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"strict", "as_string", "numeric_as_long"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("compression", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"lz4", "snappy", "zstd", "none"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func newConfigCommand(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  `Merge defaults, the config file, SPILLJOIN_* variables and flags, and print the result as YAML.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader()
			if _, err := loader.Load(*cfgFile, cmd.Flags()); err != nil {
				return err
			}
			out, err := loader.Dump()
			if err != nil {
				return err
			}
			if used := loader.FileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	addJoinFlags(cmd)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "storemy-join v%s\n", Version)
		},
	}
}
