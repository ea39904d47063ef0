package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"spilljoin/pkg/config"
	"spilljoin/pkg/execution/join"
	"spilljoin/pkg/logging"
	"spilljoin/pkg/storage"
	"spilljoin/pkg/table"
	"spilljoin/pkg/ui"

	"github.com/spf13/cobra"
)

// rowKeyFlag names the row key in --left-on and --right-on.
const rowKeyFlag = "$rowkey"

// namedTable is one output table with the name used for titles and files.
type namedTable struct {
	name  string
	table table.Table
}

func runJoin(cmd *cobra.Command, cfgFile, leftPath, rightPath string) (err error) {
	cfg, err := config.NewLoader().Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.ValidateJoin(); err != nil {
		return err
	}

	logCfg, err := cfg.Logging()
	if err != nil {
		return err
	}
	if logCfg.OutputPath == "" {
		logCfg.Writer = cmd.ErrOrStderr()
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { err = errors.Join(err, logging.Close()) }()

	opts, err := cfg.Engine()
	if err != nil {
		return err
	}
	newBuilder := table.NewMemBuilderFactory()
	if cfg.DiskTables {
		store, serr := storage.NewStore(nil, cfg.SpillDir)
		if serr != nil {
			return serr
		}
		defer func() { err = errors.Join(err, store.Close()) }()
		newBuilder = store.Factory()
		opts.NewBuilder = newBuilder
	}

	left, err := readInput(leftPath, cfg, newBuilder)
	if err != nil {
		return err
	}
	right, err := readInput(rightPath, cfg, newBuilder)
	if err != nil {
		return err
	}

	spec, err := buildSpecification(cfg, left, right)
	if err != nil {
		return err
	}

	logging.WithComponent("cli").Info("joining",
		"left", leftPath, "right", rightPath,
		"mode", cfg.Mode, "order", cfg.Order, "split", cfg.SplitOutput, "disk_tables", cfg.DiskTables)

	var (
		outputs []namedTable
		stats   join.Statistics
	)
	runFn := func(ctx context.Context, monitor join.ExecutionMonitor) error {
		opts.Monitor = monitor
		engine, err := join.NewHybridHashJoin(spec, opts)
		if err != nil {
			return err
		}
		outputs, stats, err = execute(ctx, engine, cfg.SplitOutput)
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Progress {
		title := fmt.Sprintf("%s ⋈ %s", filepath.Base(leftPath), filepath.Base(rightPath))
		err = ui.RunWithProgress(ctx, title, cmd.InOrStdin(), cmd.ErrOrStderr(), runFn)
	} else {
		err = runFn(ctx, join.NewContextMonitor(ctx, nil))
	}
	if err != nil {
		return err
	}

	if err := writeOutputs(cmd.OutOrStdout(), cfg, outputs); err != nil {
		return err
	}
	if cfg.Summary {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), ui.Summary("storemy-join", stats))
	}
	return nil
}

func readInput(path string, cfg *config.Config, newBuilder table.BuilderFactory) (table.Table, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	t, err := table.ScanCSV(f, table.CSVOptions{Comma: cfg.Comma(), KeyColumn: cfg.KeyColumn}, newBuilder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func buildSpecification(cfg *config.Config, left, right table.Table) (*join.Specification, error) {
	ls, err := join.NewTableSettings(left, joinColumns(cfg.LeftOn), includeColumns(left, cfg.LeftInclude))
	if err != nil {
		return nil, fmt.Errorf("left input: %w", err)
	}
	rs, err := join.NewTableSettings(right, joinColumns(cfg.RightOn), includeColumns(right, cfg.RightInclude))
	if err != nil {
		return nil, fmt.Errorf("right input: %w", err)
	}
	if cfg.LeftEstimate > 0 {
		ls = ls.WithRowCountEstimate(cfg.LeftEstimate)
	}
	if cfg.RightEstimate > 0 {
		rs = rs.WithRowCountEstimate(cfg.RightEstimate)
	}

	b, err := cfg.Specify(join.NewBuilder(ls, rs))
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func joinColumns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if n == rowKeyFlag {
			n = join.RowKeyColumn
		}
		out[i] = n
	}
	return out
}

func includeColumns(t table.Table, names []string) []string {
	if len(names) > 0 {
		return names
	}
	return append([]string(nil), t.Schema().FieldNames...)
}

func execute(ctx context.Context, engine *join.HybridHashJoin, split bool) ([]namedTable, join.Statistics, error) {
	if !split {
		res, err := engine.JoinOutputCombined(ctx)
		if err != nil {
			return nil, join.Statistics{}, err
		}
		return []namedTable{{name: "joined", table: res.Output.Table}}, res.Statistics, nil
	}

	res, err := engine.JoinOutputSplit(ctx)
	if err != nil {
		return nil, join.Statistics{}, err
	}
	var out []namedTable
	for _, nt := range []namedTable{
		{"matches", res.Output.Matches},
		{"left", res.Output.LeftOuter},
		{"right", res.Output.RightOuter},
	} {
		if nt.table != nil {
			out = append(out, nt)
		}
	}
	return out, res.Statistics, nil
}

func writeOutputs(stdout io.Writer, cfg *config.Config, outputs []namedTable) error {
	for i, nt := range outputs {
		if cfg.Output == "" {
			if cfg.SplitOutput && cfg.Format == config.FormatCSV {
				if i > 0 {
					_, _ = fmt.Fprintln(stdout)
				}
				_, _ = fmt.Fprintf(stdout, "# %s\n", nt.name)
			}
			if err := writeTable(stdout, cfg, nt); err != nil {
				return err
			}
			continue
		}

		path := cfg.Output
		if cfg.SplitOutput {
			path = tablePath(cfg.Output, nt.name)
		}
		if err := writeFile(path, cfg, nt); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, cfg *config.Config, nt namedTable) (err error) {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	return writeTable(f, cfg, nt)
}

func writeTable(w io.Writer, cfg *config.Config, nt namedTable) error {
	if cfg.Format == config.FormatTable {
		return ui.RenderTable(w, nt.name, nt.table)
	}
	keyHeader := cfg.KeyColumn
	if keyHeader == "" {
		keyHeader = "key"
	}
	return table.WriteCSV(w, nt.table, keyHeader)
}

// tablePath inserts name before the extension: out.csv -> out.matches.csv.
func tablePath(path, name string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + name + ext
}
