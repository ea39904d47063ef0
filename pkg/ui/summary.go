package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"spilljoin/pkg/execution/join"
	"spilljoin/pkg/table"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

// Summary renders the statistics of a finished join as a bordered block.
func Summary(title string, stats join.Statistics) string {
	spilled := stats.Mode != join.InMemory
	badge := lipgloss.NewStyle().
		Background(palette.Severity(false, spilled)).
		Foreground(bgDark).
		Bold(true).
		Padding(0, 1).
		Render(stats.Mode.String())

	rows := [][2]string{
		{"join", stats.JoinID},
		{"hashed side", stats.HashedSide.String()},
		{"input rows", fmt.Sprintf("%s left / %s right", humanize.Comma(stats.LeftRows), humanize.Comma(stats.RightRows))},
		{"matches", humanize.Comma(stats.Matches)},
		{"unmatched", fmt.Sprintf("%s left / %s right", humanize.Comma(stats.LeftUnmatched), humanize.Comma(stats.RightUnmatched))},
		{"peak memory", humanize.IBytes(uint64(max(stats.PeakMemory, 0)))},
	}
	if spilled {
		rows = append(rows,
			[2]string{"partitions", fmt.Sprintf("%d (depth %d)", stats.Partitions, stats.MaxLevel)},
			[2]string{"spilled", fmt.Sprintf("%s in %d files", humanize.IBytes(uint64(max(stats.SpilledBytes, 0))), stats.SpillFiles)},
		)
	}
	if stats.SkewFallbacks > 0 {
		rows = append(rows, [2]string{"skew fallbacks", fmt.Sprint(stats.SkewFallbacks)})
	}
	rows = append(rows, [2]string{"duration", stats.Duration.Round(time.Millisecond).String()})

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left, titleStyle.UnsetMarginBottom().Render(title), " ", badge))
	lines = append(lines, ruleStyle.Render(strings.Repeat("─", 40)))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+valueStyle.Render(r[1]))
	}
	return summaryStyle.Render(strings.Join(lines, "\n"))
}

// RenderTable writes t as a text table with the row key in the first column.
func RenderTable(w io.Writer, title string, t table.Table) error {
	td := t.Schema()

	pt := prettytable.NewWriter()
	pt.SetOutputMirror(w)
	pt.SetStyle(prettytable.StyleLight)
	if title != "" {
		pt.SetTitle(title)
	}

	header := make(prettytable.Row, 0, td.NumFields()+1)
	header = append(header, "key")
	for _, name := range td.FieldNames {
		header = append(header, name)
	}
	pt.AppendHeader(header)

	rows := table.Rows(t, table.DefaultBlockSize)
	defer rows.Close()
	n := 0
	for {
		ok, err := rows.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row, err := rows.Next()
		if err != nil {
			return err
		}
		cells := make(prettytable.Row, 0, row.NumFields()+1)
		cells = append(cells, row.Key)
		for i := range row.NumFields() {
			cells = append(cells, row.Field(i).String())
		}
		pt.AppendRow(cells)
		n++
	}

	pt.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", n)
	return nil
}
