package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"spilljoin/pkg/execution/join"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Progress model
// ============================================================================

func TestModelProgressAndDone(t *testing.T) {
	m := NewModel("join", nil)

	next, _ := m.Update(ProgressMsg{Fraction: 0.4, Message: "reading rows"})
	m = next.(Model)
	assert.InDelta(t, 0.4, m.fraction, 1e-9)
	assert.Contains(t, m.View(), "reading rows")
	assert.Contains(t, m.View(), "40%")

	next, cmd := m.Update(DoneMsg{})
	m = next.(Model)
	assert.True(t, m.Done())
	assert.NoError(t, m.Err())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "DONE")
}

func TestModelCancelKey(t *testing.T) {
	canceled := 0
	m := NewModel("join", func() { canceled++ })

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.Equal(t, 1, canceled, "cancel runs once")

	next, _ = m.Update(ProgressMsg{Fraction: 0.5, Message: "partition b1"})
	m = next.(Model)
	assert.Contains(t, m.View(), "canceling")

	next, _ = m.Update(DoneMsg{Err: errors.New("join cancelled")})
	m = next.(Model)
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "FAILED")
}

func TestModelWindowSize(t *testing.T) {
	m := NewModel("join", nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	assert.Equal(t, 22, next.(Model).bar.Width)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 300, Height: 10})
	assert.Equal(t, maxBarWidth, next.(Model).bar.Width)
}

// ============================================================================
// Rendering
// ============================================================================

func TestSummary(t *testing.T) {
	stats := join.Statistics{
		JoinID:       "j-1",
		Mode:         join.PartiallyInMemory,
		HashedSide:   join.SideRight,
		LeftRows:     1200,
		RightRows:    30,
		Matches:      45,
		Partitions:   3,
		SpilledBytes: 2048,
		SpillFiles:   6,
		Duration:     1500 * time.Millisecond,
	}

	out := Summary("storemy-join", stats)
	assert.Contains(t, out, "PARTIALLY_IN_MEMORY")
	assert.Contains(t, out, "1,200 left / 30 right")
	assert.Contains(t, out, "2.0 KiB in 6 files")
	assert.Contains(t, out, "1.5s")
	assert.NotContains(t, out, "skew fallbacks")

	inMemory := Summary("storemy-join", join.Statistics{Mode: join.InMemory})
	assert.NotContains(t, inMemory, "spilled")
}

func TestRenderTable(t *testing.T) {
	td := tuple.MustTupleDesc([]types.Type{types.IntType, types.StringType}, []string{"k", "v"})
	rows := []*tuple.Tuple{
		tuple.NewBuilder(td).WithKey("Row0").AddInt(1).AddString("a").MustBuild(),
		tuple.NewBuilder(td).WithKey("Row1").AddInt(2).AddMissing().MustBuild(),
	}
	mt, err := table.NewMemTable(td, rows)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, "matches", mt))
	out := buf.String()
	assert.Contains(t, out, "matches")
	assert.Contains(t, out, "Row1")
	assert.Contains(t, out, "?")
	assert.Contains(t, out, "(2 rows)")
}
