package ui

import (
	"context"
	"io"

	"spilljoin/pkg/execution/join"

	tea "github.com/charmbracelet/bubbletea"
)

// JoinFunc runs a join, reporting to monitor.
type JoinFunc func(ctx context.Context, monitor join.ExecutionMonitor) error

// RunWithProgress runs fn in the background while a progress view is drawn
// on out. Quitting the view cancels the join; the join's error is returned
// either way.
func RunWithProgress(ctx context.Context, title string, in io.Reader, out io.Writer, fn JoinFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, cancel), tea.WithInput(in), tea.WithOutput(out))

	joinErr := make(chan error, 1)
	go func() {
		monitor := join.NewContextMonitor(ctx, func(fraction float64, message string) {
			p.Send(ProgressMsg{Fraction: fraction, Message: message})
		})
		err := fn(ctx, monitor)
		joinErr <- err
		p.Send(DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-joinErr
		return err
	}
	return <-joinErr
}
