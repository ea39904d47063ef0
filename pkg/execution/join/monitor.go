package join

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ExecutionMonitor is the engine's view of its caller: it is polled for
// cancellation and told about progress.
type ExecutionMonitor interface {
	// CheckCanceled returns a non-nil error once the caller wants the join
	// to stop.
	CheckCanceled() error
	// SetProgress reports a fraction in [0, 1] with a short message.
	SetProgress(fraction float64, message string)
}

// ProgressFunc receives progress updates.
type ProgressFunc func(fraction float64, message string)

// progressInterval caps how often intermediate updates reach a ProgressFunc.
const progressInterval = 100 * time.Millisecond

type contextMonitor struct {
	ctx context.Context
	fn  ProgressFunc

	mu        sync.Mutex
	last      float64
	sometimes rate.Sometimes
}

// NewContextMonitor returns a monitor that is canceled with ctx and forwards
// progress to fn, which may be nil. Reported fractions never decrease, and
// intermediate updates are rate limited; 0 and 1 always pass.
func NewContextMonitor(ctx context.Context, fn ProgressFunc) ExecutionMonitor {
	return &contextMonitor{ctx: ctx, fn: fn, sometimes: rate.Sometimes{Interval: progressInterval}}
}

func (m *contextMonitor) CheckCanceled() error {
	return m.ctx.Err()
}

func (m *contextMonitor) SetProgress(fraction float64, message string) {
	if m.fn == nil {
		return
	}
	fraction = min(max(fraction, 0), 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if fraction < m.last {
		fraction = m.last
	}
	m.last = fraction
	if fraction == 0 || fraction == 1 {
		m.fn(fraction, message)
		return
	}
	m.sometimes.Do(func() { m.fn(fraction, message) })
}
