package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(90), c.PeakMemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_ForcedMemoryBypassesLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 10})

	c.ForceMemory(50)
	assert.Equal(t, int64(50), c.MemoryUsage())
	require.NoError(t, c.AcquireMemory(10), "forced bytes do not consume the semaphore")

	c.ReleaseForced(50)
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	require.NoError(t, c.AcquireWorker(context.Background()))
	c.ReleaseWorker()
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Zero(t, c.MemoryUsage())
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 1})
	require.NoError(t, c.AcquireWorker(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireWorker(ctx))

	c.ReleaseWorker()
	require.NoError(t, c.AcquireWorker(context.Background()))
}

func TestController_IOSplitsLargeRequests(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Twice the burst: the first burst is free, the rest waits about a second.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 2<<20))

	require.NoError(t, c.AcquireIO(context.Background(), 1024))
}
