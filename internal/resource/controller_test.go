package resource

import (
	"bytes"
	"context"
	"io"
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
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, int64(20), le.Required)
	assert.Equal(t, int64(10), le.Available)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())
	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_Admit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	require.NoError(t, c.Admit(100))
	assert.ErrorIs(t, c.Admit(101), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(0), c.MemoryUsage(), "admission never reserves")

	require.NoError(t, c.AcquireMemory(60))
	assert.ErrorIs(t, c.Admit(41), ErrMemoryLimitExceeded)

	unlimited := NewController(Config{})
	require.NoError(t, unlimited.Admit(1<<62))
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Imports(t *testing.T) {
	c := NewController(Config{MaxConcurrentImports: 2})

	require.NoError(t, c.AcquireImport(t.Context()))
	require.NoError(t, c.AcquireImport(t.Context()))
	assert.False(t, c.TryAcquireImport())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireImport(ctx), context.DeadlineExceeded)

	c.ReleaseImport()
	assert.True(t, c.TryAcquireImport())
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireMemory(10))
	require.NoError(t, c.Admit(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())
	require.NoError(t, c.AcquireImport(t.Context()))
	assert.True(t, c.TryAcquireImport())
	c.ReleaseImport()
	require.NoError(t, c.AcquireIO(t.Context(), 1<<30))
	assert.True(t, c.TryAcquireIO(1<<30))
	assert.Equal(t, 0, c.IOBurst())
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})
	assert.Equal(t, 1000, c.IOBurst())
	assert.True(t, c.TryAcquireIO(1000))
	assert.False(t, c.TryAcquireIO(1000))
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	data := bytes.Repeat([]byte("x"), 3<<20)

	r := NewRateLimitedReader(t.Context(), bytes.NewReader(data), c)
	buf := make([]byte, 2<<20)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 1<<20, "reads are capped at the burst size")

	unlimited := NewRateLimitedReader(t.Context(), bytes.NewReader(data), nil)
	got, err := io.ReadAll(unlimited)
	require.NoError(t, err)
	assert.Len(t, got, len(data))
}
