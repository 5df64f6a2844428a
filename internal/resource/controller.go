package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentImports is the maximum number of imports running at once.
	// If 0, defaults to 1.
	MaxConcurrentImports int64

	// IOLimitBytesPerSec is the maximum input throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages global resources (memory, import slots, input IO).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Concurrency
	importSem *semaphore.Weighted

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentImports <= 0 {
		cfg.MaxConcurrentImports = 1
	}

	c := &Controller{
		cfg:       cfg,
		importSem: semaphore.NewWeighted(cfg.MaxConcurrentImports),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// LimitError reports a rejected admission or reservation.
type LimitError struct {
	Required  int64
	Available int64
	Limit     int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded: %d bytes required, %d of %d available", e.Required, e.Available, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrMemoryLimitExceeded }

// Admit checks whether bytes could be reserved right now without reserving
// them. It is used to reject work up front from an estimate.
func (c *Controller) Admit(bytes int64) error {
	if c == nil || c.memSem == nil || bytes <= 0 {
		return nil
	}
	available := c.cfg.MemoryLimitBytes - c.memUsed.Load()
	if bytes > available {
		return &LimitError{Required: bytes, Available: available, Limit: c.cfg.MemoryLimitBytes}
	}
	return nil
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return &LimitError{Required: bytes, Available: c.cfg.MemoryLimitBytes - c.memUsed.Load(), Limit: c.cfg.MemoryLimitBytes}
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireImport reserves an import slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireImport(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.importSem.Acquire(ctx, 1)
}

// TryAcquireImport attempts to reserve an import slot without blocking.
func (c *Controller) TryAcquireImport() bool {
	if c == nil {
		return true
	}
	return c.importSem.TryAcquire(1)
}

// ReleaseImport releases an import slot.
func (c *Controller) ReleaseImport() {
	if c == nil {
		return
	}
	c.importSem.Release(1)
}

// IOBurst returns the largest single IO acquisition, or 0 if unlimited.
func (c *Controller) IOBurst() int {
	if c == nil || c.ioLimiter == nil {
		return 0
	}
	return c.ioLimiter.Burst()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
// Returns true if tokens were acquired, false otherwise.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
