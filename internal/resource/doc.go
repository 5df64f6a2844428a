// Package resource implements the Controller for global limits of graph
// imports.
//
// The Controller manages three resource types:
//
//   - Memory: Track and limit page memory of imported graphs (non-blocking, fail-fast)
//   - Concurrency: Limit imports running at the same time
//   - IO: Rate-limit input reads
//
// # Memory Management
//
// Admit checks an estimate against the remaining budget without reserving
// anything. AcquireMemory reserves page memory as builders allocate it and
// fails immediately with ErrMemoryLimitExceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.Admit(estimate.Max); err != nil {
//	    return err // rejected before allocating
//	}
//
// # IO Rate Limiting
//
//	reader := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
package resource
