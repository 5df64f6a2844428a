// Package pool provides typed object pools for allocation-free traversal and
// import. Objects are reset on Put so that Get always returns a clean value.
package pool

import "sync"

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	p     sync.Pool
	reset func(T)
}

// New creates a Pool. newFn builds fresh values; reset, if non-nil, clears a
// value before it is returned to the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		p:     sync.Pool{New: func() any { return newFn() }},
		reset: reset,
	}
}

// Get retrieves a value from the pool.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put returns a value to the pool for reuse.
func (p *Pool[T]) Put(v T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// Slice is a pool of reusable slices with a fixed initial capacity.
// Slices that grew beyond maxCap are dropped instead of pooled.
type Slice[E any] struct {
	pool   *Pool[*[]E]
	maxCap int
}

// NewSlice creates a Slice pool handing out slices of length zero and the
// given capacity.
func NewSlice[E any](capacity, maxCap int) *Slice[E] {
	return &Slice[E]{
		pool: New(func() *[]E {
			s := make([]E, 0, capacity)
			return &s
		}, func(s *[]E) { *s = (*s)[:0] }),
		maxCap: maxCap,
	}
}

// Get retrieves an empty slice.
func (s *Slice[E]) Get() *[]E { return s.pool.Get() }

// Put returns a slice to the pool.
func (s *Slice[E]) Put(v *[]E) {
	if s.maxCap > 0 && cap(*v) > s.maxCap {
		return
	}
	s.pool.Put(v)
}
