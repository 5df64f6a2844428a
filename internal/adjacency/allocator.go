package adjacency

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// MemoryAcquirer is charged for every page an allocator creates.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

const (
	// DefaultPageShift sets adjacency pages to 512 KiB.
	DefaultPageShift = 19
	// MinPageShift and MaxPageShift bound the page size in elements.
	MinPageShift = 9
	MaxPageShift = 30
	// PropertyShiftDelta is subtracted from the page shift for pages of
	// 8-byte property values, so both page kinds have the same byte size.
	PropertyShiftDelta = 3
	// MinPropertyPageShift is the smallest page shift of a list with
	// properties.
	MinPropertyPageShift = MinPageShift + PropertyShiftDelta
)

// ValidPageShift reports whether a builder can use shift.
func ValidPageShift(shift uint, hasProperty bool) bool {
	if shift < MinPageShift || shift > MaxPageShift {
		return false
	}
	return !hasProperty || shift >= MinPropertyPageShift
}

// Stats tracks allocator memory usage.
type Stats struct {
	Pages          uint64 // pages installed, including oversized ones
	OversizedPages uint64 // pages dedicated to a single run larger than a page
	BytesReserved  uint64 // bytes held by installed pages
}

type atomicStats struct {
	Pages          atomic.Uint64
	OversizedPages atomic.Uint64
	BytesReserved  atomic.Uint64
}

// Allocator is a shared page bump allocator. Workers never allocate from
// it directly: each obtains a LocalAllocator and bumps within its own page,
// so the only shared operations are one atomic page claim and one locked
// page table install per page.
//
// Addresses pack (pageIndex << pageShift) | offsetInPage. A reservation
// never straddles a page.
type Allocator[T any] struct {
	pageShift uint
	pageSize  int
	pageMask  uint64
	elemSize  int64

	next    atomic.Int64 // next page index to claim
	mu      sync.Mutex   // protects pages
	pages   [][]T
	charged atomic.Int64

	stats    atomicStats
	acquirer MemoryAcquirer
	released atomic.Bool
}

// NewAllocator creates an allocator with pages of 1<<pageShift elements.
// acquirer may be nil.
func NewAllocator[T any](pageShift uint, acquirer MemoryAcquirer) (*Allocator[T], error) {
	if pageShift < MinPageShift || pageShift > MaxPageShift {
		return nil, fmt.Errorf("adjacency: page shift %d out of range", pageShift)
	}
	var zero T
	return &Allocator[T]{
		pageShift: pageShift,
		pageSize:  1 << pageShift,
		pageMask:  1<<pageShift - 1,
		elemSize:  int64(unsafe.Sizeof(zero)),
		acquirer:  acquirer,
	}, nil
}

// PageShift returns the address shift.
func (a *Allocator[T]) PageShift() uint { return a.pageShift }

// Split unpacks an address.
func (a *Allocator[T]) Split(addr uint64) (page int, offset int) {
	return int(addr >> a.pageShift), int(addr & a.pageMask)
}

func (a *Allocator[T]) claimPage(size int) (uint64, []T, error) {
	bytes := int64(size) * a.elemSize
	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(bytes); err != nil {
			return 0, nil, err
		}
	}
	a.charged.Add(bytes)

	page := make([]T, size)
	idx := a.next.Add(1) - 1

	a.mu.Lock()
	if int(idx) >= len(a.pages) {
		grown := make([][]T, max(int(idx)+1, 2*len(a.pages)))
		copy(grown, a.pages)
		a.pages = grown
	}
	a.pages[idx] = page
	a.mu.Unlock()

	a.stats.Pages.Add(1)
	a.stats.BytesReserved.Add(uint64(bytes))
	if size > a.pageSize {
		a.stats.OversizedPages.Add(1)
	}
	return uint64(idx) << a.pageShift, page, nil
}

// NewLocal returns a worker-local allocator. It must not be shared between
// goroutines.
func (a *Allocator[T]) NewLocal() *LocalAllocator[T] {
	return &LocalAllocator[T]{global: a}
}

// Pages returns the page table. It must only be called after every
// LocalAllocator is done.
func (a *Allocator[T]) Pages() [][]T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pages[:a.next.Load()]
}

// Charged returns the bytes charged to the acquirer.
func (a *Allocator[T]) Charged() int64 { return a.charged.Load() }

// Stats returns a snapshot of allocator statistics.
func (a *Allocator[T]) Stats() Stats {
	return Stats{
		Pages:          a.stats.Pages.Load(),
		OversizedPages: a.stats.OversizedPages.Load(),
		BytesReserved:  a.stats.BytesReserved.Load(),
	}
}

// Release returns every charged byte to the acquirer and drops the pages.
// It is idempotent.
func (a *Allocator[T]) Release() {
	if !a.released.CompareAndSwap(false, true) {
		return
	}
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(a.charged.Load())
	}
	a.mu.Lock()
	a.pages = nil
	a.mu.Unlock()
}

// LocalAllocator bumps within a worker-owned page.
type LocalAllocator[T any] struct {
	global *Allocator[T]
	page   []T
	base   uint64
	top    int
}

// Reserve returns the address and storage of n contiguous elements.
// Runs larger than a page get a dedicated page of exactly n elements.
func (l *LocalAllocator[T]) Reserve(n int) (uint64, []T, error) {
	if n > l.global.pageSize {
		addr, page, err := l.global.claimPage(n)
		if err != nil {
			return 0, nil, err
		}
		return addr, page, nil
	}
	if l.page == nil || l.top+n > len(l.page) {
		addr, page, err := l.global.claimPage(l.global.pageSize)
		if err != nil {
			return 0, nil, err
		}
		l.page, l.base, l.top = page, addr, 0
	}
	addr := l.base | uint64(l.top)
	buf := l.page[l.top : l.top+n : l.top+n]
	l.top += n
	return addr, buf, nil
}
