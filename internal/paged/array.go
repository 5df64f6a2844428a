// Package paged implements huge arrays as a table of fixed-size pages.
//
// An Array never moves an element once written: growth appends pages to the
// page table and never reallocates existing pages, except for widening a
// partial tail page during single-threaded growth.
package paged

import (
	"fmt"
	"unsafe"
)

const (
	// PageShift determines the number of elements per page.
	// 14 bits = 16384 elements per page.
	PageShift = 14
	PageSize  = 1 << PageShift
	pageMask  = PageSize - 1

	sliceHeaderBytes = 24
)

// Array is a logically huge array addressed by a 64-bit index.
//
// Concurrent Get calls are safe. Concurrent Set calls are safe as long as
// they target distinct indices and no growth happens at the same time.
// EnsureCapacity and EnsurePage must run single-threaded or under the
// owner's lock.
type Array[T any] struct {
	pages    [][]T
	size     uint64
	capacity uint64
	sparse   bool
}

// New creates an Array of the given size with every page allocated.
// The last page is trimmed to the exact remainder.
func New[T any](size uint64) *Array[T] {
	n := PageCount(size)
	pages := make([][]T, n)
	for i := range pages {
		pages[i] = make([]T, pageLen(size, i))
	}
	return &Array[T]{pages: pages, size: size, capacity: size}
}

// NewSparse creates an Array of the given size whose pages are allocated
// on demand through EnsurePage. Accessing an unallocated page panics.
func NewSparse[T any](size uint64) *Array[T] {
	n := PageCount(size)
	return &Array[T]{
		pages:    make([][]T, n),
		size:     size,
		capacity: uint64(n) * PageSize,
		sparse:   true,
	}
}

// Get returns the element at index i.
func (a *Array[T]) Get(i uint64) T {
	if i >= a.size {
		panic(fmt.Sprintf("paged: index %d out of range [0, %d)", i, a.size))
	}
	page := a.pages[i>>PageShift]
	if page == nil {
		panic(fmt.Sprintf("paged: page %d of index %d not allocated", i>>PageShift, i))
	}
	return page[i&pageMask]
}

// Set stores v at index i.
func (a *Array[T]) Set(i uint64, v T) {
	if i >= a.size {
		panic(fmt.Sprintf("paged: index %d out of range [0, %d)", i, a.size))
	}
	page := a.pages[i>>PageShift]
	if page == nil {
		panic(fmt.Sprintf("paged: page %d of index %d not allocated", i>>PageShift, i))
	}
	page[i&pageMask] = v
}

// Size returns the logical number of elements.
func (a *Array[T]) Size() uint64 { return a.size }

// Capacity returns the number of addressable elements without growth.
func (a *Array[T]) Capacity() uint64 { return a.capacity }

// PageCount returns the number of page table entries.
func (a *Array[T]) PageCount() int { return len(a.pages) }

// Page returns page i. The slice aliases the array storage.
// It is nil for unallocated pages of a sparse array.
func (a *Array[T]) Page(i int) []T { return a.pages[i] }

// EnsurePage allocates page i of a sparse array if needed.
func (a *Array[T]) EnsurePage(i int) []T {
	if i >= len(a.pages) {
		panic(fmt.Sprintf("paged: page %d out of range [0, %d)", i, len(a.pages)))
	}
	if a.pages[i] == nil {
		a.pages[i] = make([]T, PageSize)
	}
	return a.pages[i]
}

// EnsureCapacity grows the array so that indices below size are
// addressable. It never shrinks. New pages are allocated eagerly unless
// the array is sparse.
func (a *Array[T]) EnsureCapacity(size uint64) {
	if size > a.capacity {
		if n := len(a.pages); n > 0 && a.pages[n-1] != nil && len(a.pages[n-1]) < PageSize {
			full := make([]T, PageSize)
			copy(full, a.pages[n-1])
			a.pages[n-1] = full
		}
		for uint64(len(a.pages))*PageSize < size {
			var page []T
			if !a.sparse {
				page = make([]T, PageSize)
			}
			a.pages = append(a.pages, page)
		}
		a.capacity = uint64(len(a.pages)) * PageSize
	}
	if size > a.size {
		a.size = size
	}
}

// Fill sets every allocated element to v.
func (a *Array[T]) Fill(v T) {
	for _, page := range a.pages {
		for i := range page {
			page[i] = v
		}
	}
}

// ForEach calls fn for every allocated element in index order until fn
// returns false.
func (a *Array[T]) ForEach(fn func(i uint64, v T) bool) {
	for p, page := range a.pages {
		base := uint64(p) << PageShift
		for j, v := range page {
			i := base + uint64(j)
			if i >= a.size || !fn(i, v) {
				return
			}
		}
	}
}

// MemoryUsage returns the number of bytes held by allocated pages and the
// page table.
func (a *Array[T]) MemoryUsage() uint64 {
	var zero T
	elem := uint64(unsafe.Sizeof(zero))
	total := uint64(len(a.pages)) * sliceHeaderBytes
	for _, page := range a.pages {
		total += uint64(len(page)) * elem
	}
	return total
}

// PageCount returns the number of pages needed for size elements.
func PageCount(size uint64) int {
	return int((size + pageMask) >> PageShift)
}

// BytesFor returns the memory an Array[T] of the given size occupies
// when created with New.
func BytesFor[T any](size uint64) uint64 {
	var zero T
	return size*uint64(unsafe.Sizeof(zero)) + uint64(PageCount(size))*sliceHeaderBytes
}

func pageLen(size uint64, page int) int {
	if rest := size - uint64(page)*PageSize; rest < PageSize {
		return int(rest)
	}
	return PageSize
}
