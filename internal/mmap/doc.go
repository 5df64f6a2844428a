// Package mmap maps input files read-only into memory.
//
// Edge and node lists stored on the local file system are parsed straight
// from the mapping, so large inputs are paged in by the kernel instead of
// being copied through read buffers:
//
//	m, err := mmap.Open("edges.csv.zst")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	r := m.Reader()
//
// On Unix the file is mapped with mmap(2) and hints go to madvise(2). On
// Windows a read-only file view is used and hints are ignored. Other
// platforms read the whole file into memory.
//
// A Mapping is safe for concurrent readers. Slices returned by Bytes are
// invalid once Close returns.
package mmap
