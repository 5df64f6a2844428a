// Package bitset provides a lock-free segmented bitset for concurrent access.
//
// Architecture:
//   - Segmented design: 64KB segments (1024 uint64 words = 65536 bits each)
//   - Lock-free: atomic.Uint64 words, fixed size at construction
//
// Used internally to assert that import shards claim every node exactly once.
package bitset
