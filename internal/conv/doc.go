// Package conv provides checked integer conversions.
//
// Node ids arrive as uint64 from untrusted input while internal indices,
// counts and page offsets are int64 or int. Every narrowing or sign change
// on that boundary goes through this package and fails instead of wrapping.
//
// Conversions that are bounded by construction, such as loop indices over a
// band, use plain casts.
package conv
