// Package hash provides the stable hashing primitives used across forge:
// 64-bit rule identifiers and longer content-hash namespace directories.
// Grounded on the sha256-based file hashing used by the retrieved corpus's
// filesystem scanner.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Names64 hashes a sequence of names (e.g. a rule's output artifact names,
// in declaration order) into a stable 64-bit identifier. Two calls with the
// same names in the same order always produce the same value.
func Names64(names ...string) uint64 {
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0}) // separator so "ab","c" != "a","bc"
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Content hashes an arbitrary sequence of byte strings into a stable,
// filesystem-safe hex digest suitable for namespacing output directories
// (e.g. <out_dir>/<Content(...)>/...).
func Content(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// ContentString is Content over string parts.
func ContentString(parts ...string) string {
	bs := make([][]byte, len(parts))
	for i, p := range parts {
		bs[i] = []byte(p)
	}
	return Content(bs...)
}
