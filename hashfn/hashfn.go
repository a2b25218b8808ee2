// Package hashfn supplies the "reasonable scalar hash" default functors
// bulk operations fall back to when a caller does not provide one of its
// own.
package hashfn

import (
	"golang.org/x/crypto/sha3"
)

// Uint64 is the default functor for fixed-width integer keys: MurmurHash3's
// 64-bit finalizer, which mixes a scalar well enough to spread consecutive
// keys across a table without needing a seed.
func Uint64[T ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr](key T) uint64 {
	h := uint64(key)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Bytes is the default functor for variable-length byte/string keys: a
// SHA3-256 digest truncated to its first 64 bits. Slower than Uint64 per
// call. Slot keys are limited to 8 bytes, so no table in this module can
// hold a byte-slice or string key.
func Bytes(key []byte) uint64 {
	sum := sha3.Sum256(key)
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(sum[i])
	}
	return h
}

// String is Bytes over a string's bytes.
func String(key string) uint64 {
	return Bytes([]byte(key))
}
