// Package outbuf implements per-worker output staging for retrieval-style
// bulk operations: instead of every matching probe doing its own atomic
// fetch-add on the global output cursor, matches are accumulated locally
// and flushed to the shared output slice in one reservation per buffer-full.
//
// This is the same "batch before you touch shared state" shape as a
// single-producer ring buffer, except the reservation target is a slice
// range rather than a wrap-around ring slot, and many independent buffers
// (one per worker) all reserve against the same counter.
package outbuf

import "github.com/vyasr/statictable/stream"

// Buffer stages up to cap(staged) records before flushing them, as a single
// contiguous copy, into a shared offset range of output reserved via
// cursor. One Buffer belongs to exactly one worker at a time.
type Buffer[T any] struct {
	staged []T
	output []T
	cursor *stream.Counter
}

// New constructs a Buffer with the given staging capacity that flushes into
// output, coordinating the reservation through cursor.
func New[T any](capacity int, output []T, cursor *stream.Counter) *Buffer[T] {
	return &Buffer[T]{
		staged: make([]T, 0, capacity),
		output: output,
		cursor: cursor,
	}
}

// Push stages one record, flushing first if the buffer is already full.
func (b *Buffer[T]) Push(v T) {
	if len(b.staged) == cap(b.staged) {
		b.Flush()
	}
	b.staged = append(b.staged, v)
}

// Flush reserves a contiguous range of output sized to the current fill
// level, copies the staged records into it, and resets the buffer. It is
// a no-op when nothing is staged. Call it once more after the last Push to
// flush the remainder, mirroring the kernel-exit flush this buffer models.
func (b *Buffer[T]) Flush() {
	n := len(b.staged)
	if n == 0 {
		return
	}
	base := b.cursor.Reserve(uint64(n))
	copy(b.output[base:base+uint64(n)], b.staged)
	b.staged = b.staged[:0]
}

// PairBuffer stages two parallel streams (e.g. keys and values) and flushes
// both at the same reserved offset, so the Nth entry of each output slice
// always describes the same match — the shape pair_retrieve needs.
type PairBuffer[A, B any] struct {
	stagedA []A
	stagedB []B
	outputA []A
	outputB []B
	cursor  *stream.Counter
}

// NewPair constructs a PairBuffer flushing into outputA/outputB in lockstep.
func NewPair[A, B any](capacity int, outputA []A, outputB []B, cursor *stream.Counter) *PairBuffer[A, B] {
	return &PairBuffer[A, B]{
		stagedA: make([]A, 0, capacity),
		stagedB: make([]B, 0, capacity),
		outputA: outputA,
		outputB: outputB,
		cursor:  cursor,
	}
}

// Push stages one (a, b) pair, flushing first if full.
func (b *PairBuffer[A, B]) Push(a A, v B) {
	if len(b.stagedA) == cap(b.stagedA) {
		b.Flush()
	}
	b.stagedA = append(b.stagedA, a)
	b.stagedB = append(b.stagedB, v)
}

// Flush reserves one offset for both streams and copies each in turn.
func (b *PairBuffer[A, B]) Flush() {
	n := len(b.stagedA)
	if n == 0 {
		return
	}
	base := b.cursor.Reserve(uint64(n))
	copy(b.outputA[base:base+uint64(n)], b.stagedA)
	copy(b.outputB[base:base+uint64(n)], b.stagedB)
	b.stagedA = b.stagedA[:0]
	b.stagedB = b.stagedB[:0]
}
