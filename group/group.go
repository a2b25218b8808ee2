// Package group implements the cooperative-group probing protocol: the
// group-wide steps a real warp would run in lockstep (ballot for a match,
// ballot for an empty lane, shuffle a result back to every lane) collapse
// to a sequential scan over a cg_size-wide window, since a goroutine has no
// lane to synchronize with but itself. One goroutine owns one Window for
// the lifetime of one probing operation; concurrency comes from many
// goroutines each owning a different Window over the same slot array.
package group

import (
	"github.com/vyasr/statictable/probe"
	"github.com/vyasr/statictable/slot"
)

// Mode selects whether a Window enforces key uniqueness on Insert.
type Mode int

const (
	// UniqueKeys rejects an Insert whose key already occupies some slot
	// along its probe sequence — the map's semantics.
	UniqueKeys Mode = iota
	// DuplicateKeys allows any number of slots to hold the same key — the
	// multimap's semantics.
	DuplicateKeys
)

// Window scans cg_size consecutive (wrapped) slots at a time against a
// slot array, using seq to pick successive windows. It holds no mutable
// state of its own beyond its fields, so it is cheap to construct once per
// probing operation.
type Window[K comparable, V any] struct {
	arr    *slot.Array[K, V]
	seq    probe.Sequence
	cgSize int
	equal  func(K, K) bool
	mode   Mode
}

// New constructs a Window over arr, probing with seq in groups of cgSize
// lanes, using equal to compare keys (never used to recognize emptiness —
// that is always the array's own bitwise sentinel check).
func New[K comparable, V any](arr *slot.Array[K, V], seq probe.Sequence, cgSize int, equal func(K, K) bool, mode Mode) *Window[K, V] {
	if cgSize < 1 {
		cgSize = 1
	}
	return &Window[K, V]{arr: arr, seq: seq, cgSize: cgSize, equal: equal, mode: mode}
}

func (w *Window[K, V]) laneIndex(base, lane int) int {
	idx := base + lane
	if cap := w.arr.Capacity(); idx >= cap {
		idx -= cap
	}
	return idx
}

// anyMatch reports whether some occupied lane in the window starting at
// base already holds k.
func (w *Window[K, V]) anyMatch(base int, k K) bool {
	for lane := 0; lane < w.cgSize; lane++ {
		idx := w.laneIndex(base, lane)
		if !w.arr.IsEmptyKey(idx) && w.equal(w.arr.LoadKey(idx), k) {
			return true
		}
	}
	return false
}

// lowestEmptyLane returns the slot index of the lowest-indexed empty lane
// in the window starting at base, emulating the group's empty-ballot plus
// find-first-set.
func (w *Window[K, V]) lowestEmptyLane(base int) (idx int, ok bool) {
	for lane := 0; lane < w.cgSize; lane++ {
		idx := w.laneIndex(base, lane)
		if w.arr.IsEmptyKey(idx) {
			return idx, true
		}
	}
	return 0, false
}

// matchLane returns the slot index of the lowest-indexed lane in the
// window starting at base whose occupied key equals k.
func (w *Window[K, V]) matchLane(base int, k K) (idx int, ok bool) {
	for lane := 0; lane < w.cgSize; lane++ {
		idx := w.laneIndex(base, lane)
		if !w.arr.IsEmptyKey(idx) && w.equal(w.arr.LoadKey(idx), k) {
			return idx, true
		}
	}
	return 0, false
}

func (w *Window[K, V]) anyEmpty(base int) bool {
	for lane := 0; lane < w.cgSize; lane++ {
		if w.arr.IsEmptyKey(w.laneIndex(base, lane)) {
			return true
		}
	}
	return false
}

// Insert runs the group-form insert protocol of spec §4.4 starting from
// hash's window. It returns true on a successful claim, false if the key
// was already present under UniqueKeys. Under DuplicateKeys the duplicate
// check (step 2) never runs, so a key already present does not block a new
// slot from being claimed.
func (w *Window[K, V]) Insert(hash uint64, k K, v V) bool {
	it := w.seq.InitialWindow(hash, w.cgSize)
	for {
		base := it.Index
		if w.mode == UniqueKeys && w.anyMatch(base, k) {
			return false
		}
		idx, ok := w.lowestEmptyLane(base)
		if !ok {
			it = w.seq.NextWindow(it, w.cgSize)
			continue
		}
		switch w.arr.TryClaim(idx, k, v, w.equal) {
		case slot.Success:
			return true
		case slot.Duplicate:
			if w.mode == UniqueKeys {
				return false
			}
			// Under DuplicateKeys an equal key taking that lane first does
			// not block this insert; re-run step 1 as for Continue.
		case slot.Continue:
			// Another worker took that lane; re-run step 1 on the same
			// window — it may still hold other empties, or our key.
		}
	}
}

// Find runs the group-form find protocol: the value stored at the
// lowest-indexed matching lane, or the zero value and false once an empty
// lane is reached before any match. Substituting the table's configured
// empty_value on a miss is the caller's job — this layer has no opinion on
// sentinels beyond the array's own key sentinel.
func (w *Window[K, V]) Find(hash uint64, k K) (V, bool) {
	it := w.seq.InitialWindow(hash, w.cgSize)
	for {
		base := it.Index
		if idx, ok := w.matchLane(base, k); ok {
			return w.arr.LoadValue(idx), true
		}
		if w.anyEmpty(base) {
			var zero V
			return zero, false
		}
		it = w.seq.NextWindow(it, w.cgSize)
	}
}

// Contains is Find without the value.
func (w *Window[K, V]) Contains(hash uint64, k K) bool {
	_, ok := w.Find(hash, k)
	return ok
}

// Count walks every window along k's probe sequence, tallying occupied
// lanes whose key equals k, until a window contains an empty lane — no
// slot beyond that point can belong to k's probe chain, since insert would
// have filled this window for k before continuing past it.
func (w *Window[K, V]) Count(hash uint64, k K) uint64 {
	it := w.seq.InitialWindow(hash, w.cgSize)
	var n uint64
	for {
		base := it.Index
		emptyInWindow := false
		for lane := 0; lane < w.cgSize; lane++ {
			idx := w.laneIndex(base, lane)
			if w.arr.IsEmptyKey(idx) {
				emptyInWindow = true
				continue
			}
			if w.equal(w.arr.LoadKey(idx), k) {
				n++
			}
		}
		if emptyInWindow {
			return n
		}
		it = w.seq.NextWindow(it, w.cgSize)
	}
}

// Retrieve walks k's probe chain the same way Count does, invoking push
// for every matching (k, value) pair as it is found, and returns the match
// count — the number of times push was called.
func (w *Window[K, V]) Retrieve(hash uint64, k K, push func(K, V)) uint64 {
	it := w.seq.InitialWindow(hash, w.cgSize)
	var n uint64
	for {
		base := it.Index
		emptyInWindow := false
		for lane := 0; lane < w.cgSize; lane++ {
			idx := w.laneIndex(base, lane)
			if w.arr.IsEmptyKey(idx) {
				emptyInWindow = true
				continue
			}
			if w.equal(w.arr.LoadKey(idx), k) {
				push(k, w.arr.LoadValue(idx))
				n++
			}
		}
		if emptyInWindow {
			return n
		}
		it = w.seq.NextWindow(it, w.cgSize)
	}
}
