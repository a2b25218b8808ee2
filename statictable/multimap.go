package statictable

import (
	"sync/atomic"

	"github.com/vyasr/statictable/group"
	"github.com/vyasr/statictable/outbuf"
	"github.com/vyasr/statictable/probe"
	"github.com/vyasr/statictable/slot"
	"github.com/vyasr/statictable/stream"
)

// MultiMap is a fixed-capacity associative table allowing any number of
// slots to hold the same key. Every exported method is safe to call from
// multiple goroutines at once.
type MultiMap[K comparable, V any] struct {
	arr    *slot.Array[K, V]
	window *group.Window[K, V]
	cfg    config[K, V]
}

// roundUpCapacity rounds capacity up to a multiple of cgSize, matching
// spec.md §6's "capacity rounded up per §3" construction rule — a
// multimap's windows must tile the array evenly, since count/retrieve rely
// on a window's emptiness to terminate a probe chain.
func roundUpCapacity(capacity, cgSize int) int {
	if capacity < 1 {
		capacity = 1
	}
	if cgSize < 1 {
		cgSize = 1
	}
	if rem := capacity % cgSize; rem != 0 {
		capacity += cgSize - rem
	}
	return capacity
}

// NewMultiMap constructs a MultiMap. Capacity is rounded up to a multiple
// of the configured cg_size (DefaultCGSize unless overridden with
// WithCGSize, which must be set before this call takes effect). WithHash
// is required. An allocator failure is returned as an error rather than
// panicking, per spec.md §7's "construction errors: allocator failure →
// propagated".
func NewMultiMap[K comparable, V any](capacity int, emptyKey K, emptyValue V, opts ...Option[K, V]) (*MultiMap[K, V], error) {
	cfg := defaultConfig[K, V]()
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.hash == nil {
		panic("statictable: NewMultiMap requires WithHash")
	}
	if cfg.stream == nil {
		cfg.stream = stream.New(0)
	}
	capacity = roundUpCapacity(capacity, cfg.cgSize)
	arr, err := slot.NewArray(capacity, emptyKey, emptyValue, cfg.alloc)
	if err != nil {
		return nil, err
	}
	seq := probe.Double{Capacity: arr.Capacity()}
	return &MultiMap[K, V]{
		arr:    arr,
		window: group.New(arr, seq, cfg.cgSize, cfg.equal, group.DuplicateKeys),
		cfg:    cfg,
	}, nil
}

// Insert claims a fresh slot for every (keys[i], values[i]) pair — no
// duplicate check, so re-inserting an existing key always succeeds into a
// new slot. Unlike Map.Insert there is no success count to fold into a
// running size: get_size for a MultiMap is always a scan (see GetSize).
func (mm *MultiMap[K, V]) Insert(keys []K, values []V) {
	n := len(keys)
	if n == 0 {
		return
	}
	mm.cfg.stream.Launch(n, func(i int) {
		mm.window.Insert(mm.cfg.hash(keys[i]), keys[i], values[i])
	})
}

// InsertIf is Insert restricted to indices where pred(stencil[i]) holds; an
// index failing the predicate never touches the slot array, mirroring
// Map.InsertIf and cuco's static_multimap::insert_if gating the probe loop
// itself rather than just discarding the result.
func (mm *MultiMap[K, V]) InsertIf(keys []K, values []V, stencil []K, pred func(K) bool) {
	n := len(keys)
	if n == 0 {
		return
	}
	mm.cfg.stream.Launch(n, func(i int) {
		if !pred(stencil[i]) {
			return
		}
		mm.window.Insert(mm.cfg.hash(keys[i]), keys[i], values[i])
	})
}

// Contains writes into out, for every keys[i], whether at least one slot
// holds that key. len(out) must be >= len(keys).
func (mm *MultiMap[K, V]) Contains(keys []K, out []bool) {
	n := len(keys)
	if n == 0 {
		return
	}
	mm.cfg.stream.Launch(n, func(i int) {
		out[i] = mm.window.Count(mm.cfg.hash(keys[i]), keys[i]) > 0
	})
}

// Count returns the total number of stored slots matching any key in
// keys, accumulated as a thread-local partial per launched chunk with one
// atomic add each, per spec.md §4.4's "per-thread local counter" rule.
func (mm *MultiMap[K, V]) Count(keys []K) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var total atomic.Uint64
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			local += mm.window.Count(mm.cfg.hash(keys[i]), keys[i])
		}
		total.Add(local)
	})
	return total.Load()
}

// CountOuter is Count plus one for every probing key with zero matches —
// the outer-variant / left-join match-count law of spec.md §8.
func (mm *MultiMap[K, V]) CountOuter(keys []K) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var total atomic.Uint64
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			c := mm.window.Count(mm.cfg.hash(keys[i]), keys[i])
			if c == 0 {
				local++
			} else {
				local += c
			}
		}
		total.Add(local)
	})
	return total.Load()
}

// PairCount counts stored slots matching both a probe key and a probe
// value, under valueEqual — membership testing for full (key, value)
// pairs, rather than key-only matching.
func (mm *MultiMap[K, V]) PairCount(keys []K, values []V, valueEqual func(V, V) bool) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var total atomic.Uint64
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			want := values[i]
			mm.window.Retrieve(mm.cfg.hash(keys[i]), keys[i], func(_ K, v V) {
				if valueEqual(v, want) {
					local++
				}
			})
		}
		total.Add(local)
	})
	return total.Load()
}

// PairCountOuter is PairCount plus one for every probe pair with zero
// matches.
func (mm *MultiMap[K, V]) PairCountOuter(keys []K, values []V, valueEqual func(V, V) bool) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var total atomic.Uint64
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			want := values[i]
			var matched uint64
			mm.window.Retrieve(mm.cfg.hash(keys[i]), keys[i], func(_ K, v V) {
				if valueEqual(v, want) {
					matched++
				}
			})
			if matched == 0 {
				local++
			} else {
				local += matched
			}
		}
		total.Add(local)
	})
	return total.Load()
}

// Retrieve appends the value of every stored slot matching any key in
// keys to a shared outbuf.Buffer wrapping out, and returns the number of
// matches written — always exactly Count(keys), per spec.md §8's
// retrieve/count agreement invariant. len(out) must be at least that count.
func (mm *MultiMap[K, V]) Retrieve(keys []K, out []V) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var cursor stream.Counter
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		buf := outbuf.New(DefaultBufferSize, out, &cursor)
		for i := lo; i < hi; i++ {
			mm.window.Retrieve(mm.cfg.hash(keys[i]), keys[i], func(_ K, v V) {
				buf.Push(v)
			})
		}
		buf.Flush()
	})
	return cursor.Load()
}

// RetrieveOuter is Retrieve, additionally appending EmptyValue() once for
// every probing key with zero matches — the outer / left-join emission
// rule of spec.md §4.5.
func (mm *MultiMap[K, V]) RetrieveOuter(keys []K, out []V) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	empty := mm.arr.EmptyValue()
	var cursor stream.Counter
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		buf := outbuf.New(DefaultBufferSize, out, &cursor)
		for i := lo; i < hi; i++ {
			matched := mm.window.Retrieve(mm.cfg.hash(keys[i]), keys[i], func(_ K, v V) {
				buf.Push(v)
			})
			if matched == 0 {
				buf.Push(empty)
			}
		}
		buf.Flush()
	})
	return cursor.Load()
}

// PairRetrieve appends the (key, value) of every stored slot matching both
// a probe key and a probe value to two parallel outbuf streams, returning
// the match count.
func (mm *MultiMap[K, V]) PairRetrieve(keys []K, values []V, valueEqual func(V, V) bool, outKeys []K, outValues []V) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var cursor stream.Counter
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		buf := outbuf.NewPair(DefaultBufferSize, outKeys, outValues, &cursor)
		for i := lo; i < hi; i++ {
			want := values[i]
			mm.window.Retrieve(mm.cfg.hash(keys[i]), keys[i], func(k K, v V) {
				if valueEqual(v, want) {
					buf.Push(k, v)
				}
			})
		}
		buf.Flush()
	})
	return cursor.Load()
}

// PairRetrieveOuter is PairRetrieve, additionally appending
// (probeKey, EmptyValue()) once for every probe pair with zero matches.
func (mm *MultiMap[K, V]) PairRetrieveOuter(keys []K, values []V, valueEqual func(V, V) bool, outKeys []K, outValues []V) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	empty := mm.arr.EmptyValue()
	var cursor stream.Counter
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		buf := outbuf.NewPair(DefaultBufferSize, outKeys, outValues, &cursor)
		for i := lo; i < hi; i++ {
			want := values[i]
			var matched uint64
			mm.window.Retrieve(mm.cfg.hash(keys[i]), keys[i], func(k K, v V) {
				if valueEqual(v, want) {
					buf.Push(k, v)
					matched++
				}
			})
			if matched == 0 {
				buf.Push(keys[i], empty)
			}
		}
		buf.Flush()
	})
	return cursor.Load()
}

// GetSize performs the full O(capacity) scan spec.md §4.7 mandates for the
// multimap: no amortized counter, since multimap inserts never race to
// DUPLICATE and so have no natural place to publish a success count
// (see DESIGN.md's Open Question notes).
func (mm *MultiMap[K, V]) GetSize() uint64 {
	n := mm.arr.Capacity()
	var total atomic.Uint64
	mm.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			if !mm.arr.IsEmptyKey(i) {
				local++
			}
		}
		total.Add(local)
	})
	return total.Load()
}

// LoadFactor returns GetSize() / Capacity(). Unlike Map.LoadFactor this
// always performs a scan.
func (mm *MultiMap[K, V]) LoadFactor() float64 {
	return float64(mm.GetSize()) / float64(mm.arr.Capacity())
}

// Capacity returns the slot array's fixed length (after rounding up).
func (mm *MultiMap[K, V]) Capacity() int { return mm.arr.Capacity() }

// EmptyValue returns the sentinel value supplied at construction.
func (mm *MultiMap[K, V]) EmptyValue() V { return mm.arr.EmptyValue() }

// MutableView is a copyable handle exposing Insert against the same slot
// array, for callers driving their own goroutine pool directly.
func (mm *MultiMap[K, V]) MutableView() MutableView[K, V] {
	return MutableView[K, V]{window: mm.window, hash: mm.cfg.hash}
}
