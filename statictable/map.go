// Package statictable is the public surface of this module: a
// fixed-capacity, concurrency-safe Map (unique keys) and MultiMap
// (duplicate keys allowed), each built from a slot array, a probe
// sequence, and a cooperative-group window, driven by a Stream.
package statictable

import (
	"sync/atomic"

	"github.com/vyasr/statictable/group"
	"github.com/vyasr/statictable/probe"
	"github.com/vyasr/statictable/slot"
	"github.com/vyasr/statictable/stream"
)

// Map is a fixed-capacity associative table enforcing unique keys: a
// second insert of a key already present fails rather than overwriting.
// Every exported method is safe to call from multiple goroutines at once.
type Map[K comparable, V any] struct {
	arr    *slot.Array[K, V]
	window *group.Window[K, V]
	cfg    config[K, V]
	size   atomic.Uint64
}

// NewMap constructs a Map of the given capacity (clamped to at least 1, per
// spec.md §6), with emptyKey/emptyValue as the sentinel pair. WithHash is
// required; every other option has a default (see options.go). An
// allocator failure is returned as an error rather than panicking, per
// spec.md §7's "construction errors: allocator failure → propagated".
func NewMap[K comparable, V any](capacity int, emptyKey K, emptyValue V, opts ...Option[K, V]) (*Map[K, V], error) {
	cfg := defaultConfig[K, V]()
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.hash == nil {
		panic("statictable: NewMap requires WithHash")
	}
	if cfg.stream == nil {
		cfg.stream = stream.New(0)
	}
	// The windowed probe protocol needs capacity evenly divisible by
	// cg_size for window bases to tile cleanly; unlike spec.md §6's plain
	// "clamp to max(capacity, 1)" for the map, this port's group.Window
	// always operates in windowed form (see DESIGN.md).
	capacity = roundUpCapacity(capacity, cfg.cgSize)
	arr, err := slot.NewArray(capacity, emptyKey, emptyValue, cfg.alloc)
	if err != nil {
		return nil, err
	}
	seq := probe.Double{Capacity: arr.Capacity()}
	return &Map[K, V]{
		arr:    arr,
		window: group.New(arr, seq, cfg.cgSize, cfg.equal, group.UniqueKeys),
		cfg:    cfg,
	}, nil
}

// Insert claims a slot for every (keys[i], values[i]) pair not already
// present, launched across the Map's Stream, and folds the number of newly
// claimed slots into Size(). Returns that count. An empty input is a no-op
// returning 0, per spec.md §8's boundary behaviors.
func (m *Map[K, V]) Insert(keys []K, values []V) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var total atomic.Uint64
	m.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			if m.window.Insert(m.cfg.hash(keys[i]), keys[i], values[i]) {
				local++
			}
		}
		total.Add(local)
	})
	inserted := total.Load()
	m.size.Add(inserted)
	return inserted
}

// InsertIf is Insert restricted to indices where pred(stencil[i]) holds;
// an index failing the predicate never touches the slot array, matching
// cuco's detail::insert_if_n gating the probe loop itself rather than just
// discarding the result.
func (m *Map[K, V]) InsertIf(keys []K, values []V, stencil []K, pred func(K) bool) uint64 {
	n := len(keys)
	if n == 0 {
		return 0
	}
	var total atomic.Uint64
	m.cfg.stream.LaunchChunks(n, func(lo, hi int) {
		var local uint64
		for i := lo; i < hi; i++ {
			if !pred(stencil[i]) {
				continue
			}
			if m.window.Insert(m.cfg.hash(keys[i]), keys[i], values[i]) {
				local++
			}
		}
		total.Add(local)
	})
	inserted := total.Load()
	m.size.Add(inserted)
	return inserted
}

// Find writes into out, for every keys[i], the stored value if present or
// EmptyValue() otherwise. len(out) must be >= len(keys).
func (m *Map[K, V]) Find(keys []K, out []V) {
	n := len(keys)
	if n == 0 {
		return
	}
	empty := m.arr.EmptyValue()
	m.cfg.stream.Launch(n, func(i int) {
		if v, ok := m.window.Find(m.cfg.hash(keys[i]), keys[i]); ok {
			out[i] = v
		} else {
			out[i] = empty
		}
	})
}

// Contains writes into out, for every keys[i], whether the key is present.
// len(out) must be >= len(keys).
func (m *Map[K, V]) Contains(keys []K, out []bool) {
	n := len(keys)
	if n == 0 {
		return
	}
	m.cfg.stream.Launch(n, func(i int) {
		out[i] = m.window.Contains(m.cfg.hash(keys[i]), keys[i])
	})
}

// Size returns the incrementally-maintained count of occupied slots — the
// sum of every Insert/InsertIf call's success count, not a scan.
func (m *Map[K, V]) Size() uint64 { return m.size.Load() }

// LoadFactor returns Size() / Capacity().
func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.Size()) / float64(m.arr.Capacity())
}

// Capacity returns the slot array's fixed length.
func (m *Map[K, V]) Capacity() int { return m.arr.Capacity() }

// EmptyValue returns the sentinel value supplied at construction.
func (m *Map[K, V]) EmptyValue() V { return m.arr.EmptyValue() }

// MutableView is a copyable handle exposing Insert against the same slot
// array, for callers driving their own goroutine pool directly instead of
// going through Stream — the escape hatch cuco calls get_device_mutable_view.
type MutableView[K comparable, V any] struct {
	window *group.Window[K, V]
	hash   func(K) uint64
}

// MutableView returns a MutableView over m's slot array.
func (m *Map[K, V]) MutableView() MutableView[K, V] {
	return MutableView[K, V]{window: m.window, hash: m.cfg.hash}
}

// Insert claims a slot for (k, v) directly against the underlying array,
// bypassing size accounting — callers using MutableView own that bookkeeping.
func (v MutableView[K, V]) Insert(k K, val V) bool {
	return v.window.Insert(v.hash(k), k, val)
}

// View is a copyable, read-only handle exposing Find/Contains — the escape
// hatch cuco calls get_device_view.
type View[K comparable, V any] struct {
	window *group.Window[K, V]
	hash   func(K) uint64
	empty  V
}

// View returns a View over m's slot array.
func (m *Map[K, V]) View() View[K, V] {
	return View[K, V]{window: m.window, hash: m.cfg.hash, empty: m.arr.EmptyValue()}
}

func (v View[K, V]) Find(k K) (V, bool) { return v.window.Find(v.hash(k), k) }
func (v View[K, V]) Contains(k K) bool  { return v.window.Contains(v.hash(k), k) }
