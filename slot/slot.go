// Package slot implements the slot array a table is built on: a flat,
// fixed-length array of (key, value) cells, each mutated only through
// atomic compare-and-swap, plus the three single-worker claiming
// protocols that differ by how wide a CAS the pair's layout supports.
//
// Keys and values must fit in 8 bytes apiece and must not contain Go
// pointers (the same constraint a GPU-resident table places on the types
// it can store in device memory) with one exception: a value wider than
// 8 bytes is supported by boxing it behind a pointer, at the cost of a
// weaker publication guarantee (see boxedBacking below).
package slot

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/vyasr/statictable/stream"
)

// Result is the outcome of one worker's attempt to claim a slot.
type Result int

const (
	// Continue means this slot was already occupied by a different key;
	// the caller should advance to the next slot in the probe sequence.
	Continue Result = iota
	// Success means this worker claimed the slot for its key.
	Success
	// Duplicate means a slot already holds this exact key.
	Duplicate
)

// bitsOf reinterprets v's backing bytes as a uint64, zero-extended. v must
// be at most 8 bytes and pointer-free; the size limit is checked once at
// construction via sizeCheck, not on every call, and pointer-freedom is
// not checked at all.
func bitsOf[T any](v T) uint64 {
	var buf uint64
	n := unsafe.Sizeof(v)
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&buf)), 8)
	copy(dst, src)
	return buf
}

// valueFromBits reconstructs a T from the low sizeof(T) bytes of bits.
func valueFromBits[T any](bits uint64) T {
	var v T
	n := unsafe.Sizeof(v)
	src := unsafe.Slice((*byte)(unsafe.Pointer(&bits)), 8)
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	copy(dst, src[:n])
	return v
}

func sizeCheck[T any]() uintptr {
	var z T
	return unsafe.Sizeof(z)
}

// Array is a fixed-capacity slot array for keys K and values V, backed by
// one of three internal layouts chosen once at construction time from the
// packability of (K, V) — see NewArray. The chosen layout never appears in
// this type's exported surface.
type Array[K comparable, V any] struct {
	capacity  int
	emptyKey  K
	emptyVal  V
	emptyBits uint64 // bit pattern of emptyKey, for bitwise sentinel checks
	backing   backing[K, V]
}

// backing is the internal seam between Array and its chosen CAS protocol.
type backing[K comparable, V any] interface {
	initialize()
	tryClaim(idx int, k K, v V, equal func(K, K) bool) Result
	loadKey(idx int) K
	isEmptyKey(idx int) bool
	loadValue(idx int) V
}

// Allocator is the abstract typed allocator spec.md names as an external
// collaborator: given a requested capacity, it returns a ready-to-use
// backing store, or an error if it cannot — spec.md §7's "construction
// errors: allocator failure → propagated". The only implementation this
// module ships is DefaultAllocator, which picks packed/split/boxed layout
// from (K, V)'s sizes. Alloc's result type is unexported, so the interface
// can only be implemented inside this package.
type Allocator[K comparable, V any] interface {
	Alloc(capacity int, emptyKey K, emptyVal V) (backing[K, V], error)
}

// DefaultAllocator selects the narrowest CAS protocol the pair's layout
// allows: a single packed word when (K, V) fit together in 8 bytes, two
// independent words when they don't but both individually fit, and a
// boxed value behind a pointer when V alone does not fit.
type DefaultAllocator[K comparable, V any] struct{}

func (DefaultAllocator[K, V]) Alloc(capacity int, emptyKey K, emptyVal V) (backing[K, V], error) {
	kSize, vSize := sizeCheck[K](), sizeCheck[V]()
	if kSize > 8 {
		return nil, fmt.Errorf("slot: key type wider than 8 bytes is unsupported")
	}
	switch {
	case kSize+vSize <= 8:
		return newPackedBacking[K, V](capacity, emptyKey, emptyVal, kSize), nil
	case vSize <= 8:
		return newSplitBacking[K, V](capacity, emptyKey, emptyVal), nil
	default:
		return newBoxedBacking[K, V](capacity, emptyKey, emptyVal), nil
	}
}

// NewArray allocates and initializes a slot array of the given capacity,
// clamped to at least 1 (spec.md §6: "capacity is clamped to
// max(capacity, 1)" so the backing store is never dereferenced through a
// zero-length allocation). alloc may be nil to use DefaultAllocator. An
// allocator failure is wrapped in a *stream.LaunchError and returned rather
// than panicking, per spec.md §7.
func NewArray[K comparable, V any](capacity int, emptyKey K, emptyVal V, alloc Allocator[K, V]) (*Array[K, V], error) {
	if capacity < 1 {
		capacity = 1
	}
	if alloc == nil {
		alloc = DefaultAllocator[K, V]{}
	}
	b, err := alloc.Alloc(capacity, emptyKey, emptyVal)
	if err != nil {
		return nil, &stream.LaunchError{Op: "alloc", Err: err}
	}
	a := &Array[K, V]{
		capacity:  capacity,
		emptyKey:  emptyKey,
		emptyVal:  emptyVal,
		emptyBits: bitsOf(emptyKey),
		backing:   b,
	}
	a.backing.initialize()
	return a, nil
}

// Capacity returns the slot array's fixed length.
func (a *Array[K, V]) Capacity() int { return a.capacity }

// EmptyKey returns the sentinel key supplied at construction.
func (a *Array[K, V]) EmptyKey() K { return a.emptyKey }

// EmptyValue returns the sentinel value supplied at construction.
func (a *Array[K, V]) EmptyValue() V { return a.emptyVal }

// IsEmptyKey reports whether slot idx currently holds the sentinel key,
// compared bitwise — never through the caller's equality functor, per
// spec.md §3.
func (a *Array[K, V]) IsEmptyKey(idx int) bool { return a.backing.isEmptyKey(idx) }

// LoadKey returns the key currently stored at idx. If idx holds the
// sentinel, the returned value is EmptyKey.
func (a *Array[K, V]) LoadKey(idx int) K { return a.backing.loadKey(idx) }

// LoadValue returns the value currently stored at idx. Under the boxed
// layout (see boxedBacking) this may transiently be EmptyValue even
// though LoadKey(idx) already returns a committed, non-sentinel key —
// spec.md §9's documented CAS-then-store hazard, left unguarded on the
// read path exactly as the source leaves it.
func (a *Array[K, V]) LoadValue(idx int) V { return a.backing.loadValue(idx) }

// TryClaim attempts to claim slot idx for (k, v) using whichever CAS
// protocol this array was constructed with. equal is the caller's key
// equality functor, used only to classify an already-occupied slot as
// Duplicate vs Continue — never to recognize emptiness.
func (a *Array[K, V]) TryClaim(idx int, k K, v V, equal func(K, K) bool) Result {
	return a.backing.tryClaim(idx, k, v, equal)
}

// --- packed: pair fits a single atomic word -------------------------------

type packedWord struct {
	w atomic.Uint64
}

type packedBacking[K comparable, V any] struct {
	cells     []packedWord
	sentinel  uint64
	kSize     uintptr
	emptyKey  K
	emptyVal  V
}

func newPackedBacking[K comparable, V any](capacity int, emptyKey K, emptyVal V, kSize uintptr) *packedBacking[K, V] {
	return &packedBacking[K, V]{
		cells:    make([]packedWord, capacity),
		sentinel: pack(emptyKey, emptyVal, kSize),
		kSize:    kSize,
		emptyKey: emptyKey,
		emptyVal: emptyVal,
	}
}

func pack[K, V any](k K, v V, kSize uintptr) uint64 {
	return bitsOf(k) | (bitsOf(v) << (kSize * 8))
}

func (b *packedBacking[K, V]) initialize() {
	for i := range b.cells {
		b.cells[i].w.Store(b.sentinel)
	}
}

func (b *packedBacking[K, V]) isEmptyKey(idx int) bool {
	return b.cells[idx].w.Load() == b.sentinel
}

func (b *packedBacking[K, V]) loadKey(idx int) K {
	word := b.cells[idx].w.Load()
	return valueFromBits[K](word)
}

func (b *packedBacking[K, V]) loadValue(idx int) V {
	word := b.cells[idx].w.Load()
	return valueFromBits[V](word >> (b.kSize * 8))
}

func (b *packedBacking[K, V]) tryClaim(idx int, k K, v V, equal func(K, K) bool) Result {
	desired := pack(k, v, b.kSize)
	if b.cells[idx].w.CompareAndSwap(b.sentinel, desired) {
		return Success
	}
	observed := b.cells[idx].w.Load()
	if equal(valueFromBits[K](observed), k) {
		return Duplicate
	}
	return Continue
}

// --- split: key and value each fit a word, the pair together does not ----

type splitCell struct {
	k atomic.Uint64
	v atomic.Uint64
}

type splitBacking[K comparable, V any] struct {
	cells         []splitCell
	emptyKeyBits  uint64
	emptyValBits  uint64
	emptyKey      K
	emptyVal      V
}

func newSplitBacking[K comparable, V any](capacity int, emptyKey K, emptyVal V) *splitBacking[K, V] {
	return &splitBacking[K, V]{
		cells:        make([]splitCell, capacity),
		emptyKeyBits: bitsOf(emptyKey),
		emptyValBits: bitsOf(emptyVal),
		emptyKey:     emptyKey,
		emptyVal:     emptyVal,
	}
}

func (b *splitBacking[K, V]) initialize() {
	for i := range b.cells {
		b.cells[i].k.Store(b.emptyKeyBits)
		b.cells[i].v.Store(b.emptyValBits)
	}
}

func (b *splitBacking[K, V]) isEmptyKey(idx int) bool {
	return b.cells[idx].k.Load() == b.emptyKeyBits
}

func (b *splitBacking[K, V]) loadKey(idx int) K {
	return valueFromBits[K](b.cells[idx].k.Load())
}

func (b *splitBacking[K, V]) loadValue(idx int) V {
	return valueFromBits[V](b.cells[idx].v.Load())
}

// tryClaim implements the back-to-back CAS state table of spec.md §4.3(b).
func (b *splitBacking[K, V]) tryClaim(idx int, k K, v V, equal func(K, K) bool) Result {
	cell := &b.cells[idx]
	kBits, vBits := bitsOf(k), bitsOf(v)

	keyOK := cell.k.CompareAndSwap(b.emptyKeyBits, kBits)
	valOK := cell.v.CompareAndSwap(b.emptyValBits, vBits)

	switch {
	case keyOK && valOK:
		return Success
	case keyOK && !valOK:
		// Another worker's value CAS raced into our value cell before
		// ours ran. Keep re-CASing with a fresh expected sentinel until
		// it clears (it always does: the interloper reverts below).
		for !cell.v.CompareAndSwap(b.emptyValBits, vBits) {
		}
		return Success
	case !keyOK && valOK:
		// We wrote our value into a slot whose key another worker just
		// claimed. No one can have observed it yet (readers only trust
		// a value after seeing a matching key), so it's safe to revert.
		cell.v.Store(b.emptyValBits)
	}

	observedKey := valueFromBits[K](cell.k.Load())
	if equal(observedKey, k) {
		return Duplicate
	}
	return Continue
}

// --- boxed: value does not fit a single atomic word -----------------------

type boxedCell[V any] struct {
	k atomic.Uint64
	v atomic.Pointer[V]
}

type boxedBacking[K comparable, V any] struct {
	cells        []boxedCell[V]
	emptyKeyBits uint64
	emptyKey     K
	emptyVal     V
	// sentinelPtr is a unique, never-dereferenced address marking "no value
	// published yet", so emptiness doesn't require V to be comparable.
	sentinelPtr *V
}

func newBoxedBacking[K comparable, V any](capacity int, emptyKey K, emptyVal V) *boxedBacking[K, V] {
	return &boxedBacking[K, V]{
		cells:        make([]boxedCell[V], capacity),
		emptyKeyBits: bitsOf(emptyKey),
		emptyKey:     emptyKey,
		emptyVal:     emptyVal,
		sentinelPtr:  new(V),
	}
}

func (b *boxedBacking[K, V]) initialize() {
	for i := range b.cells {
		b.cells[i].k.Store(b.emptyKeyBits)
		b.cells[i].v.Store(b.sentinelPtr)
	}
}

func (b *boxedBacking[K, V]) isEmptyKey(idx int) bool {
	return b.cells[idx].k.Load() == b.emptyKeyBits
}

func (b *boxedBacking[K, V]) loadKey(idx int) K {
	return valueFromBits[K](b.cells[idx].k.Load())
}

func (b *boxedBacking[K, V]) loadValue(idx int) V {
	p := b.cells[idx].v.Load()
	if p == b.sentinelPtr {
		return b.emptyVal
	}
	return *p
}

// tryClaim implements CAS-then-store (spec.md §4.3(c)): the key cell is
// claimed with one CAS, then the value is published with a plain pointer
// store. A concurrent reader can observe the committed key before the
// value publishes — see LoadValue's doc and DESIGN.md's Open Question 1.
func (b *boxedBacking[K, V]) tryClaim(idx int, k K, v V, equal func(K, K) bool) Result {
	cell := &b.cells[idx]
	kBits := bitsOf(k)
	if cell.k.CompareAndSwap(b.emptyKeyBits, kBits) {
		boxed := new(V)
		*boxed = v
		cell.v.Store(boxed)
		return Success
	}
	observedKey := valueFromBits[K](cell.k.Load())
	if equal(observedKey, k) {
		return Duplicate
	}
	return Continue
}
