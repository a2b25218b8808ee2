package statictable

import (
	"github.com/vyasr/statictable/slot"
	"github.com/vyasr/statictable/stream"
)

// DefaultCGSize is the cooperative-group width used when a table is
// constructed without WithCGSize — small enough to keep a window cheap to
// scan sequentially, large enough to amortize a probe miss across more
// than one slot.
const DefaultCGSize = 4

// DefaultBufferSize is the per-chunk retrieval staging capacity
// outbuf.Buffer/PairBuffer use inside Retrieve-family calls, balancing
// fetch-add contention on the output cursor against staging memory per
// goroutine.
const DefaultBufferSize = 64

type config[K comparable, V any] struct {
	hash   func(K) uint64
	equal  func(K, K) bool
	cgSize int
	stream *stream.Stream
	alloc  slot.Allocator[K, V]
}

func defaultConfig[K comparable, V any]() config[K, V] {
	return config[K, V]{
		equal:  func(a, b K) bool { return a == b },
		cgSize: DefaultCGSize,
	}
}

// Option configures a Map or MultiMap at construction time, following the
// same functional-option shape used across the example pack's generic
// container constructors.
type Option[K comparable, V any] interface {
	apply(c *config[K, V])
}

type hashOption[K comparable, V any] struct{ hash func(K) uint64 }

func (o hashOption[K, V]) apply(c *config[K, V]) { c.hash = o.hash }

// WithHash supplies the key hash functor. There is no generic default:
// unlike Equal (always available via K's built-in ==), a "reasonable
// scalar hash" cannot be derived for an arbitrary comparable type without
// runtime reflection, so construction panics if this is omitted. See
// package hashfn for the scalar defaults spec.md calls for.
func WithHash[K comparable, V any](hash func(K) uint64) Option[K, V] {
	return hashOption[K, V]{hash}
}

type equalOption[K comparable, V any] struct{ equal func(K, K) bool }

func (o equalOption[K, V]) apply(c *config[K, V]) { c.equal = o.equal }

// WithEqual overrides the default identity (==) key-equality functor.
func WithEqual[K comparable, V any](equal func(K, K) bool) Option[K, V] {
	return equalOption[K, V]{equal}
}

type cgSizeOption[K comparable, V any] struct{ cgSize int }

func (o cgSizeOption[K, V]) apply(c *config[K, V]) { c.cgSize = o.cgSize }

// WithCGSize overrides DefaultCGSize. Values are typically a power of two
// no larger than 32, per spec.md §5's cg_size domain, though nothing here
// enforces that — an oversized window just costs more wasted scanning per
// probe step.
func WithCGSize[K comparable, V any](cgSize int) Option[K, V] {
	return cgSizeOption[K, V]{cgSize}
}

type streamOption[K comparable, V any] struct{ stream *stream.Stream }

func (o streamOption[K, V]) apply(c *config[K, V]) { c.stream = o.stream }

// WithStream supplies the Stream bulk operations launch on. Omitting this
// constructs a private Stream sized to runtime.GOMAXPROCS(0).
func WithStream[K comparable, V any](s *stream.Stream) Option[K, V] {
	return streamOption[K, V]{s}
}

type allocOption[K comparable, V any] struct{ alloc slot.Allocator[K, V] }

func (o allocOption[K, V]) apply(c *config[K, V]) { c.alloc = o.alloc }

// WithAllocator supplies the abstract typed allocator slot.NewArray uses.
// Omitting this selects slot.DefaultAllocator.
func WithAllocator[K comparable, V any](alloc slot.Allocator[K, V]) Option[K, V] {
	return allocOption[K, V]{alloc}
}
