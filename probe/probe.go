// Package probe implements the deterministic slot-index sequences used to
// resolve collisions in an open-addressing table: pure functions from
// (hash, attempt) to a slot index, cheap to copy and free of side effects,
// plus a windowed form that returns cg_size consecutive, aligned indices
// per step for cooperative-group-style probing.
package probe

// Iter is the probe state for one key: the slot index of the current
// attempt, plus whatever a given sequence needs to compute the next one
// (double hashing needs the key's step; linear probing ignores it). It is
// a small value type, cheap to copy or broadcast.
type Iter struct {
	Index int
	step  int
}

// Sequence produces the sequence of slot indices probed for a given hash,
// both one slot at a time and cg_size slots at a time. Implementations
// hold only capacity, so they are plain value types safe to pass by copy
// into any number of concurrently running goroutines.
type Sequence interface {
	// Initial returns the iterator for the first slot probed for hash.
	Initial(hash uint64) Iter
	// Next returns the iterator for the slot probed after it.
	Next(it Iter) Iter
	// InitialWindow returns the iterator for the first cg_size-aligned
	// window probed for hash; Iter.Index is the window's base slot.
	InitialWindow(hash uint64, cgSize int) Iter
	// NextWindow returns the iterator for the window probed after it.
	NextWindow(it Iter, cgSize int) Iter
}

// Linear probes slot (h0+1) mod capacity, (h0+2) mod capacity, and so on.
type Linear struct {
	Capacity int
}

func (l Linear) Initial(hash uint64) Iter {
	return Iter{Index: int(hash % uint64(l.Capacity))}
}

func (l Linear) Next(it Iter) Iter {
	it.Index++
	if it.Index >= l.Capacity {
		it.Index = 0
	}
	return it
}

func (l Linear) InitialWindow(hash uint64, cgSize int) Iter {
	return Iter{Index: alignDown(l.Initial(hash).Index, cgSize, l.Capacity)}
}

func (l Linear) NextWindow(it Iter, cgSize int) Iter {
	it.Index += cgSize
	if it.Index >= l.Capacity {
		it.Index = 0
	}
	return it
}

// Double probes with a per-key step, derived from the high bits of the
// key's hash and adjusted to be coprime with the relevant modulus: the
// full capacity for single-slot stepping, or capacity/cgSize — the number
// of distinct window bases — for windowed stepping. Coprimality is what
// guarantees every slot (or every window) is visited exactly once before
// the sequence repeats, for any capacity, not just a power of two.
type Double struct {
	Capacity int
}

func (d Double) Initial(hash uint64) Iter {
	return Iter{
		Index: int(hash % uint64(d.Capacity)),
		step:  stepFor(hash, d.Capacity),
	}
}

func (d Double) Next(it Iter) Iter {
	it.Index += it.step
	if it.Index >= d.Capacity {
		it.Index -= d.Capacity
	}
	return it
}

func (d Double) InitialWindow(hash uint64, cgSize int) Iter {
	windows := d.Capacity / cgSize
	return Iter{
		Index: alignDown(int(hash%uint64(d.Capacity)), cgSize, d.Capacity),
		step:  stepFor(hash, windows) * cgSize,
	}
}

func (d Double) NextWindow(it Iter, cgSize int) Iter {
	it.Index += it.step
	if it.Index >= d.Capacity {
		it.Index -= d.Capacity
	}
	return it
}

// stepFor derives a per-key stride from the upper bits of hash, forced
// into [1, modulus) and then nudged until it is coprime with modulus.
func stepFor(hash uint64, modulus int) int {
	if modulus <= 1 {
		return 1
	}
	step := int((hash >> 32) | 1)
	step %= modulus
	if step == 0 {
		step = 1
	}
	for gcd(step, modulus) != 1 {
		step += 2
		if step >= modulus {
			step -= modulus
		}
		if step == 0 {
			step = 1
		}
	}
	return step
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func alignDown(i, window, capacity int) int {
	i -= i % window
	if i >= capacity {
		i = 0
	}
	return i
}
