package concur

import (
	"iter"
	"runtime"
	"sync"
	"sync/atomic"
)

// seqContainer is one of the two array buffers an indexed sequence
// alternates between. items always has length equal to the
// container's capacity; entries at or beyond size are stale.
type seqContainer[T any] struct {
	items []*T
	size  int
}

// Seq is a dynamic indexed sequence with lock-free readers and a
// single serialized writer. Two array containers exist as a double
// buffer: one is published for readers, the other is where the
// current writer works. A write ends with a publish-swap that swaps
// the two buffers' roles, drains any reader still pinned to the
// pre-swap epoch, resyncs the now-private buffer, and releases the
// pointers that write removed.
//
// Capacity only grows; size() is a best-effort hint, not a
// linearized query.
type Seq[T comparable] struct {
	cfg seqConfig

	active atomic.Pointer[seqContainer[T]]

	writeMu sync.Mutex
	writer  *seqContainer[T]

	readers atomic.Int64

	pendingDelete Stack[*T]
}

// NewSeq returns an empty indexed sequence.
func NewSeq[T comparable](opts ...SeqOption) *Seq[T] {
	cfg := seqConfig{
		initialCapacity: defaultInitialCapacity,
		arrayGrowth:     defaultArrayGrowth,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.initialCapacity <= 0 {
		panic("concur: initial capacity must be positive")
	}
	if cfg.arrayGrowth <= 1 {
		panic("concur: array growth factor must be greater than 1")
	}
	s := &Seq[T]{
		cfg:    cfg,
		writer: &seqContainer[T]{items: make([]*T, cfg.initialCapacity)},
	}
	s.active.Store(&seqContainer[T]{items: make([]*T, cfg.initialCapacity)})
	return s
}

// TryAt reads the element at index i. The reader counter is
// incremented before the active container pointer is loaded and
// decremented after the value has been copied out, pinning this call
// to a single reader epoch; any writer whose publish-swap started
// after the increment will block at its drain barrier until this
// call finishes, so the loaded pointer can never be released out
// from under it: a single pinned-epoch read rather than a CAS retry
// loop against the container's own pointer.
func (s *Seq[T]) TryAt(i int) (v T, ok bool) {
	s.readers.Add(1)
	defer s.readers.Add(-1)

	c := s.active.Load()
	if i < 0 || i >= c.size {
		return v, false
	}
	return *c.items[i], true
}

// Size returns the active container's size at the observation point.
// It is immediately stale under concurrent writes.
func (s *Seq[T]) Size() int {
	return s.active.Load().size
}

// Capacity returns the active container's backing array length.
// Capacity is monotonically non-decreasing across writer operations.
func (s *Seq[T]) Capacity() int {
	return len(s.active.Load().items)
}

// PushBack appends v to the end of the sequence.
func (s *Seq[T]) PushBack(v T) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	newSize := s.writer.size + 1
	s.resizeArray(s.writer, newSize, true)
	nv := v
	s.writer.items[newSize-1] = &nv
	s.publishSwap()
}

// TryPopBack removes the last element, reporting false without
// side effect if the sequence was empty.
func (s *Seq[T]) TryPopBack() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n := s.writer.size
	if n == 0 {
		return false
	}
	s.pendingDelete.Push(s.writer.items[n-1])
	s.writer.size = n - 1
	s.publishSwap()
	return true
}

// TryInsert inserts v at index i, shifting everything from i onward
// one position to the right. It requires i < size and reports false
// without side effect otherwise.
func (s *Seq[T]) TryInsert(i int, v T) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if i < 0 || i >= s.writer.size {
		return false
	}
	s.resizeArrayForInsert(s.writer, i, v)
	s.publishSwap()
	return true
}

// TryErase removes the element at index i, reporting false without
// side effect if i is out of range.
func (s *Seq[T]) TryErase(i int) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if i < 0 || i >= s.writer.size {
		return false
	}
	s.erase(i)
	return true
}

// TestAndErase removes the element at index i only if it currently
// equals v, reporting false without side effect otherwise.
func (s *Seq[T]) TestAndErase(i int, v T) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if i < 0 || i >= s.writer.size {
		return false
	}
	if *s.writer.items[i] != v {
		return false
	}
	s.erase(i)
	return true
}

// Clear removes every element, preserving capacity.
func (s *Seq[T]) Clear() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for i := 0; i < s.writer.size; i++ {
		s.pendingDelete.Push(s.writer.items[i])
	}
	s.writer.size = 0
	s.publishSwap()
}

// All returns an iterator over (index, value) pairs. Each step is an
// independent TryAt snapshot, not a frozen view: a concurrent writer
// can change what a later step observes, and the iteration stops the
// first time an index falls out of range.
func (s *Seq[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; ; i++ {
			v, ok := s.TryAt(i)
			if !ok {
				return
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// erase must be called with writeMu held.
func (s *Seq[T]) erase(pos int) {
	c := s.writer
	s.pendingDelete.Push(c.items[pos])
	for i := pos; i < c.size-1; i++ {
		c.items[i] = c.items[i+1]
	}
	c.size--
	s.publishSwap()
}

// resizeArray grows c's backing array to hold at least newSize
// elements, copying existing contents over when requested. Capacity
// never shrinks.
func (s *Seq[T]) resizeArray(c *seqContainer[T], newSize int, copyContents bool) {
	if len(c.items) >= newSize {
		c.size = newSize
		return
	}
	newItems := make([]*T, int(float64(newSize)*s.cfg.arrayGrowth))
	if copyContents {
		copy(newItems[:c.size], c.items[:c.size])
	}
	c.items = newItems
	c.size = newSize
}

// resizeArrayForInsert grows c if needed and shifts everything from
// pos onward one slot to the right to make room for value.
func (s *Seq[T]) resizeArrayForInsert(c *seqContainer[T], pos int, value T) {
	newSize := c.size + 1
	if len(c.items) < newSize {
		newItems := make([]*T, int(float64(newSize)*s.cfg.arrayGrowth))
		copy(newItems[:pos], c.items[:pos])
		copy(newItems[pos+1:newSize], c.items[pos:c.size])
		c.items = newItems
	} else {
		for i := c.size; i > pos; i-- {
			c.items[i] = c.items[i-1]
		}
	}
	nv := value
	c.items[pos] = &nv
	c.size = newSize
}

// publishSwap must be called with writeMu held. It makes the
// current writer contents visible to readers, then runs the double
// drain barrier around resyncing the old reader-visible container
// into the new writer and releasing the pending-delete stack: the
// first drain guarantees no reader is still holding pointers from the
// pre-swap epoch before that container's array is touched at all, and
// the second guarantees no reader that started during the release
// itself could have observed an already-released pointer.
//
// The resync (bringing the old active container's contents up to
// date with what was just published) must happen only after the
// first drain: until a reader's TryAt has finished, the container it
// loaded may still be either buffer, and mutating an array a pinned
// reader can still index into is exactly the torn-read hazard this
// barrier exists to prevent.
func (s *Seq[T]) publishSwap() {
	prevActive := s.active.Load()
	next := s.writer

	s.active.Store(next)
	s.writer = prevActive

	s.drainReaders()

	s.resizeArray(s.writer, next.size, false)
	copy(s.writer.items[:next.size], next.items[:next.size])
	s.writer.size = next.size

	for {
		if _, ok := s.pendingDelete.TryPop(); !ok {
			break
		}
	}
	s.drainReaders()
}

// drainReaders has no progress bound: under continuous reader
// traffic that never lets the counter hit zero, a write can stall
// here indefinitely. That's the accepted best-effort tradeoff for a
// container with no reader-count cap or priority mechanism.
func (s *Seq[T]) drainReaders() {
	for s.readers.Load() != 0 {
		runtime.Gosched()
	}
}
