package concur

import (
	"runtime"
	"sync/atomic"
)

// DataPool is an unordered bag over a growing chain of fixed-size
// blocks. Each slot in a block is handed off between exactly one
// producer and one consumer at a time via two independent flags.
//
// Extraction order is unspecified by design; DataPool trades order
// for throughput and must never be tested for insertion-order
// preservation.
type DataPool[T any] struct {
	head     atomic.Pointer[poolBlock[T]]
	inflight atomic.Int64
	cfg      poolConfig
}

type poolBlock[T any] struct {
	slots []poolSlot[T]
	next  *poolBlock[T]
}

// poolSlot's two flags are occupied bits, not readiness bits: true
// means "claimed, do not touch". writable starts clear (free to
// claim for writing); readable starts set, because there is no value
// yet. A producer claims by flipping writable false->true, writes
// the value, then clears readable to publish it. A consumer claims
// by flipping readable false->true, reads the value, then clears
// writable to return the slot to the free pool: the "clear"
// transition is always the one that makes a slot available.
type poolSlot[T any] struct {
	writable atomic.Bool
	readable atomic.Bool
	value    T
}

// NewDataPool returns an empty data pool with the given options
// applied over the defaults.
func NewDataPool[T any](opts ...PoolOption) *DataPool[T] {
	cfg := poolConfig{
		initialBlockSize: defaultInitialBlockSize,
		blockGrowth:      defaultBlockGrowth,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.initialBlockSize <= 0 {
		panic("concur: initial block size must be positive")
	}
	if cfg.blockGrowth <= 1 {
		panic("concur: block growth factor must be greater than 1")
	}
	p := &DataPool[T]{cfg: cfg}
	p.head.Store(newPoolBlock[T](cfg.initialBlockSize, nil))
	return p
}

func newPoolBlock[T any](size int, next *poolBlock[T]) *poolBlock[T] {
	b := &poolBlock[T]{slots: make([]poolSlot[T], size), next: next}
	for i := range b.slots {
		b.slots[i].readable.Store(true)
	}
	return b
}

// Push claims the first writable slot found while walking the block
// chain and stores v there. If every block is fully claimed, a new
// block is prepended with size floor(prevHeadSize * growth) and the
// scan restarts.
func (p *DataPool[T]) Push(v T) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		for b := p.head.Load(); b != nil; b = b.next {
			for i := range b.slots {
				slot := &b.slots[i]
				if slot.writable.CompareAndSwap(false, true) {
					slot.value = v
					slot.readable.Store(false)
					return
				}
			}
		}
		p.grow()
	}
}

// TryPop claims the first readable slot found while walking the
// block chain, moves its value out, and overwrites the slot's
// storage with a zero value so the prior value's lifetime does not
// outlast its logical removal. It reports false once the full chain
// has been scanned without a claimable slot.
func (p *DataPool[T]) TryPop() (v T, ok bool) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for b := p.head.Load(); b != nil; b = b.next {
		for i := range b.slots {
			slot := &b.slots[i]
			if slot.readable.CompareAndSwap(false, true) {
				v = slot.value
				var zero T
				slot.value = zero
				slot.writable.Store(false)
				return v, true
			}
		}
	}
	return v, false
}

// Clear detaches the entire block chain and installs a fresh empty
// head, then waits for any push or pop that started walking the old
// chain before the swap to finish: an epoch/quiescent-state scheme.
// Nothing is manually freed (Go's GC owns that), but no caller
// observes Clear returning while a straggler is still mid-traversal
// of the detached blocks. The wait has no progress bound: under
// sustained concurrent Push/TryPop traffic that never lets inflight
// hit zero, Clear can stall indefinitely.
func (p *DataPool[T]) Clear() {
	p.head.Store(newPoolBlock[T](p.cfg.initialBlockSize, nil))
	for p.inflight.Load() != 0 {
		runtime.Gosched()
	}
}

func (p *DataPool[T]) grow() {
	old := p.head.Load()
	size := p.cfg.initialBlockSize
	if old != nil {
		size = int(float64(len(old.slots)) * p.cfg.blockGrowth)
	}
	nb := newPoolBlock[T](size, old)
	p.head.CompareAndSwap(old, nb)
}
