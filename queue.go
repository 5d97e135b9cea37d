package concur

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

type reqKind uint32

const (
	kindNone reqKind = iota
	kindPush
	kindPop
	kindRespPush
	kindRespPop
	kindRespPopFail
	kindRequeue
	kindRespRequeue
)

// record is one caller's publication record: a request slot the
// owning Handle writes, and a response the combiner writes back. The
// atomic kind field is also the synchronization point for value: a
// write to value always precedes the atomic store that publishes it,
// so whichever goroutine observes the new kind also observes value.
type record[T any] struct {
	next   atomic.Pointer[record[T]]
	active atomic.Bool
	age    uint64 // touched only by whichever goroutine currently holds combiner rights
	kind   atomic.Uint32
	value  T
}

// qnode is one link of the logical FIFO chain. Only the combiner
// touches these; a spin-lock, not the Go scheduler, is what makes
// that "only one at a time" true.
type qnode[T any] struct {
	next  *qnode[T]
	value T
}

// Queue is a FIFO built on flat combining: one goroutine at a time
// becomes the combiner and applies every pending request currently
// posted to the publication list before releasing the combiner lock.
// It does not guarantee FIFO ordering among concurrently-posted
// pushes — only that each push is eventually linearized against the
// combiner's chosen ordering.
type Queue[T any] struct {
	cfg queueConfig

	publication atomic.Pointer[record[T]]
	combining   atomic.Bool
	passCounter uint64 // touched only by the combiner

	head atomic.Pointer[qnode[T]]
	tail atomic.Pointer[qnode[T]]

	handles sync.Pool
}

// NewQueue returns an empty queue.
func NewQueue[T any](opts ...QueueOption) *Queue[T] {
	cfg := queueConfig{maxRecordAge: defaultMaxRecordAge}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &Queue[T]{cfg: cfg}
	q.handles.New = func() any { return q.Register() }
	return q
}

// Handle is a caller's persistent publication record. Callers that
// want the aging-liveness guarantee (an idle record is unlinked
// within one aging window) should keep and reuse a Handle across
// calls rather than using Queue's convenience methods, which borrow a
// handle from an internal pool for the duration of a single call.
type Handle[T any] struct {
	q   *Queue[T]
	rec *record[T]
}

// Register allocates a new publication record bound to the returned
// Handle. The record is not linked into the publication list until
// the handle's first Push or TryPop.
func (q *Queue[T]) Register() *Handle[T] {
	return &Handle[T]{q: q, rec: &record[T]{}}
}

// Push posts a push request and blocks until some combiner pass
// applies it.
func (h *Handle[T]) Push(v T) {
	_, _, _ = h.do(context.Background(), kindPush, v)
}

// PushContext is Push with a cancellation hook. Cancellation only
// affects the caller's progress: a push that has not yet been
// combined is dropped cleanly (the value was never linearized into
// the queue), but a push a racing combiner pass already applied stays
// applied regardless of the cancellation.
func (h *Handle[T]) PushContext(ctx context.Context, v T) error {
	_, _, err := h.do(ctx, kindPush, v)
	return err
}

// TryPop posts a pop request and blocks until some combiner pass
// resolves it, reporting false if the queue was empty at that point.
func (h *Handle[T]) TryPop() (T, bool) {
	v, k, _ := h.do(context.Background(), kindPop, *new(T))
	return v, k == kindRespPop
}

// TryPopContext is TryPop with a cancellation hook. If a combiner
// pass already dequeued a value for this request by the time the
// context is cancelled, that value is requeued at the front of the
// FIFO rather than dropped, so cancellation never loses an element.
func (h *Handle[T]) TryPopContext(ctx context.Context) (T, bool, error) {
	v, k, err := h.do(ctx, kindPop, *new(T))
	return v, k == kindRespPop, err
}

func (h *Handle[T]) do(ctx context.Context, kind reqKind, value T) (T, reqKind, error) {
	r := h.enlist(kind, value)
	for {
		switch k := reqKind(r.kind.Load()); k {
		case kindRespPush, kindRespPop, kindRespPopFail:
			v := r.value
			r.kind.Store(uint32(kindNone))
			return v, k, nil
		}

		if !r.active.Load() {
			r = h.enlist(kind, value)
			continue
		}

		if h.q.combining.CompareAndSwap(false, true) {
			h.q.combine()
			continue
		}

		select {
		case <-ctx.Done():
			h.abandon(r)
			var zero T
			return zero, kindNone, context.Cause(ctx)
		default:
			runtime.Gosched()
		}
	}
}

// abandon cleans up r after its owning call was cancelled while r was
// still linked. A request the combiner has not yet touched is
// cancelled in place; a push the combiner already applied is left
// alone since the value is already in the FIFO. A pop the combiner
// already resolved has removed a value from the FIFO into r.value —
// since the caller is walking away without consuming it, that value
// is pushed back onto the front of the FIFO so it is never silently
// dropped from the queue's contents.
func (h *Handle[T]) abandon(r *record[T]) {
	for {
		switch k := reqKind(r.kind.Load()); k {
		case kindPush, kindPop:
			if r.kind.CompareAndSwap(uint32(k), uint32(kindNone)) {
				return
			}
		case kindRespPush, kindRespPopFail:
			r.kind.Store(uint32(kindNone))
			return
		case kindRespPop:
			v := r.value
			r.kind.Store(uint32(kindNone))
			h.q.requeueFront(v)
			return
		default:
			return
		}
	}
}

// enlist writes the request into the handle's record and links the
// record into the publication list if it is not already linked.
func (h *Handle[T]) enlist(kind reqKind, value T) *record[T] {
	r := h.rec
	r.value = value
	r.kind.Store(uint32(kind))
	if !r.active.Load() {
		r.active.Store(true)
		for {
			head := h.q.publication.Load()
			r.next.Store(head)
			if h.q.publication.CompareAndSwap(head, r) {
				break
			}
		}
	}
	return r
}

// combine applies every pending request currently reachable from the
// publication list head, then ages out and unlinks idle records.
// Only the combiner mutates the FIFO chain (head/tail) and the
// publication list's linkage.
func (q *Queue[T]) combine() {
	q.passCounter++

	var prev *record[T]
	cur := q.publication.Load()
	for cur != nil {
		if k := reqKind(cur.kind.Load()); k != kindNone {
			cur.age = q.passCounter
			switch k {
			case kindPush:
				n := &qnode[T]{value: cur.value}
				if tail := q.tail.Load(); tail != nil {
					tail.next = n
				} else {
					q.head.Store(n)
				}
				q.tail.Store(n)
				cur.kind.Store(uint32(kindRespPush))
			case kindPop:
				if head := q.head.Load(); head != nil {
					cur.value = head.value
					next := head.next
					q.head.Store(next)
					if next == nil {
						q.tail.Store(nil)
					}
					head.next = nil // drop the popped node's own reference; nothing else points to it
					cur.kind.Store(uint32(kindRespPop))
				} else {
					cur.kind.Store(uint32(kindRespPopFail))
				}
			case kindRequeue:
				n := &qnode[T]{value: cur.value, next: q.head.Load()}
				q.head.Store(n)
				if q.tail.Load() == nil {
					q.tail.Store(n)
				}
				cur.kind.Store(uint32(kindRespRequeue))
			}
			prev = cur
			cur = cur.next.Load()
			continue
		}

		if q.passCounter-cur.age <= q.cfg.maxRecordAge {
			prev = cur
			cur = cur.next.Load()
			continue
		}

		next := cur.next.Load()
		if prev == nil {
			if !q.publication.CompareAndSwap(cur, next) {
				// a new record was linked at head concurrently; leave
				// cur in place and retry aging it on a later pass.
				prev = cur
				cur = next
				continue
			}
		} else {
			prev.next.Store(next)
		}
		cur.active.Store(false)
		cur = next
	}

	q.combining.Store(false)
}

// requeueFront puts v back at the head of the FIFO, going through the
// same combining protocol as any other request. It uses a throwaway
// record rather than a caller's Handle, and ignores context
// cancellation entirely: this only runs to undo an already-applied
// dequeue that its caller is abandoning, and dropping v here would
// defeat the reason it exists.
func (q *Queue[T]) requeueFront(v T) {
	r := &record[T]{value: v}
	r.kind.Store(uint32(kindRequeue))
	r.active.Store(true)
	for {
		head := q.publication.Load()
		r.next.Store(head)
		if q.publication.CompareAndSwap(head, r) {
			break
		}
	}
	for reqKind(r.kind.Load()) != kindRespRequeue {
		if q.combining.CompareAndSwap(false, true) {
			q.combine()
			continue
		}
		runtime.Gosched()
	}
	// Reset to kindNone so this throwaway record ages out and is
	// unlinked normally instead of being reprocessed every pass.
	r.kind.Store(uint32(kindNone))
}

// Push borrows a transient handle to post a push request. Prefer
// Register for callers that need aging-liveness guarantees tied to a
// specific goroutine.
func (q *Queue[T]) Push(v T) {
	h := q.handles.Get().(*Handle[T])
	h.Push(v)
	q.handles.Put(h)
}

// TryPop borrows a transient handle to post a pop request.
func (q *Queue[T]) TryPop() (T, bool) {
	h := q.handles.Get().(*Handle[T])
	v, ok := h.TryPop()
	q.handles.Put(h)
	return v, ok
}

// Empty is a best-effort observation of the FIFO chain's head.
func (q *Queue[T]) Empty() bool {
	return q.head.Load() == nil
}
