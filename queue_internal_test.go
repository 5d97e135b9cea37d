package concur

import "testing"

// White-box half of the aging-liveness check (see TestQueueAgingLiveness
// in queue_test.go): confirms record.active actually flips to false
// once a handle's record has aged past maxRecordAge, rather than just
// happening to still work after re-enlisting.
func TestRecordAgesOutAndRelinks(t *testing.T) {
	const maxAge = 10
	q := NewQueue[int](WithMaxRecordAge(maxAge))

	idle := q.Register()
	idle.Push(1)
	if !idle.rec.active.Load() {
		t.Fatalf("record should be active immediately after enlisting")
	}
	if _, ok := idle.TryPop(); !ok {
		t.Fatalf("TryPop() failed on freshly-pushed value")
	}

	active := q.Register()
	for i := 0; i < maxAge+3; i++ {
		active.Push(0)
		active.TryPop()
	}

	if idle.rec.active.Load() {
		t.Fatalf("idle record should have aged out and been unlinked after %d combiner passes", 2*(maxAge+3))
	}

	idle.Push(2)
	if !idle.rec.active.Load() {
		t.Fatalf("record should be re-linked and active after re-enlisting")
	}
	if v, ok := idle.TryPop(); !ok || v != 2 {
		t.Fatalf("TryPop() = %v, %v, want 2, true after re-enlisting", v, ok)
	}
}

// A pop the combiner already resolved must not be lost if its caller
// walks away before consuming the response: abandon requeues the
// dequeued value at the front of the FIFO instead of dropping it.
func TestAbandonRequeuesUndeliveredPop(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)

	h := q.Register()
	r := h.enlist(kindPop, 0)
	if q.combining.CompareAndSwap(false, true) {
		q.combine()
	}
	if reqKind(r.kind.Load()) != kindRespPop || r.value != 1 {
		t.Fatalf("combine() did not resolve the pop as expected, kind=%d value=%d", r.kind.Load(), r.value)
	}

	h.abandon(r)

	v, ok := q.TryPop()
	if !ok || v != 1 {
		t.Fatalf("TryPop() = %v, %v, want 1, true — abandoned pop must be requeued, not lost", v, ok)
	}
	v, ok = q.TryPop()
	if !ok || v != 2 {
		t.Fatalf("TryPop() = %v, %v, want 2, true", v, ok)
	}
}

// A push the combiner has not yet applied is cancelled cleanly: no
// phantom value appears in the FIFO.
func TestAbandonDropsUnappliedPush(t *testing.T) {
	q := NewQueue[int]()
	h := q.Register()
	r := h.enlist(kindPush, 99)
	h.abandon(r)

	if !q.Empty() {
		t.Fatalf("queue should still be empty after abandoning an uncombined push")
	}
	if reqKind(r.kind.Load()) != kindNone {
		t.Fatalf("abandoned request should be reset to kindNone, got %d", r.kind.Load())
	}
}

func TestQueuePassCounterAdvancesPerCombine(t *testing.T) {
	q := NewQueue[int]()
	h := q.Register()
	h.Push(1)
	h.TryPop()
	h.Push(2)
	h.TryPop()
	if q.passCounter < 2 {
		t.Fatalf("passCounter = %d, want at least 2 after two combiner-driven round trips", q.passCounter)
	}
}
