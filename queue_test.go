package concur_test

import (
	"sync"
	"testing"

	"github.com/gostructures/concur"
	"github.com/gostructures/concur/internal/testsuite"
)

// Single-threaded queue: push 1,2,3; pop -> 1,2,3, then fail.
func TestQueueFIFOSingleThread(t *testing.T) {
	q := concur.NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Fatalf("TryPop() = %v, %v, want %v, true", got, ok, want)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("TryPop() succeeded on an empty queue")
	}
}

func TestQueueEmpty(t *testing.T) {
	q := concur.NewQueue[int]()
	if !q.Empty() {
		t.Fatalf("new queue should be empty")
	}
	q.Push(1)
	if q.Empty() {
		t.Fatalf("queue with one element should not be empty")
	}
}

// FIFO order under a single thread must hold for arbitrary sequences.
func TestQueueFIFOSequence(t *testing.T) {
	q := concur.NewQueue[int]()
	const n = 500
	for i := 0; i < n; i++ {
		q.Push(i)
	}
	for i := 0; i < n; i++ {
		got, ok := q.TryPop()
		if !ok || got != i {
			t.Fatalf("TryPop() = %v, %v, want %v, true", got, ok, i)
		}
	}
}

// N producers push M distinct values each, 8 consumers drain exactly
// that many pops; the resulting multiset equals the pushed multiset
// and no value is invented.
func TestQueueMultisetConcurrent(t *testing.T) {
	const (
		producers = 8
		perProc   = 1000
		consumers = 8
	)
	q := concur.NewQueue[int]()

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProc; i++ {
				q.Push(p*perProc + i)
				testsuite.Jitter(64)
			}
		}(p)
	}
	wg.Wait()

	total := producers * perProc
	results := make(chan int, total)
	var count int
	var mu sync.Mutex
	var cwg sync.WaitGroup
	cwg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer cwg.Done()
			for {
				mu.Lock()
				if count >= total {
					mu.Unlock()
					return
				}
				count++
				mu.Unlock()

				for {
					v, ok := q.TryPop()
					if ok {
						results <- v
						break
					}
					testsuite.Jitter(8)
				}
			}
		}()
	}
	cwg.Wait()
	close(results)

	var got []int
	for v := range results {
		got = append(got, v)
	}
	want := make([]int, total)
	for i := range want {
		want[i] = i
	}
	if !testsuite.NewMultiset(got).Equal(testsuite.NewMultiset(want)) {
		t.Fatalf("got %d values, want %d matching the pushed multiset", len(got), len(want))
	}
}

// An idle handle can still make progress after a long run of combiner
// passes driven entirely by other handles: its record must be
// re-enlistable even once aged out and unlinked. The white-box half
// of this check (observing record.active directly) lives in
// queue_internal_test.go, in package concur.
func TestQueueAgingLiveness(t *testing.T) {
	const maxAge = 20
	q := concur.NewQueue[int](concur.WithMaxRecordAge(maxAge))

	idle := q.Register()
	idle.Push(1)

	active := q.Register()
	for i := 0; i < maxAge+5; i++ {
		active.Push(2)
		if _, ok := active.TryPop(); !ok {
			t.Fatalf("TryPop() failed on round %d", i)
		}
	}

	// Drain whatever the aging loop left behind so the next pop can
	// only return what idle is about to push.
	for {
		if _, ok := active.TryPop(); !ok {
			break
		}
	}

	// idle's own last request already completed; maxAge+5 push/pop
	// rounds through active (two combiner passes each) must have aged idle's
	// record out. Re-issuing a request on idle must still work,
	// which is only possible if it can re-enlist after being aged
	// out.
	idle.Push(3)
	if v, ok := active.TryPop(); !ok || v != 3 {
		t.Fatalf("TryPop() = %v, %v, want 3, true after idle re-enlisted", v, ok)
	}
}
