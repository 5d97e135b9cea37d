package testsuite

import (
	"runtime"

	"github.com/valyala/fastrand"
)

// Jitter occasionally yields the goroutine's time slice, using
// fastrand instead of math/rand so the randomness itself never
// becomes a contention point in a benchmark loop meant to stress
// contention elsewhere.
func Jitter(oneInN uint32) {
	if oneInN == 0 {
		return
	}
	if fastrand.Uint32n(oneInN) == 0 {
		runtime.Gosched()
	}
}
