// Package testsuite holds shared helpers for the concurrent stress
// tests of the four containers in this module: a goroutine-count
// matrix, a multiset equality checker for order-independent
// concurrent assertions, and a jittered scheduling helper for
// randomized interleavings.
package testsuite

// Procs is the goroutine-count matrix stress tests iterate over.
var Procs = []int{1, 2, 4, 8, 16}
