// Package concur implements a small family of concurrent in-memory
// containers: a non-blocking LIFO stack, an unordered data pool, a
// FIFO queue built on flat combining, and a double-buffered indexed
// sequence with lock-free readers and a serialized writer.
//
// None of the containers provide durability, cross-container
// ordering, or transactional composition. Every operation either
// succeeds or reports a not-available condition by return value;
// there are no exception-like escape paths.
package concur
