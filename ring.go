// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// ringBuffer is a fixed-capacity single-producer single-consumer bounded
// queue.
//
// Based on Lamport's ring buffer with cached index optimization, exactly
// as code.hybscloud.com/lfq's SPSC: the producer caches the consumer's
// dequeue index and vice versa, cutting cross-core cache line traffic.
// Unlike lfq.SPSC, a node here also carries a next pointer so a chain of
// nodes (see RingBufferChain) can link a bigger successor once this one
// fills up.
type ringBuffer[T any] struct {
	_          pad
	head       atomix.Uint64 // consumer reads from here
	_          pad
	cachedTail uint64 // consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // producer writes here
	_          pad
	cachedHead uint64 // producer's cached view of head
	_          pad
	next       atomic.Pointer[ringBuffer[T]] // successor node, nil if none
	buffer     []T
	mask       uint64
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	n := uint64(roundToPow2(capacity))
	return &ringBuffer[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

func (n *ringBuffer[T]) cap() int {
	return int(n.mask + 1)
}

// tryEnqueue adds an element to this node only (producer only).
// Returns ErrWouldBlock if this node is full; the caller (RingBufferChain)
// is responsible for growing.
func (n *ringBuffer[T]) tryEnqueue(v T) error {
	tail := n.tail.LoadRelaxed()
	if tail-n.cachedHead > n.mask {
		n.cachedHead = n.head.LoadAcquire()
		if tail-n.cachedHead > n.mask {
			return ErrWouldBlock
		}
	}

	n.buffer[tail&n.mask] = v
	n.tail.StoreRelease(tail + 1)
	return nil
}

// tryDequeue removes and returns an element from this node only.
func (n *ringBuffer[T]) tryDequeue() (T, error) {
	head := n.head.LoadRelaxed()
	if head >= n.cachedTail {
		n.cachedTail = n.tail.LoadAcquire()
		if head >= n.cachedTail {
			var zero T
			return zero, ErrWouldBlock
		}
	}

	elem := n.buffer[head&n.mask]
	var zero T
	n.buffer[head&n.mask] = zero
	n.head.StoreRelease(head + 1)
	return elem, nil
}

// RingBufferChain is an unbounded single-producer single-consumer queue
// built by chaining ringBuffer nodes of strictly doubling capacity.
//
// One node is the current write node (producer's cursor), another
// (possibly the same) is the current read node (consumer's cursor). On
// enqueue, a full write node is replaced by a fresh node of double
// capacity, linked via an atomic.Pointer published with release
// semantics so the consumer can follow it once it drains the old node.
// No node is reclaimed until the consumer has fully drained it and
// advanced past it; after that it becomes unreferenced and ordinary GC
// reclaims it.
type RingBufferChain[T any] struct {
	writeNode *ringBuffer[T]
	readNode  *ringBuffer[T]
}

// NewRingBufferChain creates a chain whose first node has the given
// initial capacity (rounded up to a power of 2, minimum 2).
func NewRingBufferChain[T any](initialCapacity int) *RingBufferChain[T] {
	if initialCapacity < 2 {
		initialCapacity = 2
	}
	n := newRingBuffer[T](initialCapacity)
	return &RingBufferChain[T]{writeNode: n, readNode: n}
}

// DefaultInitialCapacity is the chain's default first-node size.
const DefaultInitialCapacity = 32

// NewDefaultRingBufferChain creates a chain using DefaultInitialCapacity.
func NewDefaultRingBufferChain[T any]() *RingBufferChain[T] {
	return NewRingBufferChain[T](DefaultInitialCapacity)
}

// Enqueue adds an element to the chain (single producer only). It never
// blocks: a full write node grows into a successor of double capacity.
func (c *RingBufferChain[T]) Enqueue(v T) {
	if err := c.writeNode.tryEnqueue(v); err == nil {
		return
	}

	grown := newRingBuffer[T](c.writeNode.cap() * 2)
	// Publish the link with release semantics (atomic.Pointer.Store is
	// a sequentially consistent store, stronger than the release this
	// needs, but it is the portable way to get the ordering guarantee)
	// so a consumer that observes the non-nil next field also observes
	// a fully initialized successor node.
	c.writeNode.next.Store(grown)
	c.writeNode = grown

	// Capacity just doubled from the prior node's size; the new node is
	// guaranteed to have room for v.
	_ = c.writeNode.tryEnqueue(v)
}

// TryDequeue removes and returns an element (single consumer only).
// Returns ErrWouldBlock only when the entire chain is empty.
func (c *RingBufferChain[T]) TryDequeue() (T, error) {
	for {
		v, err := c.readNode.tryDequeue()
		if err == nil {
			return v, nil
		}

		next := c.readNode.next.Load()
		if next == nil {
			var zero T
			return zero, ErrWouldBlock
		}
		// The node is exhausted and has a successor: advance. The old
		// node now has no reachable reference from the chain and is
		// left for the garbage collector.
		c.readNode = next
	}
}

// Empty reports whether the chain currently holds no elements. It is a
// best-effort snapshot from the consumer's point of view: a concurrent
// Enqueue may land immediately after this returns true.
func (c *RingBufferChain[T]) Empty() bool {
	if c.readNode.head.LoadRelaxed() != c.readNode.tail.LoadAcquire() {
		return false
	}
	return c.readNode.next.Load() == nil
}
