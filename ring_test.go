// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRingBufferChainGrowth exercises spec scenario 6: enqueueing 1..40
// onto a chain whose first node has capacity 2 must grow into nodes of
// capacity 2, 4, 8, 16, 32 (doubling on every full write node) while
// preserving strict FIFO order across the whole chain.
func TestRingBufferChainGrowth(t *testing.T) {
	c := NewRingBufferChain[int](2)
	first := c.readNode

	for i := 1; i <= 40; i++ {
		c.Enqueue(i)
	}

	var caps []int
	for n := first; n != nil; n = n.next.Load() {
		caps = append(caps, n.cap())
	}
	require.Equal(t, []int{2, 4, 8, 16, 32}, caps)

	for i := 1; i <= 40; i++ {
		v, err := c.TryDequeue()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	_, err := c.TryDequeue()
	require.True(t, IsWouldBlock(err))
}

func TestRingBufferChainEmpty(t *testing.T) {
	c := NewRingBufferChain[string](4)
	require.True(t, c.Empty())

	c.Enqueue("a")
	require.False(t, c.Empty())

	_, err := c.TryDequeue()
	require.NoError(t, err)
	require.True(t, c.Empty())
}

func TestRingBufferChainFIFOWithinCapacity(t *testing.T) {
	c := NewDefaultRingBufferChain[int]()
	for i := range DefaultInitialCapacity {
		c.Enqueue(i)
	}
	for i := range DefaultInitialCapacity {
		v, err := c.TryDequeue()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestRingBufferChainMinimumCapacity(t *testing.T) {
	c := NewRingBufferChain[int](1)
	require.Equal(t, 2, c.writeNode.cap())
}

// TestRingBufferChainConcurrentSPSC runs one producer and one consumer
// goroutine across many growth boundaries and checks strict FIFO is
// preserved end to end.
func TestRingBufferChainConcurrentSPSC(t *testing.T) {
	if RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}
	const total = 100_000
	c := NewRingBufferChain[int](2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		next := 0
		for next < total {
			v, err := c.TryDequeue()
			if err != nil {
				continue
			}
			if v != next {
				t.Errorf("dequeued %d, want %d", v, next)
				return
			}
			next++
		}
	}()

	for i := range total {
		c.Enqueue(i)
	}
	<-done
}
