// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOutboxSink struct {
	deliveries []pendingDelivery
}

func (f *fakeOutboxSink) enqueueOutgoing(destID ActorID, b batchHandle) {
	f.deliveries = append(f.deliveries, pendingDelivery{destID: destID, batch: b})
}

// TestWriterZeroRecipientsDropped exercises spec.md §4.2/§8's
// idempotence law: closing a writer with zero recipients has no
// observable effect other than returning the writer to its pool.
func TestWriterZeroRecipientsDropped(t *testing.T) {
	sink := &fakeOutboxSink{}
	ob := newOutbox(sink)

	w := BeginSend[int](ob)
	w.AddMessage(1).AddMessage(2)
	w.Close()

	require.Empty(t, sink.deliveries)
}

func TestWriterDoubleCloseState(t *testing.T) {
	sink := &fakeOutboxSink{}
	ob := newOutbox(sink)

	w := BeginSend[int](ob)
	w.AddRecipient(1).AddMessage(1)
	w.Close()
	require.Panics(t, func() { w.Close() })
}

func TestWriterOpsAfterClosePanic(t *testing.T) {
	sink := &fakeOutboxSink{}
	ob := newOutbox(sink)

	w := BeginSend[int](ob)
	w.AddRecipient(1).AddMessage(1)
	w.Close()

	w2 := BeginSend[int](ob)
	w2.AddRecipient(1)
	w2.closed = true
	require.Panics(t, func() { w2.AddMessage(1) })
	require.Panics(t, func() { w2.AddRecipient(2) })
	w2.closed = false // let the writer return to its pool normally
	w2.Close()
}

// TestBatchCloseDeliversOncePerRecipient checks invariant 1 from
// spec.md §8: release(b) must be invoked exactly |recipients| times
// before the batch is reacquired from its pool, and every recipient
// sees the writer's messages in insertion order.
func TestBatchCloseDeliversOncePerRecipient(t *testing.T) {
	sink := &fakeOutboxSink{}
	ob := newOutbox(sink)

	w := BeginSend[string](ob)
	w.SetSource(7).SetChannel(2)
	w.AddRecipient(1).AddRecipient(2).AddRecipient(3)
	w.AddMessage("a").AddMessage("b")
	w.Close()

	require.Len(t, sink.deliveries, 3)
	for i, dest := range []ActorID{1, 2, 3} {
		require.Equal(t, dest, sink.deliveries[i].destID)
		b := sink.deliveries[i].batch
		require.Equal(t, 3, b.recipientCount())
		require.Equal(t, ActorID(7), b.sourceActorID())
		require.Equal(t, 2, b.channel())
	}

	b := sink.deliveries[0].batch.(*Batch[string])
	require.Equal(t, []string{"a", "b"}, b.messages)

	set := poolSetOf[string](ob)
	pool := set.forClass(log2Ceil(2))

	// Fewer than |recipients| releases: the batch stays out of the pool.
	b.release()
	_, err := pool.free.TryDequeue()
	require.True(t, IsWouldBlock(err))

	b.release()
	_, err = pool.free.TryDequeue()
	require.True(t, IsWouldBlock(err))

	// The final release returns it to the pool, reset.
	b.release()
	got, err := pool.free.TryDequeue()
	require.NoError(t, err)
	require.Same(t, b, got)
	require.Empty(t, got.messages)
	require.Empty(t, got.recipients)
	require.Equal(t, Undefined, got.sourceID)
}

func TestBatchPoolReusesFreedBatches(t *testing.T) {
	sink := &fakeOutboxSink{}
	ob := newOutbox(sink)

	send := func() *Batch[int] {
		w := BeginSend[int](ob)
		w.AddRecipient(1)
		w.AddMessage(1)
		w.Close()
		d := sink.deliveries[len(sink.deliveries)-1]
		return d.batch.(*Batch[int])
	}

	first := send()
	first.release()

	second := send()
	require.Same(t, first, second)
}

func TestLog2Ceil(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4}
	for n, want := range cases {
		require.Equal(t, want, log2Ceil(n), "log2Ceil(%d)", n)
	}
}
