// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"reflect"

	"code.hybscloud.com/atomix"
)

// Mail is what a registered handler receives: the batch's messages,
// plus routing metadata and the outbox to respond through.
type Mail[T any] struct {
	Source      ActorID
	Destination ActorID
	Channel     int
	Messages    []T
	Outbox      *Outbox
}

// batchHandle is the type-erased view of a *Batch[T] used by the
// delivery pipeline (pendingDelivery, Completion, Worker queues), which
// must carry arbitrary payload types without knowing T: a mapping from a
// type identity token to a type-erased handle recovered at the use site
// — here the use site is Inbox.receive, which recovers the concrete T
// via its own typed handler table.
type batchHandle interface {
	// dispatch delivers the batch to destID's inbox handler table, if a
	// handler for T is registered. Handlers return nothing, so it returns
	// nil; a handler panic propagates to the caller.
	dispatch(ib *Inbox, destID ActorID, ob *Outbox) error
	// release records one completed delivery; once every recipient has
	// been accounted for, the batch is reset and returned to its pool.
	release()
	recipientCount() int
	payloadTypeName() string
	sourceActorID() ActorID
	channel() int
}

// Batch is a pooled, reference-counted container of recipients and
// messages of a single payload type. Once a Writer
// closes, a Batch is immutable except for releaseCounter until it is
// released back to its pool.
type Batch[T any] struct {
	sourceID       ActorID
	channelID      int
	recipients     []ActorID
	messages       []T
	releaseCounter atomix.Int64
	pool           *batchPool[T]
}

func (b *Batch[T]) recipientCount() int    { return len(b.recipients) }
func (b *Batch[T]) sourceActorID() ActorID { return b.sourceID }
func (b *Batch[T]) channel() int           { return b.channelID }

func (b *Batch[T]) payloadTypeName() string {
	// Via the pointer type so interface-typed payloads resolve to the
	// interface type instead of a nil reflect.Type.
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func (b *Batch[T]) dispatch(ib *Inbox, destID ActorID, ob *Outbox) error {
	handler, ok := ib.lookup(reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		return nil
	}
	typed, ok := handler.(func(Mail[T]))
	if !ok {
		// Registered for a different concrete type under a colliding
		// reflect.Type key; cannot happen through the typed OnAll API but
		// guarded defensively since the table is type-erased.
		return nil
	}
	typed(Mail[T]{
		Source:      b.sourceID,
		Destination: destID,
		Channel:     b.channelID,
		Messages:    b.messages,
		Outbox:      ob,
	})
	return nil
}

func (b *Batch[T]) release() {
	if b.releaseCounter.AddAcqRel(1) != int64(len(b.recipients)) {
		return
	}
	b.reset()
	b.pool.put(b)
}

func (b *Batch[T]) reset() {
	b.sourceID = Undefined
	b.channelID = 0
	b.recipients = b.recipients[:0]
	for i := range b.messages {
		var zero T
		b.messages[i] = zero
	}
	b.messages = b.messages[:0]
	b.releaseCounter.StoreRelaxed(0)
}

// batchPool is a per-(T, capacity-class) pool of reusable batches, built
// on top of RingBufferChain: acquire()/release(x) on a per-capacity-class
// RingBufferChain. class is ceil(log2(messageCount)); cap is 2^class.
type batchPool[T any] struct {
	class int
	cap   int
	free  *RingBufferChain[*Batch[T]]
}

func newBatchPool[T any](class int) *batchPool[T] {
	return &batchPool[T]{
		class: class,
		cap:   1 << class,
		free:  NewRingBufferChain[*Batch[T]](4),
	}
}

func (p *batchPool[T]) get() *Batch[T] {
	if b, err := p.free.TryDequeue(); err == nil {
		return b
	}
	return &Batch[T]{
		messages: make([]T, 0, p.cap),
		pool:     p,
	}
}

func (p *batchPool[T]) put(b *Batch[T]) {
	p.free.Enqueue(b)
}

// poolSet owns one batchPool[T] per capacity class for a single payload
// type T, indexed by class. It is itself owned by exactly one Outbox.
type poolSet[T any] struct {
	classes []*batchPool[T]
}

func (s *poolSet[T]) forClass(class int) *batchPool[T] {
	for len(s.classes) <= class {
		s.classes = append(s.classes, nil)
	}
	if s.classes[class] == nil {
		s.classes[class] = newBatchPool[T](class)
	}
	return s.classes[class]
}

// Writer is a transient builder that accumulates a batch and dispatches
// it on Close. A Writer is obtained from an Outbox via
// BeginSend and must not be used from more than one goroutine.
type Writer[T any] struct {
	ob        *Outbox
	set       *poolSet[T]
	sourceID  ActorID
	channelID int
	recipient []ActorID
	message   []T
	closed    bool
	discard   bool
}

// SetSource overrides the source ActorID stamped on the batch. BeginSend
// already stamps the outbox's current source, which Actor.run sets to
// the running actor before dispatching to it, so handler responses are
// attributed correctly; most callers never need to call this directly.
func (w *Writer[T]) SetSource(id ActorID) *Writer[T] {
	if w.discard {
		return w
	}
	w.sourceID = id
	return w
}

// SetChannel sets the channel tag carried on the batch.
func (w *Writer[T]) SetChannel(channel int) *Writer[T] {
	if w.discard {
		return w
	}
	w.channelID = channel
	return w
}

// AddRecipient appends a destination ActorID. Delivery order to each
// recipient follows the order messages were appended, not the order
// recipients were appended (every recipient gets every message).
func (w *Writer[T]) AddRecipient(id ActorID) *Writer[T] {
	if w.discard {
		return w
	}
	if w.closed {
		panic("compose: AddRecipient after Close")
	}
	w.recipient = append(w.recipient, id)
	return w
}

// AddMessage appends a message to the batch, in order.
func (w *Writer[T]) AddMessage(msg T) *Writer[T] {
	if w.discard {
		return w
	}
	if w.closed {
		panic("compose: AddMessage after Close")
	}
	w.message = append(w.message, msg)
	return w
}

// Close moves the writer's accumulated state into a pooled Batch and
// submits one delivery per recipient to the owning outbox's send path.
// A writer with zero recipients is silently dropped: no
// batch is dispatched, and the writer still returns to its pool.
//
// A second Close panics in every build; this module has no release-mode
// variant in which it is idempotent, since the cost of the panic path is
// zero on the success path.
func (w *Writer[T]) Close() {
	if w.discard {
		return
	}
	if w.closed {
		panic("compose: double Close of a Writer")
	}
	w.closed = true
	defer putWriter(w.ob, w)

	if len(w.recipient) == 0 {
		return
	}

	class := log2Ceil(len(w.message))
	pool := w.set.forClass(class)
	b := pool.get()
	b.sourceID = w.sourceID
	b.channelID = w.channelID
	b.recipients = append(b.recipients[:0], w.recipient...)
	b.messages = append(b.messages[:0], w.message...)
	b.releaseCounter.StoreRelaxed(0)

	for _, r := range b.recipients {
		w.ob.submit(r, b)
	}
}

func (w *Writer[T]) clear() {
	w.sourceID = Undefined
	w.channelID = 0
	w.recipient = w.recipient[:0]
	w.message = w.message[:0]
	w.closed = false
}
