// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import "reflect"

// outboxSink is where a closed Writer's per-recipient deliveries go:
// a Worker's outbound send queue for a background producer, or the
// System's foreground send queue for the main-thread producer.
type outboxSink interface {
	enqueueOutgoing(destID ActorID, b batchHandle)
}

// Outbox is the per-producer typed dispatcher. Exactly
// one Outbox is owned by each producing goroutine: the main thread has
// one, and each background Worker has one. A handler invoked during
// actor dispatch receives the owning worker's Outbox through Mail.Outbox
// (the "reentrant outbox" pattern): BeginSend always stamps the writer
// with whatever source is currently pushed, so a handler that opens a
// writer is automatically attributed to the actor it is running inside,
// without needing to know which outbox instance to use — this is what
// makes Respond work.
type Outbox struct {
	sink        outboxSink
	sourceStack []ActorID
	pools       map[reflect.Type]any // reflect.Type(T) -> *poolSet[T]
	writerFree  map[reflect.Type]any // reflect.Type(T) -> *writerFreeList[T]
	down        bool                 // true once the owning System has begun shutdown
}

func newOutbox(sink outboxSink) *Outbox {
	return &Outbox{
		sink:       sink,
		pools:      make(map[reflect.Type]any),
		writerFree: make(map[reflect.Type]any),
	}
}

// setSource pushes id as the current attribution source. Called by
// Actor.run before it starts dispatching a given actor's messages, and
// popped again once that actor's pass ends.
func (ob *Outbox) setSource(id ActorID) {
	ob.sourceStack = append(ob.sourceStack, id)
}

// clearSource pops the attribution pushed by the matching setSource.
func (ob *Outbox) clearSource() {
	if len(ob.sourceStack) == 0 {
		return
	}
	ob.sourceStack = ob.sourceStack[:len(ob.sourceStack)-1]
}

func (ob *Outbox) currentSource() ActorID {
	if len(ob.sourceStack) == 0 {
		return Undefined
	}
	return ob.sourceStack[len(ob.sourceStack)-1]
}

// shutdown marks the outbox as belonging to a system that has begun
// shutting down; every subsequent BeginSend returns a writer that
// silently discards all operations.
func (ob *Outbox) shutdown() {
	ob.down = true
}

func (ob *Outbox) submit(destID ActorID, b batchHandle) {
	ob.sink.enqueueOutgoing(destID, b)
}

type writerFreeList[T any] struct {
	free []*Writer[T]
}

func poolSetOf[T any](ob *Outbox) *poolSet[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := ob.pools[key]; ok {
		return v.(*poolSet[T])
	}
	s := &poolSet[T]{}
	ob.pools[key] = s
	return s
}

func writerFreeListOf[T any](ob *Outbox) *writerFreeList[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := ob.writerFree[key]; ok {
		return v.(*writerFreeList[T])
	}
	l := &writerFreeList[T]{}
	ob.writerFree[key] = l
	return l
}

// BeginSend pops a reusable Writer[T] (or creates one) from ob and
// stamps it with ob's current source. The returned
// Writer must be closed exactly once.
//
// BeginSend is a package-level function, not a method, because Go
// methods cannot introduce their own type parameters.
func BeginSend[T any](ob *Outbox) *Writer[T] {
	set := poolSetOf[T](ob)
	fl := writerFreeListOf[T](ob)

	var w *Writer[T]
	if n := len(fl.free); n > 0 {
		w = fl.free[n-1]
		fl.free = fl.free[:n-1]
	} else {
		w = &Writer[T]{ob: ob, set: set}
	}
	w.clear()
	w.sourceID = ob.currentSource()
	w.discard = ob.down
	return w
}

// putWriter returns a writer to its type's free list. Called from
// Writer[T].Close(), which already knows T, so this stays generic rather
// than going through a type-erased method (Go methods cannot introduce
// their own type parameters).
func putWriter[T any](ob *Outbox, w *Writer[T]) {
	fl := writerFreeListOf[T](ob)
	fl.free = append(fl.free, w)
}
