// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"fmt"

	"code.hybscloud.com/atomix"
)

// completionSink is where an Actor reports finished deliveries: a
// Worker's completion queue for a background actor, or the System's own
// foreground completion queue for a main-thread actor.
type completionSink interface {
	enqueueCompletion(c completion)
}

// Actor owns one inbox chain and a handler table, and enforces
// mutual-exclusion across whichever threads might try to run it
// concurrently. Only one producer (the main thread)
// ever calls enqueue; only whichever goroutine currently holds owner
// calls run.
type Actor struct {
	id      ActorID
	inbox   *RingBufferChain[pendingDelivery]
	handler *Inbox
	owner   atomix.Int64 // CAS-guarded: 0 = idle, 1 = running
	total   atomix.Int64 // processedCount, readable for metrics
	dispose func()
}

// NewActor creates an actor with the given id and handler table. dispose
// is called once, from System.Dispose, and may be nil.
func NewActor(id ActorID, handler *Inbox, dispose func()) *Actor {
	return &Actor{
		id:      id,
		inbox:   NewDefaultRingBufferChain[pendingDelivery](),
		handler: handler,
		dispose: dispose,
	}
}

// ID returns the actor's ActorID.
func (a *Actor) ID() ActorID { return a.id }

// Processed returns the total number of deliveries this actor has
// dispatched to a handler across its lifetime.
func (a *Actor) Processed() int64 { return a.total.LoadRelaxed() }

// enqueue pushes a delivery onto the actor's inbox. Only the main thread
// (the single producer) may call this.
func (a *Actor) enqueue(d pendingDelivery) {
	a.inbox.Enqueue(d)
}

// run attempts to take ownership and drain up to processLimit
// deliveries (0 meaning unbounded) from the inbox, dispatching each to
// the handler table and reporting a completion per delivery. It returns
// the number of deliveries processed, and 0 without doing any work if
// another goroutine already owns the actor.
func (a *Actor) run(ob *Outbox, sink completionSink, processLimit int) int {
	if !a.owner.CompareAndSwapAcqRel(0, 1) {
		return 0
	}

	ob.setSource(a.id)
	processed := 0
	for processLimit == 0 || processed < processLimit {
		d, err := a.inbox.TryDequeue()
		if err != nil {
			break
		}

		herr := a.dispatchOne(d, ob, processed)
		sink.enqueueCompletion(completion{batch: d.batch, err: herr})
		processed++
	}
	ob.clearSource()

	a.total.AddAcqRel(int64(processed))
	a.owner.StoreRelease(0)

	// Lost-wakeup guard: if more work arrived while we
	// were the owner and no one has taken ownership since, our caller
	// (Worker.runPass / System's foreground pass) re-checks this actor
	// on its next pass, so nothing further is needed here — the
	// invariant holds as long as callers always loop until a full pass
	// produces zero work, which Worker and System both do.
	return processed
}

func (a *Actor) dispatchOne(d pendingDelivery, ob *Outbox, index int) error {
	err := a.safeDispatch(d, ob)
	if err == nil {
		return nil
	}
	return &HandlerError{
		ActorID:      a.id,
		DestID:       d.destID,
		SourceID:     d.batch.sourceActorID(),
		ChannelID:    d.batch.channel(),
		PayloadType:  d.batch.payloadTypeName(),
		MessageIndex: index,
		Err:          err,
	}
}

func (a *Actor) safeDispatch(d pendingDelivery, ob *Outbox) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return d.batch.dispatch(a.handler, d.destID, ob)
}
