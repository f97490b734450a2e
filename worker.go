// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"code.hybscloud.com/atomix"
	"go.uber.org/zap"
)

// Worker is a background goroutine owning a static set of actors. It
// is never addressed directly by user code; System creates, assigns,
// and disposes of workers.
//
// Every queue a Worker touches is SPSC from its own point of view:
// actorInbox is fed by the main thread and drained only here;
// sendQueue and completionQueue are fed only here and drained only by
// the main thread's pump.
type Worker struct {
	id int

	actorInbox *RingBufferChain[*Actor] // main -> worker: newly assigned actors
	actors     []*Actor

	sendQueue       *RingBufferChain[pendingDelivery] // worker -> main
	completionQueue *RingBufferChain[completion]      // worker -> main
	outbox          *Outbox

	sent *atomix.Int64 // shared sentCount, incremented on every submit

	actorCount atomix.Int64 // len(actors), safe to read from System's pump goroutine
	processed  atomix.Int64 // deliveries processed across every runPass so far

	wake    chan struct{}
	running atomix.Bool
	done    chan struct{}

	processLimit int
	logger       *zap.Logger
}

func newWorker(id int, processLimit int, sent *atomix.Int64, logger *zap.Logger) *Worker {
	w := &Worker{
		id:              id,
		actorInbox:      NewDefaultRingBufferChain[*Actor](),
		sendQueue:       NewDefaultRingBufferChain[pendingDelivery](),
		completionQueue: NewDefaultRingBufferChain[completion](),
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
		processLimit:    processLimit,
		sent:            sent,
		logger:          logger,
	}
	w.outbox = newOutbox(w)
	w.running.StoreRelease(true)
	return w
}

// enqueueOutgoing implements outboxSink: a handler running on this
// worker opened a Writer and closed it, producing one delivery per
// recipient, which lands here.
func (w *Worker) enqueueOutgoing(destID ActorID, b batchHandle) {
	w.sendQueue.Enqueue(pendingDelivery{destID: destID, batch: b})
	w.sent.AddAcqRel(1)
}

// enqueueCompletion implements completionSink: one actor run on this
// worker finished dispatching one delivery.
func (w *Worker) enqueueCompletion(c completion) {
	w.completionQueue.Enqueue(c)
}

// addActor assigns a to this worker. Only the main thread calls this.
func (w *Worker) addActor(a *Actor) {
	w.actorInbox.Enqueue(a)
	w.wakeUp()
}

// wakeUp signals the worker's loop without blocking: if it is already
// awake or already has a pending wake, this is a no-op.
func (w *Worker) wakeUp() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// start launches the worker's main loop in its own goroutine.
func (w *Worker) start() {
	go w.loop()
}

// stop requests the worker to finish its current pass and exit. It
// does not block; call join to wait for the goroutine to actually
// exit.
func (w *Worker) stop() {
	w.running.StoreRelease(false)
	w.wakeUp()
}

// join blocks until the worker's goroutine has returned.
func (w *Worker) join() {
	<-w.done
}

// loop is the worker's main loop: drain newly assigned actors, run a
// full round-robin pass over every owned actor until a pass makes no
// progress, then park on wake.
func (w *Worker) loop() {
	defer close(w.done)
	w.logger.Debug("compose: worker started", zap.Int("worker_id", w.id))
	defer w.logger.Debug("compose: worker stopped", zap.Int("worker_id", w.id))
	for {
		w.drainActorInbox()

		if !w.running.LoadAcquire() {
			return
		}

		for w.runPass() {
			// keep sweeping while any actor in the pass made progress
		}

		<-w.wake
	}
}

// drainActorInbox moves every actor the main thread has assigned since
// the last cycle into the owned list.
func (w *Worker) drainActorInbox() {
	for {
		a, err := w.actorInbox.TryDequeue()
		if err != nil {
			return
		}
		w.actors = append(w.actors, a)
		w.actorCount.AddAcqRel(1)
	}
}

// runPass gives every owned actor one Actor.run call, in a fixed
// round-robin order, and reports whether any of them processed at
// least one delivery. A single actor that keeps re-enqueuing itself
// cannot starve its worker-mates within one pass.
func (w *Worker) runPass() bool {
	progress := false
	for _, a := range w.actors {
		if n := a.run(w.outbox, w, w.processLimit); n > 0 {
			progress = true
			w.processed.AddAcqRel(int64(n))
		}
	}
	return progress
}

// snapshotCounts reports this worker's owned-actor count and
// cumulative processed-delivery count. Safe to call from any
// goroutine: both fields are atomix counters written only by this
// worker's own loop goroutine.
func (w *Worker) snapshotCounts() (actorCount int, processed int64) {
	return int(w.actorCount.LoadRelaxed()), w.processed.LoadRelaxed()
}
