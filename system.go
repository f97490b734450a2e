// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"time"

	"code.hybscloud.com/atomix"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"code.hybscloud.com/compose/internal/telemetry"
)

// locationKind records where a live actor has been assigned.
type locationKind int

const (
	locNone       locationKind = iota // no rule matched: messages drop, never queued
	locForeground                     // runs on the main thread's pass
	locBackground                     // runs on workers[workerIdx]
)

type actorLocation struct {
	kind      locationKind
	workerIdx int
}

// System is the top-level orchestrator: it owns the
// registry, the background workers, the foreground producer outbox and
// actor list, and the quiescence counters.
type System struct {
	opts     Options
	registry *Registry
	workers  []*Worker
	logger   *zap.Logger

	fgOutbox          *Outbox
	fgSendQueue       *RingBufferChain[pendingDelivery]
	fgCompletionQueue *RingBufferChain[completion]
	fgActors          []*Actor

	locations map[ActorID]actorLocation

	sent     atomix.Int64
	disposed atomix.Int64

	errs []*HandlerError

	reporter *telemetry.Reporter
}

// New constructs a System from a Builder (see NewOptions). A nil
// Builder uses the package defaults.
func New(b *Builder) *System {
	if b == nil {
		b = NewOptions()
	}
	opts := b.Build()
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}

	sys := &System{
		opts:      opts,
		registry:  newRegistry(),
		logger:    opts.logger,
		locations: make(map[ActorID]actorLocation),
	}
	sys.fgSendQueue = NewDefaultRingBufferChain[pendingDelivery]()
	sys.fgCompletionQueue = NewDefaultRingBufferChain[completion]()
	sys.fgOutbox = newOutbox(sys)

	sys.reporter = telemetry.NewReporter(opts.metricsRegistry)
	sys.reporter.Start()

	sys.workers = make([]*Worker, opts.workerThreads)
	for i := range sys.workers {
		sys.workers[i] = newWorker(i, opts.processLimit, &sys.sent, sys.logger)
		sys.workers[i].start()
	}

	return sys
}

// Metrics returns the Prometheus registry backing this System's
// telemetry. The host decides how to expose it, e.g. via
// promhttp.HandlerFor(sys.Metrics(), ...).
func (sys *System) Metrics() *prometheus.Registry { return sys.reporter.Registry() }

// Outbox returns the main thread's producer Outbox. Pass it to
// [BeginSend] to build a batch from outside any handler; handlers
// should instead use the reentrant outbox carried on their [Mail], so a
// Respond call attributes correctly.
func (sys *System) Outbox() *Outbox { return sys.fgOutbox }

// enqueueOutgoing implements outboxSink for the foreground producer.
func (sys *System) enqueueOutgoing(destID ActorID, b batchHandle) {
	sys.fgSendQueue.Enqueue(pendingDelivery{destID: destID, batch: b})
	sys.sent.AddAcqRel(1)
}

// enqueueCompletion implements completionSink for foreground actors.
func (sys *System) enqueueCompletion(c completion) {
	sys.fgCompletionQueue.Enqueue(c)
}

// Register adds a factory rule. Must be called before the first send
// that could address an actor it builds.
func (sys *System) Register(rule FactoryRule) *System {
	sys.registry.registerRule(rule)
	return sys
}

// RegisterAll adds every rule in rules, in order.
func (sys *System) RegisterAll(rules []FactoryRule) *System {
	for _, r := range rules {
		sys.registry.registerRule(r)
	}
	return sys
}

// RegisterRedirect makes every message addressed to from resolve to to
// instead.
func (sys *System) RegisterRedirect(from, to ActorID) *System {
	sys.registry.registerRedirect(from, to)
	return sys
}

// Send builds and closes a single-message, single-recipient batch from
// the foreground outbox.
func Send[T any](sys *System, destID ActorID, msg T) {
	w := BeginSend[T](sys.fgOutbox)
	w.AddRecipient(destID)
	w.AddMessage(msg)
	w.Close()
}

// SendAll builds and closes a single-recipient batch carrying every
// message in msgs, in order.
func SendAll[T any](sys *System, destID ActorID, msgs []T) {
	w := BeginSend[T](sys.fgOutbox)
	w.AddRecipient(destID)
	for _, m := range msgs {
		w.AddMessage(m)
	}
	w.Close()
}

// SendFrom is [Send] with an explicit source and channel stamped on
// the batch.
func SendFrom[T any](sys *System, destID ActorID, msg T, sourceID ActorID, channelID int) {
	w := BeginSend[T](sys.fgOutbox)
	w.SetSource(sourceID).SetChannel(channelID).AddRecipient(destID).AddMessage(msg)
	w.Close()
}

// Pending reports sentCount - disposedCount: the number of deliveries submitted but not yet released.
func (sys *System) Pending() int64 {
	return sys.sent.LoadRelaxed() - sys.disposed.LoadRelaxed()
}

// Errors returns every HandlerError observed so far, in the order
// completions were drained. The host may inspect and clear interest in
// them; System never clears this slice on its own.
func (sys *System) Errors() []*HandlerError { return sys.errs }

// route resolves destID through the registry (creating the actor on
// first address, if a rule matches) and either enqueues the delivery
// onto the actor's inbox, or — for the reserved Undefined id or an
// unmatched id with no assigned location — releases the batch
// immediately, counting it as disposed so quiescence still holds.
func (sys *System) route(destID ActorID, b batchHandle) {
	if sys.registry.resolve(destID) == Undefined {
		b.release()
		sys.disposed.AddAcqRel(1)
		return
	}

	a := sys.registry.getOrCreate(destID, sys.assign)
	loc := sys.locations[a.id]

	switch loc.kind {
	case locForeground:
		a.enqueue(pendingDelivery{destID: a.id, batch: b})
	case locBackground:
		a.enqueue(pendingDelivery{destID: a.id, batch: b})
		sys.workers[loc.workerIdx].wakeUp()
	default:
		// Null actor: no factory rule claimed this id.
		sys.logger.Debug("compose: dropping message for unresolved actor",
			zap.Uint32("dest_id", uint32(a.id)))
		b.release()
		sys.disposed.AddAcqRel(1)
	}
}

// assign places a freshly built actor on the foreground pool or a
// single background worker according to rule.Type. WorkerThreads(0) collapses every background rule onto the
// foreground pool instead, per options.go's documented effect.
func (sys *System) assign(a *Actor, rule FactoryRule) {
	if rule.Type == ExecutionForeground || len(sys.workers) == 0 {
		sys.fgActors = append(sys.fgActors, a)
		sys.locations[a.id] = actorLocation{kind: locForeground}
		return
	}

	idx := sys.registry.nextWorker(len(sys.workers))
	sys.workers[idx].addActor(a)
	sys.locations[a.id] = actorLocation{kind: locBackground, workerIdx: idx}
}

// drainCompletions releases every batch whose delivery finished on cq,
// surfacing any HandlerError, and reports whether it drained anything.
func (sys *System) drainCompletions(cq *RingBufferChain[completion]) bool {
	progress := false
	for {
		c, err := cq.TryDequeue()
		if err != nil {
			return progress
		}
		progress = true
		c.batch.release()
		sys.disposed.AddAcqRel(1)
		if c.err != nil {
			sys.observeError(c.err)
		}
	}
}

// drainSendQueue routes every delivery a producer queued on sq and
// reports whether it drained anything.
func (sys *System) drainSendQueue(sq *RingBufferChain[pendingDelivery]) bool {
	progress := false
	for {
		d, err := sq.TryDequeue()
		if err != nil {
			return progress
		}
		progress = true
		sys.route(d.destID, d.batch)
	}
}

func (sys *System) observeError(err error) {
	herr, ok := err.(*HandlerError)
	if !ok {
		sys.logger.Error("compose: non-handler error observed", zap.Error(err))
		return
	}
	herr.IncidentID = telemetry.NewIncidentID()
	sys.reporter.IncrementFailures()
	sys.errs = append(sys.errs, herr)
	sys.logger.Error("compose: handler failed",
		zap.String("incident_id", herr.IncidentID),
		zap.Uint32("actor_id", uint32(herr.ActorID)),
		zap.Uint32("dest_id", uint32(herr.DestID)),
		zap.String("payload_type", herr.PayloadType),
		zap.Int("message_index", herr.MessageIndex),
		zap.Error(herr.Err),
	)
}

// pump runs one cycle of draining completions, routing queued sends,
// and running foreground actors, and reports whether any of those
// steps produced work.
func (sys *System) pump() bool {
	progress := false

	for _, w := range sys.workers {
		if sys.drainCompletions(w.completionQueue) {
			progress = true
		}
	}
	if sys.drainCompletions(sys.fgCompletionQueue) {
		progress = true
	}

	for _, w := range sys.workers {
		if sys.drainSendQueue(w.sendQueue) {
			progress = true
		}
	}
	if sys.drainSendQueue(sys.fgSendQueue) {
		progress = true
	}

	for _, a := range sys.fgActors {
		if a.run(sys.fgOutbox, sys, sys.opts.processLimit) > 0 {
			progress = true
		}
	}

	sys.reportSnapshots()

	return progress
}

// reportSnapshots pushes one telemetry.Snapshot per worker plus one for
// the foreground pump, best-effort. Pending is shared across every snapshot in a
// cycle since it is a system-wide counter, not a per-worker one.
func (sys *System) reportSnapshots() {
	pending := sys.Pending()
	for _, w := range sys.workers {
		actorCount, processed := w.snapshotCounts()
		sys.reporter.Push(telemetry.Snapshot{
			WorkerID:   w.id,
			QueueDepth: actorCount,
			Processed:  processed,
			Pending:    pending,
		})
	}

	var fgProcessed int64
	for _, a := range sys.fgActors {
		fgProcessed += a.Processed()
	}
	sys.reporter.Push(telemetry.Snapshot{
		WorkerID:   -1,
		QueueDepth: len(sys.fgActors),
		Processed:  fgProcessed,
		Pending:    pending,
	})
}

// Run drains all foreground work, repeating the pump cycle until a
// full cycle produces no work. It does not wait for
// background workers; use RunAll to additionally block on those.
func (sys *System) Run() {
	for sys.pump() {
	}
}

// RunAll runs the foreground loop, then sleeps briefly while
// background work remains pending, looping until the system is
// quiescent.
func (sys *System) RunAll() {
	for {
		sys.Run()
		if sys.Pending() <= 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Dispose shuts down every background worker and disposes every live
// actor. Sends issued after Dispose begins are dropped
// without error.
func (sys *System) Dispose() {
	sys.fgOutbox.shutdown()

	for _, w := range sys.workers {
		w.stop()
	}
	for _, w := range sys.workers {
		w.join()
		w.outbox.shutdown()
	}

	for _, a := range sys.registry.all() {
		if a.dispose != nil {
			a.dispose()
		}
	}

	sys.reporter.Stop()
}
