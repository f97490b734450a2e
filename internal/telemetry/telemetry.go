// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package telemetry fans periodic worker/pump snapshots and handler
// failures into Prometheus metrics and incident IDs.
//
// It is additive instrumentation that observes the delivery pipeline
// from the outside; nothing in package compose's delivery path blocks
// on it, and a full snapshot queue simply drops the newest snapshot
// (telemetry is best-effort, unlike message delivery itself).
package telemetry

import (
	"strconv"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is one worker's (or the foreground pump's) periodic report.
type Snapshot struct {
	WorkerID   int // -1 identifies the foreground pump
	QueueDepth int
	Processed  int64
	Pending    int64
}

// errQueueFull/errQueueEmpty reuse iox.ErrWouldBlock, the same sentinel
// package compose's own ring buffers return (see ../../errors.go), so a
// full or empty snapshotQueue is recognizable as the same kind of
// non-failure control-flow signal throughout this module.
var errQueueFull = iox.ErrWouldBlock
var errQueueEmpty = iox.ErrWouldBlock

// snapshotQueue is an FAA-based multi-producer single-consumer bounded
// queue of Snapshot: producers claim a slot with fetch-and-add, and a
// monotonic per-slot cycle counter tells a producer when its slot is
// not yet free. It accepts concurrent producers; package compose pushes
// every snapshot (one per worker plus one for the foreground pump) from
// the System's pump goroutine.
type snapshotQueue struct {
	_        [64]byte
	head     atomix.Uint64
	_        [64]byte
	tail     atomix.Uint64
	_        [64]byte
	buffer   []snapshotSlot
	capacity uint64
	size     uint64
	mask     uint64
}

type snapshotSlot struct {
	cycle atomix.Uint64
	data  Snapshot
}

func newSnapshotQueue(capacity int) *snapshotQueue {
	n := uint64(roundToPow2(capacity))
	size := n * 2
	q := &snapshotQueue{
		buffer:   make([]snapshotSlot, size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	for i := uint64(0); i < size; i++ {
		q.buffer[i].cycle.StoreRelaxed(i / n)
	}
	return q
}

func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func (q *snapshotQueue) enqueue(elem Snapshot) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadRelaxed()
		if tail >= head+q.capacity {
			return errQueueFull
		}

		myTail := q.tail.AddAcqRel(1) - 1
		slot := &q.buffer[myTail&q.mask]
		expectedCycle := myTail / q.capacity
		slotCycle := slot.cycle.LoadAcquire()

		if slotCycle == expectedCycle {
			slot.data = elem
			slot.cycle.StoreRelease(expectedCycle + 1)
			return nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			return errQueueFull
		}
		sw.Once()
	}
}

func (q *snapshotQueue) dequeue() (Snapshot, error) {
	head := q.head.LoadRelaxed()
	cycle := head / q.capacity
	slot := &q.buffer[head&q.mask]

	slotCycle := slot.cycle.LoadAcquire()
	if slotCycle != cycle+1 {
		var zero Snapshot
		return zero, errQueueEmpty
	}

	elem := slot.data
	nextEnqCycle := (head + q.size) / q.capacity
	slot.cycle.StoreRelease(nextEnqCycle)
	q.head.StoreRelaxed(head + 1)
	return elem, nil
}

// Reporter drains Snapshot values describing every worker and the
// foreground pump into Prometheus gauges, and mints an incident ID for
// every handler failure so repeated failures from the same logical
// send can be correlated across log lines.
type Reporter struct {
	q   *snapshotQueue
	reg *prometheus.Registry

	pending    prometheus.Gauge
	queueDepth *prometheus.GaugeVec
	processed  *prometheus.GaugeVec
	failures   prometheus.Counter

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReporter creates a Reporter registered against reg. A nil reg gets
// a fresh private [prometheus.Registry], so constructing more than one
// System in the same process (as tests routinely do) never collides on
// the global default registry.
func NewReporter(reg *prometheus.Registry) *Reporter {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Reporter{
		q:   newSnapshotQueue(64),
		reg: reg,
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compose_pending",
			Help: "In-flight deliveries: sentCount - disposedCount.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compose_queue_depth",
			Help: "Number of actors owned at the last snapshot, by worker; inbox backlog is not measured.",
		}, []string{"worker"}),
		processed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compose_processed_total",
			Help: "Cumulative deliveries processed, by worker.",
		}, []string{"worker"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compose_handler_failures_total",
			Help: "Handler invocations that panicked.",
		}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.reg.MustRegister(r.pending, r.queueDepth, r.processed, r.failures)
	return r
}

// Registry returns the Prometheus registry the Reporter's collectors
// are registered against, for the host to expose via an HTTP handler.
func (r *Reporter) Registry() *prometheus.Registry { return r.reg }

// Push records one snapshot. Best-effort: if the queue is momentarily
// full, the snapshot is dropped (the next one supersedes it anyway, so
// nothing downstream depends on every snapshot arriving).
func (r *Reporter) Push(s Snapshot) {
	_ = r.q.enqueue(s)
}

// NewIncidentID mints a v4 UUID used to correlate repeated failures
// from the same logical send across log lines.
func NewIncidentID() string {
	return uuid.NewString()
}

// IncrementFailures records one handler failure.
func (r *Reporter) IncrementFailures() {
	r.failures.Inc()
}

// Start launches the reporter's drain loop.
func (r *Reporter) Start() {
	go r.loop()
}

// Stop halts the drain loop and waits for it to exit. Safe to call
// more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reporter) loop() {
	defer close(r.done)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		r.drain()
		select {
		case <-r.stop:
			r.drain()
			return
		case <-ticker.C:
		}
	}
}

func (r *Reporter) drain() {
	for {
		s, err := r.q.dequeue()
		if err != nil {
			return
		}
		label := workerLabel(s.WorkerID)
		r.queueDepth.WithLabelValues(label).Set(float64(s.QueueDepth))
		r.processed.WithLabelValues(label).Set(float64(s.Processed))
		r.pending.Set(float64(s.Pending))
	}
}

func workerLabel(id int) string {
	if id < 0 {
		return "foreground"
	}
	return strconv.Itoa(id)
}
