// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options configures System construction.
//
// Options plays the same role here that code.hybscloud.com/lfq's
// Options/Builder pair plays for queue construction: a small validated
// value built up through a fluent API, consumed once at construction
// time. workerThreads and processLimit are the only tunables a caller
// must think about; Logger is ambient and defaults to a no-op logger so
// it never needs to be set.
type Options struct {
	workerThreads   int
	processLimit    int
	logger          *zap.Logger
	metricsRegistry *prometheus.Registry
}

// Builder provides a fluent API for configuring a System before
// construction, mirroring code.hybscloud.com/lfq's lfq.Builder.
//
// Example:
//
//	sys := compose.New(compose.NewOptions().
//		WorkerThreads(4).
//		ProcessLimit(256))
type Builder struct {
	opts Options
}

// NewOptions creates a Builder with the package defaults:
// workerThreads = max(runtime.NumCPU()-1, 1), processLimit = unbounded (0).
func NewOptions() *Builder {
	return &Builder{opts: Options{
		workerThreads: defaultWorkerThreads(),
		processLimit:  0,
		logger:        zap.NewNop(),
	}}
}

func defaultWorkerThreads() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// WorkerThreads sets the number of background worker threads. A value
// of 0 disables background workers entirely: every actor resolves to
// the foreground pool regardless of its rule's execution type.
func (b *Builder) WorkerThreads(n int) *Builder {
	if n < 0 {
		panic("compose: WorkerThreads must be >= 0")
	}
	b.opts.workerThreads = n
	return b
}

// ProcessLimit sets the maximum number of messages an actor processes
// per Actor.run invocation. 0 means unbounded.
func (b *Builder) ProcessLimit(n int) *Builder {
	if n < 0 {
		panic("compose: ProcessLimit must be >= 0")
	}
	b.opts.processLimit = n
	return b
}

// Logger sets the structured logger used for worker lifecycle events,
// registry misses, and handler failures. A nil logger is treated as
// zap.NewNop().
func (b *Builder) Logger(l *zap.Logger) *Builder {
	if l == nil {
		l = zap.NewNop()
	}
	b.opts.logger = l
	return b
}

// MetricsRegistry sets the Prometheus registry the System's telemetry
// reporter registers its collectors against. A nil registry (the
// default) gets a fresh private [prometheus.Registry] per System, so
// constructing more than one System in a test never collides on
// Prometheus's global default registry.
func (b *Builder) MetricsRegistry(reg *prometheus.Registry) *Builder {
	b.opts.metricsRegistry = reg
	return b
}

// Build finalizes the Options. Called implicitly by New(b); exposed so
// Options can be inspected or reused across multiple System instances.
func (b *Builder) Build() Options {
	return b.opts
}

// roundToPow2 rounds n up to the next power of 2. Kept verbatim from
// code.hybscloud.com/lfq's options.go; ring.go uses it to size every
// ring buffer node (including the nodes of each batch pool's free
// chain) exactly the way the teacher sizes queues.
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

// log2Ceil returns ceil(log2(n)) for n >= 1, used to pick a batch's pool
// capacity class from its message count.
func log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	k := 0
	for (1 << k) < n {
		k++
	}
	return k
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
