// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package compose is an in-process actor runtime: named actors exchange
// typed, batched messages over lock-free single-producer/single-consumer
// queues, dispatched by a foreground (main-thread) scheduler and a pool
// of background workers.
//
// # Quick Start
//
// Register a factory rule, send a message, and pump the system until it
// goes quiet:
//
//	sys := compose.New(compose.NewOptions().WorkerThreads(0))
//	sys.Register(compose.FactoryRule{
//	    CanCreate: func(id compose.ActorID) bool { return id == 1 },
//	    Type:      compose.ExecutionForeground,
//	    Build: func(id compose.ActorID) *compose.Inbox {
//	        ib := compose.NewInbox()
//	        compose.OnAll(ib, func(m compose.Mail[int]) {
//	            for _, v := range m.Messages {
//	                fmt.Println("actor 1 got", v)
//	            }
//	        })
//	        return ib
//	    },
//	})
//	compose.Send(sys, 1, 42)
//	sys.Run()
//	sys.Dispose()
//
// # Background Actors
//
// A factory rule with [ExecutionBackground] assigns its actor to exactly
// one worker goroutine, chosen round-robin at creation time. Call
// [System.RunAll] instead of [System.Run] to also block (briefly
// sleeping) until every background delivery has been released:
//
//	sys := compose.New(compose.NewOptions().WorkerThreads(4))
//	// ... register a background rule ...
//	compose.Send(sys, 2, Ping{})
//	sys.RunAll()
//
// # Batches and the Respond Pattern
//
// [BeginSend] opens a [Writer] against an [Outbox]; a handler's [Mail]
// carries the outbox it should use to respond, so replying to whoever
// sent a message never requires knowing which Outbox instance is live:
//
//	compose.OnAll(ib, func(m compose.Mail[Ping]) {
//	    w := compose.BeginSend[Pong](m.Outbox)
//	    w.AddRecipient(m.Source).AddMessage(Pong{})
//	    w.Close()
//	})
//
// Broadcasting one batch to several recipients in insertion order:
//
//	w := compose.BeginSend[int64](sys.Outbox())
//	w.AddRecipient(1).AddRecipient(2).AddRecipient(3)
//	w.AddMessage(100).AddMessage(101).AddMessage(102)
//	w.Close()
//
// # Queue Topology
//
// Every queue in this runtime is single-producer/single-consumer,
// except the telemetry fan-in described below:
//
//	Worker.sendQueue       worker -> main
//	Worker.completionQueue worker -> main
//	Actor.inbox            main -> the actor's owning worker (or main)
//	batchPool.free         releaser (main) -> the owning producer outbox
//	Worker.actorInbox      main -> the worker
//
// [RingBufferChain] implements every one of those: a bounded
// [code.hybscloud.com/atomix]-backed Lamport ring buffer that grows into
// a linked successor of double capacity instead of blocking on
// Enqueue. internal/telemetry's snapshot queue, which carries one
// snapshot per worker plus one for the foreground pump (all pushed from
// the pump goroutine) to a single reporter goroutine, is a private
// FAA-based multi-producer queue local to that package, since it cannot
// import this one back to reuse a root type.
//
// # Error Handling
//
// Only handler failures are observable to the host: a panic
// inside a handler is wrapped as a [HandlerError] with
// routing context, attached to the delivery's completion, and surfaced
// through [System.Errors] once the completion is drained. Writer misuse
// (appending after Close, double Close) panics; everything else is
// dropped silently. Deliveries to unresolved destinations are still
// counted as sent and disposed, so quiescence ([System.Pending]) stays
// accurate; sends issued after [System.Dispose] begins are discarded
// before they are counted at all.
//
// [ErrWouldBlock] and its helpers are sourced from [code.hybscloud.com/iox]
// for ecosystem consistency with this module's dependencies.
//
// # Observability
//
// Structured logging goes through [go.uber.org/zap] (see
// [Builder.Logger]); handler failures get a [github.com/google/uuid]
// incident ID so repeated log lines from the same failing send can be
// correlated. Metrics are exposed as a [github.com/prometheus/client_golang]
// registry (see [System.Metrics]): pending count, per-worker owned-actor
// count (exported as compose_queue_depth), per-worker processed totals,
// and a handler-failure counter.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/iox] for semantic
// errors, [go.uber.org/zap] for structured logging, and
// [github.com/prometheus/client_golang] for the registry [System.Metrics]
// returns. Its internal/telemetry subpackage additionally uses
// [code.hybscloud.com/spin] for CPU pause instructions in its snapshot
// queue's contention loop and [github.com/google/uuid] for incident IDs.
package compose
