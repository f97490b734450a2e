// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

// FactoryRule builds an Actor the first time a message is addressed to
// an ActorID it claims. CanCreate is evaluated for every rule, in
// last-registered-first order; ties between matching rules of
// different Type are broken by Type alone (higher always wins), never
// by registration order.
type FactoryRule struct {
	CanCreate func(id ActorID) bool
	Type      ExecutionType
	Build     func(id ActorID) *Inbox
	Dispose   func(id ActorID)
}

// redirect maps one ActorID onto another; redirects are applied in
// registration order, so a chain of redirects resolves to whatever the
// last-applied one points at.
type redirect struct {
	from ActorID
	to   ActorID
}

// Registry maps ActorID to Actor via declarative factory rules and
// redirect mappings. It is owned and mutated only by
// the main thread: System.register calls happen before the first send,
// and getOrCreate is only ever called from the main thread's pump.
type Registry struct {
	rules     []FactoryRule
	redirects []redirect
	actors    map[ActorID]*Actor
	nextRR    int // round-robin cursor for background worker assignment
}

func newRegistry() *Registry {
	return &Registry{actors: make(map[ActorID]*Actor)}
}

// registerRule appends a factory rule. Last-registered wins ties among
// rules of equal Type; rules of a higher Type always
// beat rules of a lower Type regardless of order.
func (r *Registry) registerRule(rule FactoryRule) {
	r.rules = append(r.rules, rule)
}

// registerRedirect appends a redirect mapping.
func (r *Registry) registerRedirect(from, to ActorID) {
	r.redirects = append(r.redirects, redirect{from: from, to: to})
}

// resolve applies every registered redirect, in order, to id and
// returns the final target. Every call makes one pass over all
// registered redirects; this module does not pre-collapse chains since
// redirects are only ever registered once, before the first send.
func (r *Registry) resolve(id ActorID) ActorID {
	for _, rd := range r.redirects {
		if rd.from == id {
			id = rd.to
		}
	}
	return id
}

// matchRule scans rules from last-registered to first and returns the
// winner under the execution-type tie-break: the highest Type among all
// matching rules wins, and among rules tied on Type the last-registered
// one wins.
func (r *Registry) matchRule(id ActorID) (FactoryRule, bool) {
	var best FactoryRule
	found := false
	for i := len(r.rules) - 1; i >= 0; i-- {
		rule := r.rules[i]
		if !rule.CanCreate(id) {
			continue
		}
		if !found || rule.Type > best.Type {
			best = rule
			found = true
		}
	}
	return best, found
}

// getOrCreate resolves id through redirects, returns the live actor if
// one already exists, or builds and assigns a new one per the winning
// factory rule. If no rule matches, a null actor that silently drops
// everything is created. assign is called exactly
// once for a freshly built actor so the caller (System) can place it on
// the foreground pool or a single background worker.
func (r *Registry) getOrCreate(id ActorID, assign func(a *Actor, rule FactoryRule)) *Actor {
	id = r.resolve(id)
	if a, ok := r.actors[id]; ok {
		return a
	}

	rule, ok := r.matchRule(id)
	if !ok {
		a := NewActor(id, NewInbox(), nil)
		r.actors[id] = a
		return a
	}

	handler := rule.Build(id)
	var dispose func()
	if rule.Dispose != nil {
		dispose = func() { rule.Dispose(id) }
	}
	a := NewActor(id, handler, dispose)
	r.actors[id] = a
	assign(a, rule)
	return a
}

// all returns every live actor, for dispose.
func (r *Registry) all() []*Actor {
	out := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	return out
}

// nextWorker returns a worker index using round-robin: a freshly built
// background actor is pinned to exactly one worker for its whole
// lifetime rather than broadcast to every worker (see DESIGN.md).
func (r *Registry) nextWorker(workerCount int) int {
	if workerCount <= 0 {
		return -1
	}
	idx := r.nextRR % workerCount
	r.nextRR++
	return idx
}
