// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRegistryExecutionTypeDominatesRegistrationOrder checks spec.md
// §4.6 step 3: between two matching rules, the one with the higher
// ExecutionType always wins, even if it was registered first.
func TestRegistryExecutionTypeDominatesRegistrationOrder(t *testing.T) {
	r := newRegistry()
	r.registerRule(FactoryRule{
		CanCreate: func(id ActorID) bool { return id == 5 },
		Type:      ExecutionForeground,
		Build:     func(id ActorID) *Inbox { return NewInbox() },
	})
	r.registerRule(FactoryRule{
		CanCreate: func(id ActorID) bool { return id == 5 },
		Type:      ExecutionBackground,
		Build:     func(id ActorID) *Inbox { return NewInbox() },
	})

	var assignedType ExecutionType
	a := r.getOrCreate(5, func(a *Actor, rule FactoryRule) { assignedType = rule.Type })

	require.NotNil(t, a)
	require.Equal(t, ExecutionForeground, assignedType)
}

// TestRegistryLastRegisteredWinsTies checks spec.md §4.6/§9: among
// rules tied on ExecutionType, the last-registered one wins.
func TestRegistryLastRegisteredWinsTies(t *testing.T) {
	r := newRegistry()
	var built string
	r.registerRule(FactoryRule{
		CanCreate: func(id ActorID) bool { return id == 9 },
		Type:      ExecutionBackground,
		Build:     func(id ActorID) *Inbox { built = "first"; return NewInbox() },
	})
	r.registerRule(FactoryRule{
		CanCreate: func(id ActorID) bool { return id == 9 },
		Type:      ExecutionBackground,
		Build:     func(id ActorID) *Inbox { built = "second"; return NewInbox() },
	})

	r.getOrCreate(9, func(*Actor, FactoryRule) {})
	require.Equal(t, "second", built)
}

// TestRegistryRedirectChain checks spec.md §4.6 step 1: redirects are
// applied in registration order, so a chain resolves to the last hop.
func TestRegistryRedirectChain(t *testing.T) {
	r := newRegistry()
	r.registerRedirect(1, 2)
	r.registerRedirect(2, 3)
	require.Equal(t, ActorID(3), r.resolve(1))
}

// TestRegistryNoMatchBuildsNullActor checks spec.md §4.6 step 5: an
// unmatched id gets a null actor that silently drops everything,
// without ever calling assign.
func TestRegistryNoMatchBuildsNullActor(t *testing.T) {
	r := newRegistry()
	a := r.getOrCreate(42, func(*Actor, FactoryRule) {
		t.Fatal("assign must not be called for an unmatched id")
	})
	require.NotNil(t, a)
	require.Equal(t, ActorID(42), a.id)
}

// TestRegistryGetOrCreateIsIdempotent checks that a second call for an
// already-live actor returns the same instance without invoking Build
// or assign again.
func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	r := newRegistry()
	builds := 0
	r.registerRule(FactoryRule{
		CanCreate: func(id ActorID) bool { return id == 1 },
		Type:      ExecutionForeground,
		Build:     func(id ActorID) *Inbox { builds++; return NewInbox() },
	})

	a1 := r.getOrCreate(1, func(*Actor, FactoryRule) {})
	a2 := r.getOrCreate(1, func(*Actor, FactoryRule) {
		t.Fatal("assign must not be called again for a live actor")
	})

	require.Same(t, a1, a2)
	require.Equal(t, 1, builds)
}

// TestRegistryNextWorkerRoundRobin checks spec.md §4.6 step 4's
// single-owner assignment: consecutive calls cycle through every
// worker index exactly once per cycle.
func TestRegistryNextWorkerRoundRobin(t *testing.T) {
	r := newRegistry()
	var got []int
	for range 5 {
		got = append(got, r.nextWorker(3))
	}
	require.Equal(t, []int{0, 1, 2, 0, 1}, got)
}
