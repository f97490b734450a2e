// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

// ActorID identifies an actor. The zero value, Undefined, is reserved:
// messages addressed to it are dropped without resolving any actor.
type ActorID uint32

// Undefined is the reserved null ActorID. System.route drops any
// delivery whose destination resolves to it, without consulting the
// registry's factory rules.
const Undefined ActorID = 0

// ExecutionType orders factory rules when more than one matches the same
// ActorID: the higher ExecutionType always wins over a
// lower one, regardless of registration order; among rules of equal
// ExecutionType, the last one registered wins.
type ExecutionType int

const (
	// ExecutionNone is the lowest type: a rule of this type loses every
	// tie-break against a matching rule of any other type.
	ExecutionNone ExecutionType = iota
	// ExecutionRoute ranks above ExecutionNone and below
	// ExecutionBackground. Redirects are registered separately, through
	// System.RegisterRedirect, not as rules of this type.
	ExecutionRoute
	// ExecutionBackground marks a rule building a background actor,
	// assigned to exactly one worker.
	ExecutionBackground
	// ExecutionForeground marks a rule building a main-thread actor.
	ExecutionForeground
)
