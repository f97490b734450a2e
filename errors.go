// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import (
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a ring buffer node is momentarily full or
// empty. RingBufferChain.Enqueue never reports it (a full node grows
// into a successor instead); RingBufferChain.TryDequeue returns it only
// when the whole chain, not just one node, is empty.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency,
// exactly as code.hybscloud.com/lfq (the primitives this runtime builds
// on) aliases it.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates an operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// HandlerError wraps a panic or error raised inside an actor's handler
// with enough diagnostic context to trace it: which actor received
// it, what payload type, who sent it, and MessageIndex, the position of
// the failing delivery within the actor's current run pass (a handler
// receives a whole batch at once, so the failing message inside the
// batch is not identified). Delivery is still considered complete once a HandlerError is
// produced — the owning batch is released and the actor keeps running.
type HandlerError struct {
	ActorID      ActorID
	DestID       ActorID
	SourceID     ActorID
	ChannelID    int
	PayloadType  string
	MessageIndex int
	IncidentID   string // stamped by internal/telemetry before logging
	Err          error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("compose: actor %d: handler for %s failed on message %d (source=%d dest=%d channel=%d): %v",
		e.ActorID, e.PayloadType, e.MessageIndex, e.SourceID, e.DestID, e.ChannelID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
