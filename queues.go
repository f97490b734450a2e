// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

// pendingDelivery is the payload carried on an actor's inbox chain
// and, with the same shape, on a worker's outbound send queue. Both
// are {destID, batchRef} pairs; the single type is reused for both
// roles since Go gains nothing from naming them separately when every
// field and every access pattern is identical.
type pendingDelivery struct {
	destID ActorID
	batch  batchHandle
}

// completion records that one delivery to one recipient has finished,
// optionally carrying the error the handler raised, routed back to the
// worker's completion queue so the owning outbox's batch can be
// released and any error surfaced on the main thread.
type completion struct {
	batch batchHandle
	err   error
}
