// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose_test

import (
	"testing"

	"pgregory.net/rapid"

	"code.hybscloud.com/compose"
)

// TestSystemProperty_AllMessagesDelivered checks spec.md §8 invariant
// 3 (pending == 0 implies no batches in flight) and invariant 5
// (exactly one handler invocation per sent message) across a randomly
// sized burst of single-recipient sends.
func TestSystemProperty_AllMessagesDelivered(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sys := compose.New(compose.NewOptions().WorkerThreads(0))
		defer sys.Dispose()

		var total int
		sys.Register(compose.FactoryRule{
			CanCreate: func(id compose.ActorID) bool { return id == 1 },
			Type:      compose.ExecutionForeground,
			Build: func(id compose.ActorID) *compose.Inbox {
				ib := compose.NewInbox()
				compose.OnAll(ib, func(m compose.Mail[int]) {
					total += len(m.Messages)
				})
				return ib
			},
		})

		n := rapid.IntRange(1, 50).Draw(rt, "n")
		for i := range n {
			compose.Send(sys, 1, i)
		}
		sys.Run()

		if total != n {
			rt.Fatalf("delivered %d messages, want %d", total, n)
		}
		if sys.Pending() != 0 {
			rt.Fatalf("pending = %d, want 0", sys.Pending())
		}
	})
}

// TestSystemProperty_BatchOrderPreservedPerRecipient checks spec.md §8
// invariant 2: a randomly sized batch's messages are observed by the
// single recipient in the exact order they were appended.
func TestSystemProperty_BatchOrderPreservedPerRecipient(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sys := compose.New(compose.NewOptions().WorkerThreads(0))
		defer sys.Dispose()

		var got []int
		sys.Register(compose.FactoryRule{
			CanCreate: func(id compose.ActorID) bool { return id == 1 },
			Type:      compose.ExecutionForeground,
			Build: func(id compose.ActorID) *compose.Inbox {
				ib := compose.NewInbox()
				compose.OnAll(ib, func(m compose.Mail[int]) {
					got = append(got, m.Messages...)
				})
				return ib
			},
		})

		n := rapid.IntRange(1, 64).Draw(rt, "n")
		want := make([]int, n)
		w := compose.BeginSend[int](sys.Outbox())
		w.AddRecipient(1)
		for i := range n {
			want[i] = rapid.IntRange(-1000, 1000).Draw(rt, "msg")
			w.AddMessage(want[i])
		}
		w.Close()

		sys.Run()

		if len(got) != len(want) {
			rt.Fatalf("got %d messages, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("message %d: got %d, want %d", i, got[i], want[i])
			}
		}
	})
}
