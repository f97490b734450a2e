// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package compose

import "reflect"

// Inbox is an actor's type-indexed handler table. It is
// populated once, during the actor's build step, and then only read
// from the actor's own goroutine during dispatch.
type Inbox struct {
	handlers map[reflect.Type]any // reflect.Type(T) -> func(Mail[T])
}

// NewInbox creates an empty handler table.
func NewInbox() *Inbox {
	return &Inbox{handlers: make(map[reflect.Type]any)}
}

// OnAll registers fn to receive every batch of payload type T delivered
// to this actor. Registering a second handler for the same T composes
// with the first by sequential chaining: both run, in
// registration order, for every matching batch.
func OnAll[T any](ib *Inbox, fn func(Mail[T])) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if existing, ok := ib.handlers[key]; ok {
		prev := existing.(func(Mail[T]))
		fn = chain(prev, fn)
	}
	ib.handlers[key] = fn
}

func chain[T any](first, second func(Mail[T])) func(Mail[T]) {
	return func(m Mail[T]) {
		first(m)
		second(m)
	}
}

func (ib *Inbox) lookup(t reflect.Type) (any, bool) {
	h, ok := ib.handlers[t]
	return h, ok
}
