// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"sync"
	"sync/atomic"
)

// Handler aggregates the optional callback slots of one shared PV.
//
// Every slot may be nil: a handler legitimately supports Put without RPC or
// vice versa, and the connect slots are purely informational. A nil OnPut
// or OnRPC slot causes the corresponding operation to complete with
// [ErrPutNotSupported] or [ErrRPCNotSupported] at dispatch time; slot
// absence is never an error in itself.
//
// Handlers run synchronously on the goroutine delivering the event. A
// returned error, or a panic, is caught at the dispatch boundary: it
// completes the pending operation (when one exists) and produces one
// diagnostic log record. See the package documentation for the full
// contract.
type Handler[T any] struct {
	// OnFirstConnect runs when the first subscriber attaches.
	//
	// There is no pending operation: a returned error or panic is logged
	// and otherwise ignored.
	OnFirstConnect func(pv *SharedPV[T]) error

	// OnLastDisconnect runs when the last subscriber detaches.
	//
	// Same fault behavior as OnFirstConnect.
	OnLastDisconnect func(pv *SharedPV[T]) error

	// OnPut runs for each incoming Put operation. The handler must
	// eventually complete op, either before returning or later from
	// another goroutine.
	OnPut func(pv *SharedPV[T], op *ServerOperation[T]) error

	// OnRPC runs for each incoming RPC operation. Same completion
	// obligation as OnPut.
	OnRPC func(pv *SharedPV[T], op *ServerOperation[T]) error
}

// handlerRegistry holds the current [Handler] of one shared PV and supports
// replacing individual slots while dispatches are running.
//
// Readers take an atomic snapshot; writers copy the current handler, change
// one slot, and swap the copy in. A dispatch in progress keeps the snapshot
// it captured at dispatch start, so a concurrent set only affects
// subsequent dispatches. Last write wins.
type handlerRegistry[T any] struct {
	current atomic.Pointer[Handler[T]]
	mu      sync.Mutex
}

// newHandlerRegistry creates a registry holding the given handler, which
// may be nil for "no slots populated".
func newHandlerRegistry[T any](handler *Handler[T]) *handlerRegistry[T] {
	if handler == nil {
		handler = &Handler[T]{}
	}
	reg := &handlerRegistry[T]{}
	reg.current.Store(handler)
	return reg
}

// snapshot returns the current handler. Never nil.
func (reg *handlerRegistry[T]) snapshot() *Handler[T] {
	return reg.current.Load()
}

// update applies change to a copy of the current handler and swaps the
// copy in. The mutex serializes writers so no slot update is lost.
func (reg *handlerRegistry[T]) update(change func(h *Handler[T])) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	next := *reg.current.Load()
	change(&next)
	reg.current.Store(&next)
}
