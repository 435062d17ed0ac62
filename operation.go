// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import "sync"

// OperationKind tells a Put operation apart from an RPC operation.
type OperationKind int

const (
	// OperationPut is a client write of a new value.
	OperationPut OperationKind = iota + 1

	// OperationRPC is a client invocation with call arguments.
	OperationRPC
)

// String returns "put", "rpc", or "unknown".
func (k OperationKind) String() string {
	switch k {
	case OperationPut:
		return "put"
	case OperationRPC:
		return "rpc"
	default:
		return "unknown"
	}
}

// NewOperation creates an [*Operation] representing one pending Put or RPC.
//
// The hosting transport creates an operation for each incoming request and
// hands it to [SharedPV.ServePut] or [SharedPV.ServeRPC].
//
// The id argument identifies the operation in log records; when empty, a
// fresh [NewOpID] is assigned.
//
// The request argument is the protocol-level request descriptor and the
// value argument is the requested value (Put) or the call arguments (RPC),
// both in [Wire] form.
//
// The onResult argument, which may be nil, is invoked exactly once, from
// the goroutine that completes the operation, with the completion payload:
// a [Wire] result (nil for plain success) or a non-nil error. It is not
// invoked when the operation is cancelled before completing.
func NewOperation(kind OperationKind, id string, request, value Wire, onResult func(result Wire, err error)) *Operation {
	if id == "" {
		id = NewOpID()
	}
	return &Operation{
		id:       id,
		kind:     kind,
		mu:       sync.Mutex{},
		onResult: onResult,
		request:  request,
		state:    opPending,
		value:    value,
	}
}

// opState tracks the completion state of an [Operation].
type opState int

const (
	opPending opState = iota
	opComplete
	opCancelled
)

// Operation represents one in-flight client-initiated Put or RPC against a
// shared PV.
//
// The hosting transport owns the operation for its full lifetime; the
// dispatch core borrows it for the duration of one handler invocation. A
// handler that wants to complete the operation later may retain it beyond
// the invocation and complete it from another goroutine.
//
// Completion happens at most once. The completion methods serialize
// internally: the first of them wins and every later attempt reports
// [ErrAlreadyCompleted] (or [ErrCancelled] after [Operation.Cancel])
// without invoking the result callback again.
type Operation struct {
	id       string
	kind     OperationKind
	mu       sync.Mutex
	onResult func(result Wire, err error)
	request  Wire
	state    opState
	value    Wire
}

// ID returns the operation identifier used in log records.
func (op *Operation) ID() string {
	return op.id
}

// Kind returns whether this operation is a Put or an RPC.
func (op *Operation) Kind() OperationKind {
	return op.kind
}

// Request returns the protocol-level request descriptor in [Wire] form.
func (op *Operation) Request() Wire {
	return op.request
}

// Value returns the requested value (Put) or call arguments (RPC) in
// [Wire] form.
func (op *Operation) Value() Wire {
	return op.value
}

// IsComplete reports whether the operation has completed.
//
// Cancellation does not count as completion: a cancelled operation reports
// false here and rejects completion attempts with [ErrCancelled].
func (op *Operation) IsComplete() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state == opComplete
}

// Complete completes the operation successfully with no result payload.
//
// This is the usual completion for a Put. Returns [ErrAlreadyCompleted] or
// [ErrCancelled] when the operation is no longer pending.
func (op *Operation) Complete() error {
	return op.complete(nil, nil)
}

// CompleteValue completes the operation successfully with a result payload
// in [Wire] form.
//
// This is the usual completion for an RPC. Returns [ErrAlreadyCompleted]
// or [ErrCancelled] when the operation is no longer pending.
func (op *Operation) CompleteValue(result Wire) error {
	return op.complete(result, nil)
}

// CompleteError completes the operation with the given error, which the
// hosting transport surfaces to the client.
//
// Returns [ErrAlreadyCompleted] or [ErrCancelled] when the operation is no
// longer pending.
func (op *Operation) CompleteError(err error) error {
	return op.complete(nil, err)
}

// complete transitions to opComplete and delivers the result exactly once.
// The result callback runs outside the lock so that it may itself inspect
// the operation.
func (op *Operation) complete(result Wire, err error) error {
	op.mu.Lock()
	switch op.state {
	case opComplete:
		op.mu.Unlock()
		return ErrAlreadyCompleted
	case opCancelled:
		op.mu.Unlock()
		return ErrCancelled
	}
	op.state = opComplete
	onResult := op.onResult
	op.mu.Unlock()

	if onResult != nil {
		onResult(result, err)
	}
	return nil
}

// Cancel marks a pending operation as cancelled and reports whether it did.
//
// The hosting transport calls this when the client abandons the operation
// (e.g., it disconnected before completion). After cancellation the result
// callback will never run and completion attempts report [ErrCancelled],
// which lets a handler still running on another goroutine finish without
// crashing. Cancelling an already-complete operation reports false and
// changes nothing.
func (op *Operation) Cancel() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != opPending {
		return false
	}
	op.state = opCancelled
	return true
}
