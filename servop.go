// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

// ServerOperation is the decoded view of an [Operation] handed to OnPut and
// OnRPC handlers.
//
// It re-exposes the underlying operation's capability set unchanged, except
// that [ServerOperation.Value] and [ServerOperation.Request] decode through
// the shared PV's codec and [ServerOperation.CompleteValue] encodes through
// it, so handler code works entirely in the application value type T.
//
// The view holds a non-owning reference to the underlying operation; the
// hosting transport remains the owner. Use [ServerOperation.Raw] for the
// rare handler that needs the undecoded wire payload.
type ServerOperation[T any] struct {
	codec Codec[T]
	op    *Operation
}

// newServerOperation wraps op with the codec used by the owning shared PV.
func newServerOperation[T any](op *Operation, codec Codec[T]) *ServerOperation[T] {
	return &ServerOperation[T]{codec: codec, op: op}
}

// ID returns the operation identifier used in log records.
func (so *ServerOperation[T]) ID() string {
	return so.op.ID()
}

// Kind returns whether this operation is a Put or an RPC.
func (so *ServerOperation[T]) Kind() OperationKind {
	return so.op.Kind()
}

// Value returns the requested value (Put) or call arguments (RPC) decoded
// into the application value type.
func (so *ServerOperation[T]) Value() (T, error) {
	return so.codec.Decode(so.op.Value())
}

// Request returns the protocol-level request descriptor decoded into the
// application value type.
func (so *ServerOperation[T]) Request() (T, error) {
	return so.codec.Decode(so.op.Request())
}

// Complete completes the operation successfully with no result payload.
func (so *ServerOperation[T]) Complete() error {
	return so.op.Complete()
}

// CompleteValue encodes result through the codec and completes the
// operation successfully with the encoded payload.
//
// An encode failure leaves the operation pending and is returned to the
// handler, which may retry or complete with an error instead.
func (so *ServerOperation[T]) CompleteValue(result T) error {
	wire, err := so.codec.Encode(result)
	if err != nil {
		return err
	}
	return so.op.CompleteValue(wire)
}

// CompleteError completes the operation with the given error.
func (so *ServerOperation[T]) CompleteError(err error) error {
	return so.op.CompleteError(err)
}

// Raw returns the underlying [*Operation] with undecoded accessors.
func (so *ServerOperation[T]) Raw() *Operation {
	return so.op
}
