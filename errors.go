// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import "errors"

// ErrNotOpen indicates an access to a shared PV that is currently closed.
//
// Returned by [SharedPV.Post] and [SharedPV.Close] while the variable is
// closed, and used as the completion error for operations that arrive
// while the variable is closed.
var ErrNotOpen = errors.New("pvshare: shared PV is not open")

// ErrAlreadyCompleted indicates a second completion attempt on an
// [Operation] that already completed.
//
// The first completion wins; the operation's outcome is unchanged.
var ErrAlreadyCompleted = errors.New("pvshare: operation already completed")

// ErrCancelled indicates a completion attempt on an [Operation] that the
// hosting transport cancelled (e.g., because the client disconnected).
//
// Completion after cancellation is a tolerated no-op: the attempt reports
// this error and nothing else happens.
var ErrCancelled = errors.New("pvshare: operation cancelled")

// ErrPutNotSupported is the completion error for a Put operation arriving
// at a shared PV whose handler has no OnPut slot.
var ErrPutNotSupported = errors.New("Put not supported")

// ErrRPCNotSupported is the completion error for an RPC operation arriving
// at a shared PV whose handler has no OnRPC slot.
var ErrRPCNotSupported = errors.New("RPC not supported")

// ErrWireType indicates that a [Wire] value did not have the dynamic type
// the codec expected. Returned by [IdentityCodec.Decode] and wrapped with
// detail about the offending type.
var ErrWireType = errors.New("pvshare: unexpected wire value type")
