// SPDX-License-Identifier: GPL-3.0-or-later

// Package pvshare implements the server-side core of a shared process
// variable: a network-visible mutable value that clients read, subscribe
// to, write (Put), or invoke (RPC).
//
// # Core Abstraction
//
// The package is built around a single generic type:
//
//	type SharedPV[T any] struct { ... }
//
// A SharedPV holds the current value of one process variable, tracks whether
// the variable is open, fans posted updates out to subscribers, and dispatches
// incoming Put and RPC operations to application-supplied handlers. The type
// parameter T is the application-level value type; a [Codec] translates
// between T and the [Wire] exchange representation that subscribers and
// operations carry.
//
// # Lifecycle
//
// A SharedPV is constructed closed unless [Options.Initial] is supplied.
// While closed, [SharedPV.Post] fails with [ErrNotOpen] and incoming
// operations complete with an error. [SharedPV.Open] stores an initial
// value and makes the variable accessible; [SharedPV.Close] terminates
// all subscriptions and returns the variable to the closed state. Open
// and close cycles may repeat.
//
// # Handlers
//
// Application behavior is supplied through a [Handler]: four optional
// callback slots (OnFirstConnect, OnLastDisconnect, OnPut, OnRPC). A
// handler may populate any subset of the slots; a missing OnPut or OnRPC
// slot causes the corresponding operation to complete with a fixed
// "not supported" error without invoking any application code. Slots can
// be replaced at any time via the SetOn* methods; a dispatch already in
// progress keeps using the handler snapshot it captured when it started.
//
// Handler faults never propagate to the dispatching goroutine. A handler
// that returns an error or panics causes the pending operation (when one
// exists) to complete with that error, plus exactly one structured log
// record at error severity for operator diagnosis. See [SharedPV.ServePut]
// for the complete dispatch contract.
//
// # Operations
//
// An [Operation] represents one client-initiated Put or RPC. The hosting
// transport owns the operation for its full lifetime; this package borrows
// it for the duration of one handler invocation. Every operation completes
// exactly once: a second completion attempt fails with
// [ErrAlreadyCompleted]. Handlers receive a [ServerOperation], a decoded
// view whose Value and Request accessors pass through the configured codec,
// so application code works entirely in type T.
//
// Handlers may complete an operation after returning: retain the
// [ServerOperation] and call a completion method from another goroutine.
// The exactly-once completion contract makes this safe.
//
// # Observability
//
// All operations support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled. Set a custom [*slog.Logger]
// to enable logging. Error classification for log records is configurable
// via [ErrClassifier]; by default, a no-op classifier is used.
//
// Lifecycle events (open, post, close, firstConnect, lastDisconnect) and
// operation events (putStart/putDone, rpcStart/rpcDone) are emitted at
// [slog.LevelInfo]; per-subscriber delivery events at [slog.LevelDebug];
// handler faults at [slog.LevelError] with a stack trace when the fault
// was a panic.
//
// Use [NewOpID] to generate a unique, time-ordered identifier (UUIDv7) for
// each operation, so that all log entries produced while dispatching it
// share the same opID.
//
// # Design Boundaries
//
// This package intentionally implements only the variable core. The
// following are out of scope and belong to the hosting transport:
//
//   - Wire encoding and network I/O
//   - Channel search and connection establishment
//   - Client-side access (get, put, monitor from the client's view)
//   - Persistence of historical values
package pvshare
