// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
)

// Options configures a [SharedPV] at construction.
//
// The zero value is valid: no handler slots, no initial value, identity
// codec.
type Options[T any] struct {
	// Handler supplies the initial callback slots. May be nil; slots can
	// also be registered later via the SetOn* methods.
	Handler *Handler[T]

	// Initial, when non-nil, opens the shared PV synchronously during
	// construction with the pointed-to value.
	Initial *T

	// Codec translates between T and [Wire]. Nil means [IdentityCodec].
	Codec Codec[T]

	// Wrap, when non-nil, overrides the codec's Encode.
	Wrap func(value T) (Wire, error)

	// Unwrap, when non-nil, overrides the codec's Decode.
	Unwrap func(wire Wire) (T, error)
}

// codec returns the effective [Codec] combining Codec with the Wrap and
// Unwrap overrides.
func (options *Options[T]) codec() Codec[T] {
	var base Codec[T] = IdentityCodec[T]{}
	if options.Codec != nil {
		base = options.Codec
	}
	if options.Wrap == nil && options.Unwrap == nil {
		return base
	}
	encode := options.Wrap
	if encode == nil {
		encode = base.Encode
	}
	decode := options.Unwrap
	if decode == nil {
		decode = base.Decode
	}
	return FuncCodec[T]{EncodeFunc: encode, DecodeFunc: decode}
}

// New creates a [*SharedPV] in the closed state, then opens it when
// [Options.Initial] is supplied.
//
// The cfg argument contains the common configuration for pvshare operations.
//
// The logger argument is the [SLogger] to use for structured logging.
//
// New fails only when encoding the initial value fails.
func New[T any](cfg *Config, options Options[T], logger SLogger) (*SharedPV[T], error) {
	runtimex.Assert(cfg != nil)
	runtimex.Assert(logger != nil)
	pv := &SharedPV[T]{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
		codec:         options.codec(),
		current:       nil,
		mu:            sync.Mutex{},
		open:          false,
		registry:      newHandlerRegistry(options.Handler),
		subs:          make(map[*Subscription]struct{}),
	}
	if options.Initial != nil {
		if err := pv.Open(*options.Initial); err != nil {
			return nil, err
		}
	}
	return pv, nil
}

// SharedPV is the server-side core of one shared process variable.
//
// It tracks open/closed state and the current value, fans posted updates
// out to subscribers, and dispatches incoming Put and RPC operations to
// the registered [Handler] with fault isolation.
//
// All methods are safe for concurrent use, including overlapping dispatches
// for different operations and handler slot replacement racing with a
// dispatch in progress.
//
// The exported fields are safe to modify after construction but before
// first use. They must not be mutated concurrently with other calls.
type SharedPV[T any] struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [New] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [New] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [New] from [Config.TimeNow].
	TimeNow func() time.Time

	// codec is the effective codec combining [Options.Codec] with the
	// Wrap and Unwrap overrides.
	codec Codec[T]

	// mu protects current, open, and subs. Handler dispatch never runs
	// with mu held, so handlers may call Post and Open reentrantly.
	mu sync.Mutex

	// current is the encoded current value, nil while closed.
	current Wire

	// open tells OPEN apart from CLOSED.
	open bool

	// registry holds the callback slots.
	registry *handlerRegistry[T]

	// subs holds the attached subscriptions.
	subs map[*Subscription]struct{}
}

// Open encodes value through the codec, stores it as the current value,
// and moves the shared PV to the open state.
//
// Opening an already-open PV overwrites the current value and stays open,
// so Open doubles as a reset. Subscribers receive the encoded value as an
// update either way.
func (pv *SharedPV[T]) Open(value T) error {
	wire, err := pv.codec.Encode(value)
	if err != nil {
		return err
	}
	pv.mu.Lock()
	wasOpen := pv.open
	pv.open = true
	pv.current = wire
	for sub := range pv.subs {
		sub.push(wire)
	}
	nsubs := len(pv.subs)
	pv.mu.Unlock()
	pv.Logger.Info(
		"open",
		slog.Bool("reset", wasOpen),
		slog.Int("subscribers", nsubs),
		slog.Time("t", pv.TimeNow()),
	)
	return nil
}

// Post encodes value through the codec, stores it as the current value,
// and republishes it to all subscribers.
//
// Fails with [ErrNotOpen] while the shared PV is closed.
func (pv *SharedPV[T]) Post(value T) error {
	wire, err := pv.codec.Encode(value)
	if err != nil {
		return err
	}
	pv.mu.Lock()
	if !pv.open {
		pv.mu.Unlock()
		return ErrNotOpen
	}
	pv.current = wire
	for sub := range pv.subs {
		sub.push(wire)
		pv.Logger.Debug("deliver", slog.String("subID", sub.id))
	}
	nsubs := len(pv.subs)
	pv.mu.Unlock()
	pv.Logger.Info(
		"post",
		slog.Int("subscribers", nsubs),
		slog.Time("t", pv.TimeNow()),
	)
	return nil
}

// Close moves an open shared PV to the closed state, drops the current
// value, and terminates all subscriptions (their update channels close).
//
// When subscribers were attached, the OnLastDisconnect slot runs after
// they detach, keeping connect and disconnect notifications symmetric
// across repeated open and close cycles.
//
// Fails with [ErrNotOpen] while the shared PV is already closed.
func (pv *SharedPV[T]) Close() error {
	pv.mu.Lock()
	if !pv.open {
		pv.mu.Unlock()
		return ErrNotOpen
	}
	pv.open = false
	pv.current = nil
	detached := make([]*Subscription, 0, len(pv.subs))
	for sub := range pv.subs {
		detached = append(detached, sub)
	}
	clear(pv.subs)
	pv.mu.Unlock()
	for _, sub := range detached {
		sub.terminate()
	}
	pv.Logger.Info(
		"close",
		slog.Int("subscribers", len(detached)),
		slog.Time("t", pv.TimeNow()),
	)
	if len(detached) > 0 {
		pv.dispatchEdge("lastDisconnect", pv.registry.snapshot().OnLastDisconnect)
	}
	return nil
}

// IsOpen reports whether the shared PV is currently open.
func (pv *SharedPV[T]) IsOpen() bool {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	return pv.open
}

// Current returns the encoded current value and whether the shared PV is
// open. The hosting transport uses this to answer reads from the stored
// value without involving application code.
func (pv *SharedPV[T]) Current() (Wire, bool) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	return pv.current, pv.open
}

// SetOnFirstConnect replaces the OnFirstConnect slot. Last write wins;
// nil clears the slot. A dispatch in progress keeps using the handler
// snapshot it captured at dispatch start.
func (pv *SharedPV[T]) SetOnFirstConnect(fn func(pv *SharedPV[T]) error) {
	pv.registry.update(func(h *Handler[T]) { h.OnFirstConnect = fn })
}

// SetOnLastDisconnect replaces the OnLastDisconnect slot. Same replacement
// semantics as [SharedPV.SetOnFirstConnect].
func (pv *SharedPV[T]) SetOnLastDisconnect(fn func(pv *SharedPV[T]) error) {
	pv.registry.update(func(h *Handler[T]) { h.OnLastDisconnect = fn })
}

// SetOnPut replaces the OnPut slot. Same replacement semantics as
// [SharedPV.SetOnFirstConnect].
func (pv *SharedPV[T]) SetOnPut(fn func(pv *SharedPV[T], op *ServerOperation[T]) error) {
	pv.registry.update(func(h *Handler[T]) { h.OnPut = fn })
}

// SetOnRPC replaces the OnRPC slot. Same replacement semantics as
// [SharedPV.SetOnFirstConnect].
func (pv *SharedPV[T]) SetOnRPC(fn func(pv *SharedPV[T], op *ServerOperation[T]) error) {
	pv.registry.update(func(h *Handler[T]) { h.OnRPC = fn })
}

// ServePut dispatches one incoming Put operation.
//
// The hosting transport calls this from its own event goroutine(s). The
// dispatch contract:
//
//   - while the shared PV is closed, op completes with [ErrNotOpen] and no
//     application code runs;
//   - when the OnPut slot is nil, op completes with [ErrPutNotSupported]
//     and no application code runs;
//   - otherwise OnPut runs synchronously with a [ServerOperation] view of
//     op; a returned error or panic completes op with that error (unless
//     the handler already completed it) and produces one diagnostic log
//     record;
//   - a handler that returns nil without completing op leaves it pending
//     on purpose: the handler retained the view and completes it later.
func (pv *SharedPV[T]) ServePut(op *Operation) {
	t0 := pv.TimeNow()
	pv.logServeStart("putStart", op, t0)
	err := pv.servePut(op)
	pv.logServeDone("putDone", op, t0, err)
}

// servePut implements the put dispatch and returns the synchronous outcome
// for the putDone event.
func (pv *SharedPV[T]) servePut(op *Operation) error {
	if _, open := pv.Current(); !open {
		_ = op.CompleteError(ErrNotOpen)
		return ErrNotOpen
	}
	handler := pv.registry.snapshot()
	if handler.OnPut == nil {
		_ = op.CompleteError(ErrPutNotSupported)
		return ErrPutNotSupported
	}
	view := newServerOperation(op, pv.codec)
	return pv.exec(op, "put", func() error {
		return handler.OnPut(pv, view)
	})
}

// ServeRPC dispatches one incoming RPC operation.
//
// Identical contract to [SharedPV.ServePut], with the OnRPC slot and
// [ErrRPCNotSupported] for the missing-slot completion.
func (pv *SharedPV[T]) ServeRPC(op *Operation) {
	t0 := pv.TimeNow()
	pv.logServeStart("rpcStart", op, t0)
	err := pv.serveRPC(op)
	pv.logServeDone("rpcDone", op, t0, err)
}

// serveRPC implements the rpc dispatch and returns the synchronous outcome
// for the rpcDone event.
func (pv *SharedPV[T]) serveRPC(op *Operation) error {
	if _, open := pv.Current(); !open {
		_ = op.CompleteError(ErrNotOpen)
		return ErrNotOpen
	}
	handler := pv.registry.snapshot()
	if handler.OnRPC == nil {
		_ = op.CompleteError(ErrRPCNotSupported)
		return ErrRPCNotSupported
	}
	view := newServerOperation(op, pv.codec)
	return pv.exec(op, "rpc", func() error {
		return handler.OnRPC(pv, view)
	})
}

// dispatchEdge runs a connect or disconnect slot, when populated, with
// fault isolation and no pending operation.
func (pv *SharedPV[T]) dispatchEdge(what string, fn func(pv *SharedPV[T]) error) {
	if fn == nil {
		return
	}
	_ = pv.exec(nil, what, func() error {
		return fn(pv)
	})
}

func (pv *SharedPV[T]) logServeStart(event string, op *Operation, t0 time.Time) {
	pv.Logger.Info(
		event,
		slog.String("opID", op.ID()),
		slog.Time("t", t0),
	)
}

func (pv *SharedPV[T]) logServeDone(event string, op *Operation, t0 time.Time, err error) {
	pv.Logger.Info(
		event,
		slog.Any("err", err),
		slog.String("errClass", pv.ErrClassifier.Classify(err)),
		slog.String("opID", op.ID()),
		slog.Time("t0", t0),
		slog.Time("t", pv.TimeNow()),
	)
}

// String reports the open state, mirroring how the variable shows up in
// operator tooling.
func (pv *SharedPV[T]) String() string {
	return fmt.Sprintf("SharedPV(open=%v)", pv.IsOpen())
}
