// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// exec is the dispatch guard: it runs one handler slot and contains any
// fault at the dispatch boundary.
//
// When fn returns an error or panics and op is non-nil and still pending,
// op completes with that error, so the hosting transport never waits on a
// completion that user code failed to produce. The fault is recorded as
// exactly one handlerFault log record at error severity (with a stack
// trace for panics) whether or not an operation exists, so connect and
// disconnect faults remain diagnosable too.
//
// exec returns the synchronous outcome: nil when fn returned nil, the
// returned error, or an error describing the panic. A handler completing
// op asynchronously later is outside exec's responsibility.
func (pv *SharedPV[T]) exec(op *Operation, what string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = fmt.Errorf("handler panic: %v", r)
		pv.fault(op, what, err, debug.Stack())
	}()
	if err = fn(); err != nil {
		pv.fault(op, what, err, nil)
	}
	return err
}

// fault converts one handler failure into a safe operation completion plus
// a diagnostic log record.
//
// The completion attempt tolerates the operation having completed or been
// cancelled in the meantime: the first completion won and the attempt's
// outcome is discarded. The guard itself therefore never double-completes.
func (pv *SharedPV[T]) fault(op *Operation, what string, err error, stack []byte) {
	opID := ""
	if op != nil {
		if !op.IsComplete() {
			_ = op.CompleteError(err)
		}
		opID = op.ID()
	}
	pv.Logger.Error(
		"handlerFault",
		slog.Any("err", err),
		slog.String("errClass", pv.ErrClassifier.Classify(err)),
		slog.String("opID", opID),
		slog.String("stack", string(stack)),
		slog.String("what", what),
		slog.Time("t", pv.TimeNow()),
	)
}
