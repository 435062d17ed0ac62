// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A handler fault completes the operation with an error matching the fault
// and produces exactly one diagnostic log record.
func TestDispatchFaultIsolation(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// handler is the faulty OnRPC slot.
		handler func(pv *SharedPV[float64], op *ServerOperation[float64]) error

		// wantContains is text expected in the completion error.
		wantContains string

		// wantStack indicates whether the diagnostic record carries a
		// stack trace.
		wantStack bool
	}{
		{
			name: "handler returns an error",
			handler: func(pv *SharedPV[float64], op *ServerOperation[float64]) error {
				return errors.New("boom")
			},
			wantContains: "boom",
			wantStack:    false,
		},

		{
			name: "handler panics",
			handler: func(pv *SharedPV[float64], op *ServerOperation[float64]) error {
				panic("boom")
			},
			wantContains: "boom",
			wantStack:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, records, mu := newCapturingLogger()
			pv, err := New(NewConfig(), Options[float64]{
				Handler: &Handler[float64]{OnRPC: tt.handler},
			}, logger)
			require.NoError(t, err)
			require.NoError(t, pv.Open(0.0))

			var gotErr error
			op := NewOperation(OperationRPC, "", nil, nil, func(result Wire, err error) {
				gotErr = err
			})

			// The dispatching goroutine must survive the fault
			pv.ServeRPC(op)

			assert.True(t, op.IsComplete())
			require.Error(t, gotErr)
			assert.Contains(t, gotErr.Error(), tt.wantContains)

			faults := recordsWithLevel(mu, records, slog.LevelError)
			require.Len(t, faults, 1)
			assert.Equal(t, "handlerFault", faults[0].Message)

			stack, found := recordAttr(faults[0], "stack")
			assert.True(t, found)
			if tt.wantStack {
				assert.NotEmpty(t, stack)
			} else {
				assert.Empty(t, stack)
			}
		})
	}
}

// A handler that completes the operation and then fails does not cause a
// second completion.
func TestDispatchFaultAfterCompletion(t *testing.T) {
	completions := 0
	logger, records, mu := newCapturingLogger()
	pv, err := New(NewConfig(), Options[float64]{
		Handler: &Handler[float64]{
			OnPut: func(pv *SharedPV[float64], op *ServerOperation[float64]) error {
				if err := op.Complete(); err != nil {
					return err
				}
				return errors.New("late failure")
			},
		},
	}, logger)
	require.NoError(t, err)
	require.NoError(t, pv.Open(0.0))

	op := NewOperation(OperationPut, "", nil, 1.0, func(result Wire, err error) {
		completions++
		// The success completion won
		assert.NoError(t, err)
	})
	pv.ServePut(op)

	assert.Equal(t, 1, completions)

	// The fault is still diagnosable in the log
	assert.Len(t, recordsWithLevel(mu, records, slog.LevelError), 1)
}

// Connect and disconnect faults have no operation to fail; they are logged
// and otherwise ignored.
func TestDispatchEdgeFault(t *testing.T) {
	logger, records, mu := newCapturingLogger()
	pv, err := New(NewConfig(), Options[float64]{
		Handler: &Handler[float64]{
			OnFirstConnect: func(pv *SharedPV[float64]) error {
				panic("connect boom")
			},
		},
	}, logger)
	require.NoError(t, err)
	require.NoError(t, pv.Open(0.0))

	// Subscribe must not crash despite the panicking slot
	sub := pv.Subscribe(1)
	defer sub.Cancel()

	faults := recordsWithLevel(mu, records, slog.LevelError)
	require.Len(t, faults, 1)

	what, found := recordAttr(faults[0], "what")
	assert.True(t, found)
	assert.Equal(t, "firstConnect", what)

	opID, found := recordAttr(faults[0], "opID")
	assert.True(t, found)
	assert.Empty(t, opID)
}

// The guard tolerates the operation being cancelled while the handler runs.
func TestDispatchFaultAfterCancellation(t *testing.T) {
	pv := newTestPV(Options[float64]{
		Handler: &Handler[float64]{
			OnPut: func(pv *SharedPV[float64], op *ServerOperation[float64]) error {
				op.Raw().Cancel()
				return errors.New("boom")
			},
		},
	})
	require.NoError(t, pv.Open(0.0))

	callbacks := 0
	op := NewOperation(OperationPut, "", nil, 1.0, func(result Wire, err error) {
		callbacks++
	})
	pv.ServePut(op)

	// No completion was delivered and nothing crashed
	assert.Equal(t, 0, callbacks)
	assert.False(t, op.IsComplete())
}

// The classifier's label for the fault appears in the diagnostic record.
func TestDispatchFaultClassification(t *testing.T) {
	logger, records, mu := newCapturingLogger()
	cfg := NewConfig()
	cfg.ErrClassifier = ErrClassifierFunc(func(err error) string {
		return "EHANDLER"
	})
	pv, err := New(cfg, Options[float64]{
		Handler: &Handler[float64]{
			OnRPC: func(pv *SharedPV[float64], op *ServerOperation[float64]) error {
				return errors.New("boom")
			},
		},
	}, logger)
	require.NoError(t, err)
	require.NoError(t, pv.Open(0.0))

	pv.ServeRPC(NewOperation(OperationRPC, "", nil, nil, nil))

	faults := recordsWithLevel(mu, records, slog.LevelError)
	require.Len(t, faults, 1)
	class, found := recordAttr(faults[0], "errClass")
	assert.True(t, found)
	assert.Equal(t, "EHANDLER", class)
}
