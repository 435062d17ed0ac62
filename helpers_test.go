// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted. The returned mutex guards
// the slice for tests that log from multiple goroutines.
func newCapturingLogger() (*slog.Logger, *[]slog.Record, *sync.Mutex) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			defer mu.Unlock()
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records, &mu
}

// recordsWithLevel filters captured records by level.
func recordsWithLevel(mu *sync.Mutex, records *[]slog.Record, level slog.Level) []slog.Record {
	mu.Lock()
	defer mu.Unlock()
	var out []slog.Record
	for _, rec := range *records {
		if rec.Level == level {
			out = append(out, rec)
		}
	}
	return out
}

// recordsWithMessage filters captured records by message.
func recordsWithMessage(mu *sync.Mutex, records *[]slog.Record, message string) []slog.Record {
	mu.Lock()
	defer mu.Unlock()
	var out []slog.Record
	for _, rec := range *records {
		if rec.Message == message {
			out = append(out, rec)
		}
	}
	return out
}

// recordAttr returns the string rendering of the named attribute in the
// record, and whether the attribute exists.
func recordAttr(rec slog.Record, key string) (string, bool) {
	var (
		found bool
		value string
	)
	rec.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			value = attr.Value.String()
			found = true
			return false
		}
		return true
	})
	return value, found
}

// newTestPV creates a closed identity-codec PV with the given options and a
// discard logger.
func newTestPV(options Options[float64]) *SharedPV[float64] {
	pv, err := New(NewConfig(), options, DefaultSLogger())
	if err != nil {
		panic(err)
	}
	return pv
}

// collectAvailable drains every update currently buffered in the
// subscription channel without blocking.
func collectAvailable(sub *Subscription) []Wire {
	var out []Wire
	for {
		select {
		case wire, ok := <-sub.Updates():
			if !ok {
				return out
			}
			out = append(out, wire)
		default:
			return out
		}
	}
}
