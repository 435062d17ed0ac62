// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewOpID returns a UUIDv7 identifying one operation.
//
// The hosting transport should assign each incoming Put or RPC a fresh
// operation ID. All log entries emitted while dispatching that operation
// carry the same opID, enabling correlation between the dispatch events
// and any fault diagnostics.
//
// Because UUIDv7 is time-ordered, sorting log entries by opID also sorts
// them by operation arrival time.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewOpID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
