// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultSubscriptionBuffer is the update channel capacity used when
// [SharedPV.Subscribe] receives a non-positive capacity.
const DefaultSubscriptionBuffer = 8

// Subscribe attaches a subscriber to the shared PV and returns its
// [*Subscription].
//
// The capacity argument bounds the subscription's update channel; values
// below one select [DefaultSubscriptionBuffer].
//
// Subscribing is permitted while the shared PV is closed: updates start
// flowing once it opens. While open, the subscriber immediately receives
// the current value as its first update.
//
// When this attach is the first (subscriber count goes from zero to one),
// the OnFirstConnect slot runs before Subscribe returns.
func (pv *SharedPV[T]) Subscribe(capacity int) *Subscription {
	if capacity < 1 {
		capacity = DefaultSubscriptionBuffer
	}
	sub := &Subscription{
		detach:     pv.detachSubscription,
		dropped:    atomic.Uint64{},
		id:         NewOpID(),
		mu:         sync.Mutex{},
		terminated: false,
		updates:    make(chan Wire, capacity),
	}
	pv.mu.Lock()
	pv.subs[sub] = struct{}{}
	first := len(pv.subs) == 1
	if pv.open {
		sub.push(pv.current)
	}
	pv.mu.Unlock()
	pv.Logger.Info(
		"attach",
		slog.Bool("first", first),
		slog.String("subID", sub.id),
		slog.Time("t", pv.TimeNow()),
	)
	if first {
		pv.dispatchEdge("firstConnect", pv.registry.snapshot().OnFirstConnect)
	}
	return sub
}

// detachSubscription removes sub and fires the lastDisconnect edge when it
// was the final subscriber. No-op when sub already detached (Close beat a
// concurrent Cancel to it).
func (pv *SharedPV[T]) detachSubscription(sub *Subscription) {
	pv.mu.Lock()
	if _, attached := pv.subs[sub]; !attached {
		pv.mu.Unlock()
		return
	}
	delete(pv.subs, sub)
	last := len(pv.subs) == 0
	pv.mu.Unlock()
	sub.terminate()
	pv.Logger.Info(
		"detach",
		slog.Bool("last", last),
		slog.String("subID", sub.id),
		slog.Time("t", pv.TimeNow()),
	)
	if last {
		pv.dispatchEdge("lastDisconnect", pv.registry.snapshot().OnLastDisconnect)
	}
}

// Subscription is one subscriber's view of a shared PV: a bounded stream
// of encoded value updates.
//
// The subscription holds a non-owning back-reference to the shared PV that
// created it; lifetime is strictly nested inside the variable's.
type Subscription struct {
	// dropped counts updates dropped due to a full channel.
	dropped atomic.Uint64

	// id identifies the subscription in log records.
	id string

	// detach removes this subscription from its owning shared PV.
	detach func(sub *Subscription)

	// mu serializes push and terminate on the updates channel.
	mu sync.Mutex

	// terminated is set once the updates channel is closed.
	terminated bool

	// updates carries encoded values to the subscriber.
	updates chan Wire
}

// ID returns the subscription identifier used in log records.
func (sub *Subscription) ID() string {
	return sub.id
}

// Updates returns the channel carrying encoded value updates.
//
// The channel closes when the subscription is cancelled or the shared PV
// closes. A subscriber that stops draining does not block the publisher:
// once the channel is full, the oldest pending update is dropped to make
// room for the newest, and [Subscription.Dropped] counts the losses. The
// latest value is therefore always delivered eventually.
func (sub *Subscription) Updates() <-chan Wire {
	return sub.updates
}

// Dropped returns how many updates were dropped because the subscriber
// was not draining its channel fast enough.
func (sub *Subscription) Dropped() uint64 {
	return sub.dropped.Load()
}

// Cancel detaches the subscription from its shared PV and closes the
// updates channel. Idempotent.
//
// When this detach is the last (subscriber count reaches zero), the
// OnLastDisconnect slot runs before Cancel returns.
func (sub *Subscription) Cancel() {
	sub.detach(sub)
}

// push delivers one update without ever blocking the publisher, dropping
// the oldest pending update when the channel is full.
func (sub *Subscription) push(wire Wire) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.terminated {
		return
	}
	for {
		select {
		case sub.updates <- wire:
			return
		default:
			select {
			case <-sub.updates:
				sub.dropped.Add(1)
			default:
			}
		}
	}
}

// terminate closes the updates channel exactly once.
func (sub *Subscription) terminate() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.terminated {
		sub.terminated = true
		close(sub.updates)
	}
}
