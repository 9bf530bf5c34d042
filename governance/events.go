// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package governance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
)

// EventKind identifies the notification type
type EventKind uint8

const (
	EventProposalCreated  EventKind = 0x01
	EventVoted            EventKind = 0x02
	EventExecuted         EventKind = 0x03
	EventDonationReceived EventKind = 0x04
	EventDonationExecuted EventKind = 0x05
)

// String returns the event name
func (k EventKind) String() string {
	switch k {
	case EventProposalCreated:
		return "ProposalCreated"
	case EventVoted:
		return "Voted"
	case EventExecuted:
		return "Executed"
	case EventDonationReceived:
		return "DonationReceived"
	case EventDonationExecuted:
		return "DonationExecuted"
	default:
		return "Unknown"
	}
}

// Event is an observable notification. Only the fields relevant to Kind are set.
type Event struct {
	Seq         uint64         `json:"seq"`
	Kind        EventKind      `json:"kind"`
	ProposalID  uint64         `json:"proposalId"`
	DonationID  uint64         `json:"donationId,omitempty"`
	Description string         `json:"description,omitempty"`
	Account     common.Address `json:"account"` // voter, sender or beneficiary
	Amount      *uint256.Int   `json:"amount,omitempty"`
}

// Notifier is the append-only outbound event log. Appended events are
// handed to live subscribers by a delivery goroutine, so a slow subscriber
// never holds up the ledger.
type Notifier struct {
	mu    sync.RWMutex
	log   []Event
	sent  int // events handed to the feed
	feed  event.Feed
	scope event.SubscriptionScope

	running bool
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Restore seeds an empty notifier with a persisted log, so sequence
// numbers continue where they left off.
func (n *Notifier) Restore(events []Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.log) != 0 {
		return errors.New("event log already started")
	}
	for i, ev := range events {
		if ev.Seq != uint64(i) {
			return fmt.Errorf("event log has a gap at %d", i)
		}
	}
	n.log = append(n.log, events...)
	n.sent = len(n.log)
	return nil
}

// emit stamps ev with the next sequence number and queues it for delivery.
// Callers hold the facade lock, which fixes the order.
func (n *Notifier) emit(ev Event) Event {
	n.mu.Lock()
	ev.Seq = uint64(len(n.log))
	n.log = append(n.log, ev)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
	return ev
}

// Since returns the events with sequence number >= seq
func (n *Notifier) Since(seq uint64) []Event {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if seq >= uint64(len(n.log)) {
		return []Event{}
	}
	out := make([]Event, len(n.log)-int(seq))
	copy(out, n.log[seq:])
	return out
}

// Len returns the number of events emitted so far
func (n *Notifier) Len() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return uint64(len(n.log))
}

// Subscribe registers ch for live events. A subscriber that
// stops draining delays delivery to the other subscribers only.
func (n *Notifier) Subscribe(ch chan<- Event) event.Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running && !n.closed {
		n.running = true
		n.sent = len(n.log)
		go n.loop()
	}
	return n.scope.Track(n.feed.Subscribe(ch))
}

// loop hands queued events to the feed in sequence order
func (n *Notifier) loop() {
	defer close(n.done)

	for {
		n.mu.Lock()
		batch := make([]Event, len(n.log)-n.sent)
		copy(batch, n.log[n.sent:])
		n.sent = len(n.log)
		n.mu.Unlock()

		for _, ev := range batch {
			n.feed.Send(ev)
		}
		select {
		case <-n.wake:
		case <-n.quit:
			return
		}
	}
}

// Close ends all subscriptions and stops delivery
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	running := n.running
	n.mu.Unlock()

	// Unsubscribing unblocks a pending send
	n.scope.Close()
	close(n.quit)
	if running {
		<-n.done
	}
}
