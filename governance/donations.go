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
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DonationEscrow is the append-only donation log plus the pooled balance
// held for payout. The pool is not split per donation; each donation keeps
// its own immutable amount and payouts are computed from that amount only.
type DonationEscrow struct {
	mu        sync.RWMutex
	donations []*Donation
	pool      *uint256.Int
}

// NewDonationEscrow creates an empty escrow
func NewDonationEscrow() *DonationEscrow {
	return &DonationEscrow{pool: new(uint256.Int)}
}

// Record appends a donation for proposal. The beneficiary is a snapshot of
// the proposal creator at this instant.
func (e *DonationEscrow) Record(proposal *Proposal, donor common.Address, amount *uint256.Int) *Donation {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := &Donation{
		ID:          uint64(len(e.donations)),
		ProposalID:  proposal.ID,
		Donor:       donor,
		Beneficiary: proposal.Creator,
		Amount:      amount.Clone(),
	}
	e.donations = append(e.donations, d)
	e.pool.Add(e.pool, amount)
	return d.copy()
}

// Credit adds an unsolicited deposit to the pool. It is never routed
// anywhere automatically.
func (e *DonationEscrow) Credit(amount *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pool.Add(e.pool, amount)
}

// Claim marks the donation executed and debits the pool. It must be called
// before the payout transfer is attempted.
func (e *DonationEscrow) Claim(id uint64) (*Donation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id >= uint64(len(e.donations)) {
		return nil, ErrNotFound
	}
	d := e.donations[id]
	if d.Executed {
		return nil, ErrAlreadyExecuted
	}
	d.Executed = true
	e.pool.Sub(e.pool, d.Amount)
	return d.copy(), nil
}

// Unclaim reverts a Claim whose payout failed, leaving the donation
// pending and its amount back in the pool.
func (e *DonationEscrow) Unclaim(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id >= uint64(len(e.donations)) {
		return
	}
	d := e.donations[id]
	if !d.Executed {
		return
	}
	d.Executed = false
	e.pool.Add(e.pool, d.Amount)
}

// Get returns a copy of the donation
func (e *DonationEscrow) Get(id uint64) (*Donation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if id >= uint64(len(e.donations)) {
		return nil, ErrNotFound
	}
	return e.donations[id].copy(), nil
}

// Len returns the number of donations
func (e *DonationEscrow) Len() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return uint64(len(e.donations))
}

// Pool returns the pooled balance currently held
func (e *DonationEscrow) Pool() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool.Clone()
}

// All returns copies of every donation in id order
func (e *DonationEscrow) All() []*Donation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Donation, len(e.donations))
	for i, d := range e.donations {
		out[i] = d.copy()
	}
	return out
}

func (e *DonationEscrow) restore(d *Donation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cpy := d.copy()
	cpy.ID = uint64(len(e.donations))
	e.donations = append(e.donations, cpy)
}

func (e *DonationEscrow) setPool(pool *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pool == nil {
		e.pool = new(uint256.Int)
		return
	}
	e.pool = pool.Clone()
}
