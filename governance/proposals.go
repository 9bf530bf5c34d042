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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// TokenHolderMarker is appended to a proposal description by the
// balance-gated public action
const TokenHolderMarker = " [token-holder action]"

// ProposalLedger is the append-only proposal log together with the
// per-proposal double-vote guard
type ProposalLedger struct {
	mu        sync.RWMutex
	proposals []*Proposal
	voters    []mapset.Set[common.Address]
}

// NewProposalLedger creates an empty ledger
func NewProposalLedger() *ProposalLedger {
	return &ProposalLedger{}
}

// Create appends a new proposal at the next sequential id
func (l *ProposalLedger) Create(creator common.Address, description string) *Proposal {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := &Proposal{
		ID:          uint64(len(l.proposals)),
		Description: description,
		Creator:     creator,
	}
	l.proposals = append(l.proposals, p)
	l.voters = append(l.voters, mapset.NewThreadUnsafeSet[common.Address]())
	return p.copy()
}

// Vote records a vote by voter. The guard check and the tally increment
// happen under the same lock.
func (l *ProposalLedger) Vote(id uint64, voter common.Address) (*Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id >= uint64(len(l.proposals)) {
		return nil, ErrNotFound
	}
	if !l.voters[id].Add(voter) {
		return nil, ErrAlreadyVoted
	}
	p := l.proposals[id]
	p.VoteCount++
	return p.copy(), nil
}

// AppendMarker appends TokenHolderMarker to the description. Repeated calls
// keep appending.
func (l *ProposalLedger) AppendMarker(id uint64) (*Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id >= uint64(len(l.proposals)) {
		return nil, ErrNotFound
	}
	p := l.proposals[id]
	p.Description += TokenHolderMarker
	return p.copy(), nil
}

// Execute flips the executed flag. It has no other consequence.
func (l *ProposalLedger) Execute(id uint64) (*Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id >= uint64(len(l.proposals)) {
		return nil, ErrNotFound
	}
	p := l.proposals[id]
	if p.Executed {
		return nil, ErrAlreadyExecuted
	}
	p.Executed = true
	return p.copy(), nil
}

// Get returns a copy of the proposal
func (l *ProposalLedger) Get(id uint64) (*Proposal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id >= uint64(len(l.proposals)) {
		return nil, ErrNotFound
	}
	return l.proposals[id].copy(), nil
}

// Exists reports whether id names a proposal
func (l *ProposalLedger) Exists(id uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return id < uint64(len(l.proposals))
}

// Len returns the number of proposals
func (l *ProposalLedger) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.proposals))
}

// HasVoted reports whether voter has voted on proposal id
func (l *ProposalLedger) HasVoted(id uint64, voter common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id >= uint64(len(l.voters)) {
		return false
	}
	return l.voters[id].Contains(voter)
}

// Voters returns the principals that voted on proposal id
func (l *ProposalLedger) Voters(id uint64) ([]common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id >= uint64(len(l.voters)) {
		return nil, ErrNotFound
	}
	return sortedAddresses(l.voters[id].ToSlice()), nil
}

// All returns copies of every proposal in id order
func (l *ProposalLedger) All() []*Proposal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Proposal, len(l.proposals))
	for i, p := range l.proposals {
		out[i] = p.copy()
	}
	return out
}

// restore appends a persisted proposal with its voters. The vote count is
// rebuilt from the voter set so the two can never disagree.
func (l *ProposalLedger) restore(p *Proposal, voters []common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cpy := p.copy()
	cpy.ID = uint64(len(l.proposals))
	set := mapset.NewThreadUnsafeSet[common.Address](voters...)
	cpy.VoteCount = uint64(set.Cardinality())
	l.proposals = append(l.proposals, cpy)
	l.voters = append(l.voters, set)
}
