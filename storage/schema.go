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

package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/govledger/treasury/governance"
)

var (
	// Storage key prefixes
	proposalPrefix = []byte("P") // proposalPrefix + id -> rlp(proposalData)
	votePrefix     = []byte("V") // votePrefix + id + voter -> marker
	donationPrefix = []byte("D") // donationPrefix + id -> rlp(donationData)
	rolePrefix     = []byte("R") // rolePrefix + role + addr -> marker
	balancePrefix  = []byte("B") // balancePrefix + addr -> rlp(uint256)
	eventPrefix    = []byte("E") // eventPrefix + seq -> rlp(eventData)

	poolKey = []byte("escrow-pool")

	present = []byte{0x01}
)

// proposalData is the stored form of a proposal
type proposalData struct {
	ID          uint64
	Description string
	Executed    bool
	VoteCount   uint64
	Creator     common.Address
}

// donationData is the stored form of a donation
type donationData struct {
	ID          uint64
	ProposalID  uint64
	Donor       common.Address
	Beneficiary common.Address
	Amount      *uint256.Int
	Executed    bool
}

// eventData is the stored form of a notification
type eventData struct {
	Seq         uint64
	Kind        uint8
	ProposalID  uint64
	DonationID  uint64
	Description string
	Account     common.Address
	Amount      *uint256.Int `rlp:"nil"`
}

func proposalRecord(p *governance.Proposal) *proposalData {
	return &proposalData{
		ID:          p.ID,
		Description: p.Description,
		Executed:    p.Executed,
		VoteCount:   p.VoteCount,
		Creator:     p.Creator,
	}
}

func donationRecord(d *governance.Donation) *donationData {
	return &donationData{
		ID:          d.ID,
		ProposalID:  d.ProposalID,
		Donor:       d.Donor,
		Beneficiary: d.Beneficiary,
		Amount:      d.Amount,
		Executed:    d.Executed,
	}
}

func eventRecord(ev *governance.Event) *eventData {
	return &eventData{
		Seq:         ev.Seq,
		Kind:        uint8(ev.Kind),
		ProposalID:  ev.ProposalID,
		DonationID:  ev.DonationID,
		Description: ev.Description,
		Account:     ev.Account,
		Amount:      ev.Amount,
	}
}

func encodeID(id uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, id)
	return enc
}

func decodeID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[:8])
}

func proposalKey(id uint64) []byte {
	return append(append([]byte{}, proposalPrefix...), encodeID(id)...)
}

func voteKey(id uint64, voter common.Address) []byte {
	key := append(append([]byte{}, votePrefix...), encodeID(id)...)
	return append(key, voter.Bytes()...)
}

func donationKey(id uint64) []byte {
	return append(append([]byte{}, donationPrefix...), encodeID(id)...)
}

func roleKey(role byte, addr common.Address) []byte {
	key := append(append([]byte{}, rolePrefix...), role)
	return append(key, addr.Bytes()...)
}

func balanceKey(addr common.Address) []byte {
	return append(append([]byte{}, balancePrefix...), addr.Bytes()...)
}

func eventKey(seq uint64) []byte {
	return append(append([]byte{}, eventPrefix...), encodeID(seq)...)
}
