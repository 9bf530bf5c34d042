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

	"github.com/ethereum/go-ethereum/common"
)

var errNoAdmin = errors.New("snapshot has no admin")

// Restore rebuilds the registry, proposal ledger and donation escrow from a
// persisted snapshot. Proposals and donations must be in id order.
func Restore(snap *Snapshot) (*RoleRegistry, *ProposalLedger, *DonationEscrow, error) {
	if len(snap.Admins) == 0 {
		return nil, nil, nil, errNoAdmin
	}
	roles := NewRoleRegistry(snap.Admins[0])
	for _, admin := range snap.Admins[1:] {
		roles.Grant(RoleAdmin, admin)
	}
	for _, member := range snap.Members {
		roles.Grant(RoleMember, member)
	}

	proposals := NewProposalLedger()
	for _, p := range snap.Proposals {
		proposals.restore(p, snap.Votes[p.ID])
	}

	donations := NewDonationEscrow()
	for _, d := range snap.Donations {
		if d.ProposalID >= proposals.Len() {
			return nil, nil, nil, ErrNotFound
		}
		donations.restore(d)
	}
	donations.setPool(snap.Pool)

	return roles, proposals, donations, nil
}

// Genesis returns an empty snapshot with admin as the only Admin
func Genesis(admin common.Address) *Snapshot {
	return &Snapshot{
		Admins: []common.Address{admin},
		Votes:  make(map[uint64][]common.Address),
	}
}
