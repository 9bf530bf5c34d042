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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Role is a capability grouping checked before privileged operations
type Role uint8

const (
	RoleAdmin  Role = 0x01 // 管理员
	RoleMember Role = 0x02 // 成员
)

// String returns the lower-case role name used in logs and RPC responses
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	default:
		return "unknown"
	}
}

// ParseRole converts a role name back into a Role
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "member":
		return RoleMember, nil
	}
	return 0, ErrUnknownRole
}

// Call carries the authenticated caller and the value attached to the call.
// Both are supplied by the execution substrate, never by the core.
type Call struct {
	From  common.Address
	Value *uint256.Int
}

// attached returns the attached value, treating nil as zero
func (c Call) attached() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

// Proposal represents a governance proposal
type Proposal struct {
	ID          uint64         // 提案 ID（顺序索引）
	Description string         // 描述
	Executed    bool           // 是否已执行
	VoteCount   uint64         // 票数
	Creator     common.Address // 创建者
}

func (p *Proposal) copy() *Proposal {
	cpy := *p
	return &cpy
}

// Donation represents an escrowed contribution earmarked for a proposal creator
type Donation struct {
	ID          uint64         // 捐款 ID
	ProposalID  uint64         // 对应提案
	Donor       common.Address // 捐款人
	Beneficiary common.Address // 受益人（创建时快照）
	Amount      *uint256.Int   // 金额
	Executed    bool           // 是否已拨付
}

func (d *Donation) copy() *Donation {
	cpy := *d
	cpy.Amount = d.Amount.Clone()
	return &cpy
}

// Snapshot is a complete copy of the ledger state, used for persistence
type Snapshot struct {
	Admins    []common.Address
	Members   []common.Address
	Proposals []*Proposal
	Votes     map[uint64][]common.Address
	Donations []*Donation
	Pool      *uint256.Int
	Events    []Event
	Balances  map[common.Address]*uint256.Int // 非零金库余额
}

// RoleChange is a grant or revocation of role for Account
type RoleChange struct {
	Role    Role
	Account common.Address
	Granted bool
}

// Transfer is a committed movement of vault funds
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Changes lists the records touched by one successful call. A persister
// must write them atomically.
type Changes struct {
	Proposal *Proposal
	Voter    *common.Address // new vote on Proposal
	Donation *Donation
	Pool     *uint256.Int
	Role     *RoleChange
	Transfer *Transfer
	Event    *Event
}
