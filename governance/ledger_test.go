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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestRoleRegistry(t *testing.T) {
	r := NewRoleRegistry(testAdmin)

	if !r.Has(RoleAdmin, testAdmin) {
		t.Fatal("genesis admin should hold the admin role")
	}
	if r.Has(RoleMember, testAdmin) {
		t.Error("admin should not implicitly be a member")
	}

	r.Grant(RoleMember, testOther)
	r.Grant(RoleMember, testMember)
	r.Grant(RoleMember, testMember)
	members := r.Members(RoleMember)
	if len(members) != 2 || members[0] != testMember || members[1] != testOther {
		t.Errorf("expected sorted members [%s %s], got %v", testMember.Hex(), testOther.Hex(), members)
	}

	r.Revoke(RoleMember, testMember)
	r.Revoke(RoleMember, testMember)
	if r.Has(RoleMember, testMember) {
		t.Error("revoked member should not hold the role")
	}

	// Unknown roles are ignored
	r.Grant(Role(0x7f), testOther)
	if r.Has(Role(0x7f), testOther) {
		t.Error("unknown role should never be held")
	}
	if r.Members(Role(0x7f)) != nil {
		t.Error("unknown role should have no members")
	}
}

func TestParseRole(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleMember} {
		parsed, err := ParseRole(role.String())
		if err != nil || parsed != role {
			t.Errorf("ParseRole(%q) = %v, %v", role.String(), parsed, err)
		}
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestProposalLedger(t *testing.T) {
	l := NewProposalLedger()

	for i := 0; i < 3; i++ {
		p := l.Create(testAdmin, "p")
		if p.ID != uint64(i) {
			t.Fatalf("expected id %d, got %d", i, p.ID)
		}
	}
	if l.Len() != 3 {
		t.Fatalf("expected 3 proposals, got %d", l.Len())
	}

	if _, err := l.Vote(3, testMember); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	p, err := l.Vote(1, testMember)
	if err != nil || p.VoteCount != 1 {
		t.Fatalf("vote failed: %v, %+v", err, p)
	}
	if _, err := l.Vote(1, testMember); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted, got %v", err)
	}
	// The guard is per proposal
	if _, err := l.Vote(2, testMember); err != nil {
		t.Errorf("vote on another proposal failed: %v", err)
	}
	if l.HasVoted(0, testMember) || !l.HasVoted(1, testMember) || l.HasVoted(9, testMember) {
		t.Error("unexpected vote guard state")
	}

	// Returned copies do not alias ledger state
	p.VoteCount = 100
	p.Description = "changed"
	got, _ := l.Get(1)
	if got.VoteCount != 1 || got.Description != "p" {
		t.Errorf("ledger state was modified through a copy: %+v", got)
	}

	if _, err := l.Execute(0); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if _, err := l.Execute(0); !errors.Is(err, ErrAlreadyExecuted) {
		t.Errorf("expected ErrAlreadyExecuted, got %v", err)
	}
	if _, err := l.AppendMarker(5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Voters(5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProposalLedgerVoteCountMatchesVoters(t *testing.T) {
	l := NewProposalLedger()
	l.Create(testAdmin, "p")

	for i := 0; i < 50; i++ {
		// Voters repeat in runs of five
		voter := common.BigToAddress(uint256.NewInt(uint64(i - i%5)).ToBig())
		l.Vote(0, voter)

		p, _ := l.Get(0)
		voters, _ := l.Voters(0)
		if p.VoteCount != uint64(len(voters)) {
			t.Fatalf("vote count %d does not match %d voters", p.VoteCount, len(voters))
		}
	}
}

func TestDonationEscrow(t *testing.T) {
	e := NewDonationEscrow()
	proposal := &Proposal{ID: 4, Creator: testAdmin}

	amount := uint256.NewInt(100)
	d := e.Record(proposal, testDonor, amount)
	if d.ID != 0 || d.ProposalID != 4 || d.Beneficiary != testAdmin || d.Donor != testDonor {
		t.Fatalf("unexpected donation %+v", d)
	}
	// The recorded amount is a copy
	amount.SetUint64(1)
	if got, _ := e.Get(0); got.Amount.Uint64() != 100 {
		t.Errorf("donation amount changed through caller's value: %s", got.Amount.Dec())
	}

	e.Record(proposal, testDonor, uint256.NewInt(50))
	e.Credit(uint256.NewInt(7))
	if e.Pool().Uint64() != 157 {
		t.Fatalf("expected pool 157, got %s", e.Pool().Dec())
	}

	claimed, err := e.Claim(0)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if !claimed.Executed || e.Pool().Uint64() != 57 {
		t.Errorf("claim should flip the flag and debit the pool, pool %s", e.Pool().Dec())
	}
	if _, err := e.Claim(0); !errors.Is(err, ErrAlreadyExecuted) {
		t.Errorf("expected ErrAlreadyExecuted, got %v", err)
	}
	if _, err := e.Claim(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	e.Unclaim(0)
	if got, _ := e.Get(0); got.Executed {
		t.Error("unclaim should reset the flag")
	}
	if e.Pool().Uint64() != 157 {
		t.Errorf("unclaim should restore the pool, got %s", e.Pool().Dec())
	}

	// Unclaiming a pending donation is a no-op
	e.Unclaim(1)
	e.Unclaim(9)
	if e.Pool().Uint64() != 157 {
		t.Errorf("no-op unclaim changed the pool to %s", e.Pool().Dec())
	}
}
