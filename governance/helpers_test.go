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
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/govledger/treasury/token"
	"github.com/govledger/treasury/vault"
)

var (
	testAdmin  = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	testMember = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	testDonor  = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	testEscrow = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	testOther  = common.HexToAddress("0x00000000000000000000000000000000000f0001")
)

// oneToken is the minimum unit of the test gate (18 decimals)
var oneToken = token.UnitFromDecimals(18)

type testEnv struct {
	gc    *GovernanceContract
	gate  *token.MemoryGate
	vault *vault.StateVault
	ctx   context.Context
}

// newTestEnv builds a contract with testAdmin as Admin, testMember as a
// token-holding Member, and testDonor funded with 10000 in the vault
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	v, err := vault.NewMemory()
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	v.Mint(testDonor, uint256.NewInt(10000))

	gate := token.NewMemoryGateWithDecimals(18)
	gate.SetBalance(testMember, oneToken)

	gc := NewGovernanceContract(testEscrow, NewRoleRegistry(testAdmin), NewProposalLedger(), NewDonationEscrow(), gate, v)
	env := &testEnv{gc: gc, gate: gate, vault: v, ctx: context.Background()}
	t.Cleanup(gc.Notifier().Close)
	if err := gc.AddUser(env.ctx, adminCall(), testMember); err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	return env
}

func adminCall() Call { return Call{From: testAdmin} }

func callFrom(addr common.Address) Call { return Call{From: addr} }

func callWithValue(addr common.Address, value uint64) Call {
	return Call{From: addr, Value: uint256.NewInt(value)}
}

// mustCreate creates a proposal as testAdmin
func (env *testEnv) mustCreate(t *testing.T, description string) uint64 {
	t.Helper()
	id, err := env.gc.CreateProposal(env.ctx, adminCall(), description)
	if err != nil {
		t.Fatalf("failed to create proposal: %v", err)
	}
	return id
}

// kinds returns the kinds of every event emitted so far
func (env *testEnv) kinds() []EventKind {
	var out []EventKind
	for _, ev := range env.gc.Notifier().Since(0) {
		out = append(out, ev.Kind)
	}
	return out
}

// failingGate fails every query
type failingGate struct{}

var errGateDown = errors.New("token ledger unavailable")

func (failingGate) BalanceOf(context.Context, common.Address) (*uint256.Int, error) {
	return nil, errGateDown
}

func (failingGate) MinimumUnit(context.Context) (*uint256.Int, error) {
	return nil, errGateDown
}

// recordingPersister keeps every change set it receives
type recordingPersister struct {
	mu      sync.Mutex
	changes []*Changes
}

func (p *recordingPersister) WriteChanges(c *Changes) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

// donations returns every donation record written, in order
func (p *recordingPersister) donations() []*Donation {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*Donation
	for _, c := range p.changes {
		if c.Donation != nil {
			out = append(out, c.Donation)
		}
	}
	return out
}
