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

package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrReceiptRejected   = errors.New("recipient rejected funds")
)

// ReceiptHook runs when an account receives funds. Returning an error
// rejects the transfer. A hook may call back into code that uses the vault.
type ReceiptHook func(ctx context.Context, from common.Address, amount *uint256.Int) error

// StateVault holds native balances in a StateDB. A transfer rejected by the
// recipient is refunded, so a failed transfer leaves no balance change.
type StateVault struct {
	mu       sync.Mutex
	state    *state.StateDB
	accounts mapset.Set[common.Address] // 出现过的账户
	hooks    map[common.Address]ReceiptHook
	log      log.Logger
}

// New creates a vault over an existing state
func New(stateDB *state.StateDB) *StateVault {
	return &StateVault{
		state:    stateDB,
		accounts: mapset.NewThreadUnsafeSet[common.Address](),
		hooks:    make(map[common.Address]ReceiptHook),
		log:      log.New("module", "vault"),
	}
}

// NewMemory creates a vault backed by a fresh in-memory state
func NewMemory() (*StateVault, error) {
	db := rawdb.NewMemoryDatabase()
	trieDB := triedb.NewDatabase(db, nil)
	stateDB, err := state.New(types.EmptyRootHash, state.NewDatabase(trieDB, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}
	return New(stateDB), nil
}

// Mint credits amount to addr out of thin air. Used for genesis allocations.
func (v *StateVault) Mint(addr common.Address, amount *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.AddBalance(addr, amount, tracing.BalanceIncreaseGenesisBalance)
	v.accounts.Add(addr)
}

// Balances returns every non-zero balance held in the vault
func (v *StateVault) Balances() map[common.Address]*uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make(map[common.Address]*uint256.Int, v.accounts.Cardinality())
	for _, addr := range v.accounts.ToSlice() {
		if bal := v.state.GetBalance(addr); !bal.IsZero() {
			out[addr] = bal.Clone()
		}
	}
	return out
}

// OnReceive registers hook for funds arriving at addr; nil removes it
func (v *StateVault) OnReceive(addr common.Address, hook ReceiptHook) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if hook == nil {
		delete(v.hooks, addr)
		return
	}
	v.hooks[addr] = hook
}

// BalanceOf implements governance.Vault
func (v *StateVault) BalanceOf(addr common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.GetBalance(addr).Clone()
}

// Transfer implements governance.Vault. Balances move first, then the
// recipient's hook runs without the vault lock held; a hook error undoes
// the move.
func (v *StateVault) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	if v.state.GetBalance(from).Lt(amount) {
		have := v.state.GetBalance(from).Clone()
		v.mu.Unlock()
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientFunds, from.Hex(), have.Dec(), amount.Dec())
	}
	v.state.SubBalance(from, amount, tracing.BalanceChangeTransfer)
	v.state.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	v.accounts.Add(to)
	hook := v.hooks[to]
	v.mu.Unlock()

	if hook == nil {
		v.log.Debug("Funds transferred", "from", from, "to", to, "amount", amount)
		return nil
	}
	if err := hook(ctx, from, amount.Clone()); err != nil {
		v.refund(from, to, amount)
		v.log.Debug("Transfer rejected by recipient", "from", from, "to", to, "err", err)
		return fmt.Errorf("%w: %v", ErrReceiptRejected, err)
	}
	return nil
}

// refund moves amount back from to. The recipient's balance may have been
// spent by its hook, in which case whatever remains is returned.
func (v *StateVault) refund(from, to common.Address, amount *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	back := amount
	if bal := v.state.GetBalance(to); bal.Lt(amount) {
		back = bal.Clone()
		v.log.Error("Recipient spent rejected funds", "to", to, "want", amount, "have", bal)
	}
	v.state.SubBalance(to, back, tracing.BalanceChangeTransfer)
	v.state.AddBalance(from, back, tracing.BalanceChangeTransfer)
}
