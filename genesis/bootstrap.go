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

package genesis

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/govledger/treasury/governance"
)

// Minter credits genesis funds to an account
type Minter interface {
	Mint(addr common.Address, amount *uint256.Int)
}

// BalanceSetter assigns genesis token balances
type BalanceSetter interface {
	SetBalance(addr common.Address, amount *uint256.Int)
}

// BootstrapConfig holds the genesis allocation for a fresh ledger
type BootstrapConfig struct {
	// Admin is the initializing principal and sole Admin
	Admin common.Address

	// Members are granted the Member role at genesis
	Members []common.Address

	// Funds are native balances credited to accounts in the vault
	Funds map[common.Address]*uint256.Int

	// Tokens are token balances assigned in the in-memory token gate
	Tokens map[common.Address]*uint256.Int
}

// DefaultBootstrapConfig returns an empty configuration for admin
func DefaultBootstrapConfig(admin common.Address) *BootstrapConfig {
	return &BootstrapConfig{
		Admin:  admin,
		Funds:  make(map[common.Address]*uint256.Int),
		Tokens: make(map[common.Address]*uint256.Int),
	}
}

// Apply credits the genesis funds and token balances. tokens may be nil
// when the token gate is an external contract.
func (cfg *BootstrapConfig) Apply(vault Minter, tokens BalanceSetter) {
	for addr, amount := range cfg.Funds {
		vault.Mint(addr, amount)
	}
	cfg.ApplyTokens(tokens)
}

// ApplyTokens assigns the token balances only. In-memory token balances are
// not persisted, so they are reapplied on every start.
func (cfg *BootstrapConfig) ApplyTokens(tokens BalanceSetter) {
	if tokens == nil {
		if len(cfg.Tokens) > 0 {
			log.Warn("Ignoring genesis token balances, token gate is external", "accounts", len(cfg.Tokens))
		}
		return
	}
	for addr, amount := range cfg.Tokens {
		tokens.SetBalance(addr, amount)
	}
}

// Seed grants the initial members through the contract's own entry point,
// so the grants are persisted and logged like any other call
func (cfg *BootstrapConfig) Seed(ctx context.Context, gc *governance.GovernanceContract) error {
	call := governance.Call{From: cfg.Admin}
	for _, member := range cfg.Members {
		if err := gc.AddUser(ctx, call, member); err != nil {
			return fmt.Errorf("failed to add genesis member %s: %w", member.Hex(), err)
		}
	}
	return nil
}
