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

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenGate is the read side of the external fungible-token ledger
type TokenGate interface {
	// BalanceOf returns the token balance held by addr
	BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error)

	// MinimumUnit returns the smallest divisible amount that counts as one token
	MinimumUnit(ctx context.Context) (*uint256.Int, error)
}

// Vault moves native funds between accounts. A transfer either applies
// completely or returns an error and leaves every balance untouched.
type Vault interface {
	// Transfer moves amount from one account to another
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error

	// BalanceOf returns the native balance of addr
	BalanceOf(addr common.Address) *uint256.Int

	// Balances returns every non-zero balance
	Balances() map[common.Address]*uint256.Int
}

// Persister receives the records touched by each successful call
type Persister interface {
	WriteChanges(c *Changes) error
}
