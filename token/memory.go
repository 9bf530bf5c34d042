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

package token

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MemoryGate is an in-memory token balance table. It backs development
// nodes and tests; it performs no mint or burn accounting of its own.
type MemoryGate struct {
	mu       sync.RWMutex
	unit     *uint256.Int
	balances map[common.Address]*uint256.Int
}

// NewMemoryGate creates a gate whose minimum unit is unit
func NewMemoryGate(unit *uint256.Int) *MemoryGate {
	return &MemoryGate{
		unit:     unit.Clone(),
		balances: make(map[common.Address]*uint256.Int),
	}
}

// NewMemoryGateWithDecimals creates a gate whose minimum unit is 10^decimals
func NewMemoryGateWithDecimals(decimals uint8) *MemoryGate {
	return NewMemoryGate(UnitFromDecimals(decimals))
}

// SetBalance overwrites the balance of addr
func (g *MemoryGate) SetBalance(addr common.Address, amount *uint256.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[addr] = amount.Clone()
}

// BalanceOf implements governance.TokenGate
func (g *MemoryGate) BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if bal, ok := g.balances[addr]; ok {
		return bal.Clone(), nil
	}
	return new(uint256.Int), nil
}

// MinimumUnit implements governance.TokenGate
func (g *MemoryGate) MinimumUnit(ctx context.Context) (*uint256.Int, error) {
	return g.unit.Clone(), nil
}

// UnitFromDecimals returns 10^decimals
func UnitFromDecimals(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}
