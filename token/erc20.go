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
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// Contract ABI for the subset of ERC-20 the gate reads
const erc20ABI = `[
	{
		"name": "balanceOf",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"type": "address", "name": "account"}],
		"outputs": [{"type": "uint256"}]
	},
	{
		"name": "decimals",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"type": "uint8"}]
	}
]`

// maxDecimals is the largest exponent for which 10^decimals fits in 256 bits
const maxDecimals = 77

var (
	errBalanceOverflow = errors.New("balance does not fit in 256 bits")
	errTooManyDecimals = errors.New("token decimals too large")
)

// ContractCaller is the read-only subset of ethclient.Client the gate needs
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC20Gate answers balance queries from an ERC-20 contract
type ERC20Gate struct {
	client  ContractCaller
	address common.Address
	abi     abi.ABI

	mu   sync.Mutex
	unit *uint256.Int // cached 10^decimals

	log log.Logger
}

// NewERC20Gate creates a gate reading the token contract at address
func NewERC20Gate(client ContractCaller, address common.Address) (*ERC20Gate, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return &ERC20Gate{
		client:  client,
		address: address,
		abi:     parsedABI,
		log:     log.New("module", "token", "contract", address),
	}, nil
}

// BalanceOf implements governance.TokenGate
func (g *ERC20Gate) BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	var balance *big.Int
	if err := g.call(ctx, &balance, "balanceOf", addr); err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, errBalanceOverflow
	}
	return out, nil
}

// MinimumUnit implements governance.TokenGate. The unit is 10^decimals and
// is cached after the first successful query.
func (g *ERC20Gate) MinimumUnit(ctx context.Context) (*uint256.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unit != nil {
		return g.unit.Clone(), nil
	}
	var decimals uint8
	if err := g.call(ctx, &decimals, "decimals"); err != nil {
		return nil, err
	}
	if decimals > maxDecimals {
		return nil, fmt.Errorf("%w: %d", errTooManyDecimals, decimals)
	}
	g.unit = UnitFromDecimals(decimals)
	g.log.Debug("Token minimum unit resolved", "decimals", decimals)
	return g.unit.Clone(), nil
}

func (g *ERC20Gate) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack function call: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &g.address,
		Data: data,
	}
	result, err := g.client.CallContract(ctx, msg, nil)
	if err != nil {
		return fmt.Errorf("contract call %s failed: %w", method, err)
	}

	if err := g.abi.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack result: %w", err)
	}
	return nil
}
