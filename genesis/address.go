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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// CalculateContractAddress deterministically calculates a contract address
// based on the deployer address and nonce using CREATE opcode rules
func CalculateContractAddress(deployer common.Address, nonce uint64) common.Address {
	// CREATE address calculation: keccak256(rlp([deployer, nonce]))
	data, _ := rlp.EncodeToBytes([]interface{}{deployer, nonce})
	hash := crypto.Keccak256Hash(data)

	var addr common.Address
	copy(addr[:], hash[12:])
	return addr
}

// EscrowAddress returns the account that holds pooled donations. It is the
// address the treasury would have if deployed by admin at nonce 0.
func EscrowAddress(admin common.Address) common.Address {
	return CalculateContractAddress(admin, 0)
}
