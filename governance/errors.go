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

import "errors"

// Authorization errors
var (
	ErrUnauthorized = errors.New("caller lacks the required role")
	ErrUnknownRole  = errors.New("unknown role")
)

// Ledger errors
var (
	ErrNotFound        = errors.New("referenced proposal or donation not found")
	ErrAlreadyVoted    = errors.New("voter has already voted on this proposal")
	ErrAlreadyExecuted = errors.New("already executed")
)

// Funds errors
var (
	ErrInsufficientBalance = errors.New("token balance below one minimum unit")
	ErrAmountMismatch      = errors.New("declared amount does not match attached value")
	ErrTransferFailed      = errors.New("fund transfer failed")
)

// Collaborator errors
var (
	ErrTokenGate = errors.New("token gate query failed")
)
