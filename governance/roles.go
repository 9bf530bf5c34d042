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
	"bytes"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// RoleRegistry holds the principals granted each role
type RoleRegistry struct {
	mu    sync.RWMutex
	roles map[Role]mapset.Set[common.Address]
}

// NewRoleRegistry creates a registry with admin as the genesis Admin
func NewRoleRegistry(admin common.Address) *RoleRegistry {
	r := &RoleRegistry{
		roles: map[Role]mapset.Set[common.Address]{
			RoleAdmin:  mapset.NewThreadUnsafeSet[common.Address](),
			RoleMember: mapset.NewThreadUnsafeSet[common.Address](),
		},
	}
	r.roles[RoleAdmin].Add(admin)
	return r
}

// Grant gives role to addr. Granting a held role is a no-op.
func (r *RoleRegistry) Grant(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.roles[role]; ok {
		set.Add(addr)
	}
}

// Revoke removes role from addr. Revoking an absent role is a no-op.
func (r *RoleRegistry) Revoke(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.roles[role]; ok {
		set.Remove(addr)
	}
}

// Has reports whether addr holds role
func (r *RoleRegistry) Has(role Role, addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.roles[role]
	return ok && set.Contains(addr)
}

// Members returns the holders of role in ascending address order
func (r *RoleRegistry) Members(role Role) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.roles[role]
	if !ok {
		return nil
	}
	return sortedAddresses(set.ToSlice())
}

func sortedAddresses(addrs []common.Address) []common.Address {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}
