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

package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/govledger/treasury/governance"
)

// ErrEmpty is returned by Load when the database holds no ledger
var ErrEmpty = errors.New("no ledger stored")

// Store persists the ledger to a key-value database
type Store struct {
	db  ethdb.KeyValueStore
	log log.Logger
}

// New wraps an existing key-value store
func New(db ethdb.KeyValueStore) *Store {
	return &Store{
		db:  db,
		log: log.New("module", "storage"),
	}
}

// Open opens the database described by cfg
func Open(cfg *StorageConfig) (*Store, error) {
	if cfg.InMemory {
		return New(memorydb.New()), nil
	}
	db, err := leveldb.New(cfg.DataDir, cfg.Cache, cfg.Handles, "treasury/db/", false)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", cfg.DataDir, err)
	}
	return New(db), nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteChanges implements governance.Persister. The records of one call are
// written in a single batch. Balances move by the committed transfer, so
// the stored balances never include a payout whose record was not written.
func (s *Store) WriteChanges(c *governance.Changes) error {
	batch := s.db.NewBatch()

	if p := c.Proposal; p != nil {
		if err := putRLP(batch, proposalKey(p.ID), proposalRecord(p)); err != nil {
			return err
		}
		if c.Voter != nil {
			if err := batch.Put(voteKey(p.ID, *c.Voter), present); err != nil {
				return err
			}
		}
	}
	if d := c.Donation; d != nil {
		if err := putRLP(batch, donationKey(d.ID), donationRecord(d)); err != nil {
			return err
		}
	}
	if c.Pool != nil {
		if err := putRLP(batch, poolKey, c.Pool); err != nil {
			return err
		}
	}
	if r := c.Role; r != nil {
		key := roleKey(byte(r.Role), r.Account)
		var err error
		if r.Granted {
			err = batch.Put(key, present)
		} else {
			err = batch.Delete(key)
		}
		if err != nil {
			return err
		}
	}
	if t := c.Transfer; t != nil && t.From != t.To {
		if err := s.moveBalance(batch, t); err != nil {
			return err
		}
	}
	if ev := c.Event; ev != nil {
		if err := putRLP(batch, eventKey(ev.Seq), eventRecord(ev)); err != nil {
			return err
		}
	}
	return batch.Write()
}

// moveBalance adds the stored balance updates for t to batch
func (s *Store) moveBalance(batch ethdb.Batch, t *governance.Transfer) error {
	from, err := s.balance(t.From)
	if err != nil {
		return err
	}
	to, err := s.balance(t.To)
	if err != nil {
		return err
	}
	if from.Lt(t.Amount) {
		// Only possible if vault funds moved outside the ledger since the
		// last checkpoint, which rewrites the balances anyway
		s.log.Warn("Stored balance below transfer amount", "account", t.From, "have", from, "amount", t.Amount)
		from.Clear()
	} else {
		from.Sub(from, t.Amount)
	}
	to.Add(to, t.Amount)

	if err := putBalance(batch, t.From, from); err != nil {
		return err
	}
	return putBalance(batch, t.To, to)
}

// balance returns the stored balance of addr, zero if none
func (s *Store) balance(addr common.Address) (*uint256.Int, error) {
	amount := new(uint256.Int)
	key := balanceKey(addr)
	if ok, err := s.db.Has(key); err != nil || !ok {
		return amount, err
	}
	enc, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(enc, amount); err != nil {
		return nil, fmt.Errorf("failed to decode balance of %s: %w", addr.Hex(), err)
	}
	return amount, nil
}

// Checkpoint rewrites the whole snapshot, vault balances and event log in
// a single batch
func (s *Store) Checkpoint(snap *governance.Snapshot) error {
	batch := s.db.NewBatch()

	// Role membership and balances may shrink, so clear them first
	for _, prefix := range [][]byte{rolePrefix, balancePrefix} {
		if err := s.iterate(prefix, func(key, _ []byte) error {
			return batch.Delete(common.CopyBytes(key))
		}); err != nil {
			return err
		}
	}

	for _, admin := range snap.Admins {
		if err := batch.Put(roleKey(byte(governance.RoleAdmin), admin), present); err != nil {
			return err
		}
	}
	for _, member := range snap.Members {
		if err := batch.Put(roleKey(byte(governance.RoleMember), member), present); err != nil {
			return err
		}
	}
	for _, p := range snap.Proposals {
		if err := putRLP(batch, proposalKey(p.ID), proposalRecord(p)); err != nil {
			return err
		}
		for _, voter := range snap.Votes[p.ID] {
			if err := batch.Put(voteKey(p.ID, voter), present); err != nil {
				return err
			}
		}
	}
	for _, d := range snap.Donations {
		if err := putRLP(batch, donationKey(d.ID), donationRecord(d)); err != nil {
			return err
		}
	}
	pool := snap.Pool
	if pool == nil {
		pool = new(uint256.Int)
	}
	if err := putRLP(batch, poolKey, pool); err != nil {
		return err
	}
	for addr, amount := range snap.Balances {
		if err := putBalance(batch, addr, amount); err != nil {
			return err
		}
	}
	for i := range snap.Events {
		if err := putRLP(batch, eventKey(snap.Events[i].Seq), eventRecord(&snap.Events[i])); err != nil {
			return err
		}
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	s.log.Info("Ledger checkpoint written", "proposals", len(snap.Proposals), "donations", len(snap.Donations), "events", len(snap.Events))
	return nil
}

// Load reads the stored ledger. It returns ErrEmpty if no admin was ever
// written.
func (s *Store) Load() (*governance.Snapshot, error) {
	snap := &governance.Snapshot{
		Votes:    make(map[uint64][]common.Address),
		Pool:     new(uint256.Int),
		Balances: make(map[common.Address]*uint256.Int),
	}

	if err := s.iterate(rolePrefix, func(key, _ []byte) error {
		if len(key) != len(rolePrefix)+1+common.AddressLength {
			return fmt.Errorf("malformed role key %x", key)
		}
		addr := common.BytesToAddress(key[len(rolePrefix)+1:])
		switch governance.Role(key[len(rolePrefix)]) {
		case governance.RoleAdmin:
			snap.Admins = append(snap.Admins, addr)
		case governance.RoleMember:
			snap.Members = append(snap.Members, addr)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(snap.Admins) == 0 {
		return nil, ErrEmpty
	}

	// Keys are big-endian ids, so iteration yields records in id order
	if err := s.iterate(proposalPrefix, func(_, value []byte) error {
		var data proposalData
		if err := rlp.DecodeBytes(value, &data); err != nil {
			return err
		}
		if data.ID != uint64(len(snap.Proposals)) {
			return fmt.Errorf("proposal log has a gap at %d", len(snap.Proposals))
		}
		snap.Proposals = append(snap.Proposals, &governance.Proposal{
			ID:          data.ID,
			Description: data.Description,
			Executed:    data.Executed,
			VoteCount:   data.VoteCount,
			Creator:     data.Creator,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.iterate(votePrefix, func(key, _ []byte) error {
		if len(key) != len(votePrefix)+8+common.AddressLength {
			return fmt.Errorf("malformed vote key %x", key)
		}
		id := decodeID(key[len(votePrefix):])
		snap.Votes[id] = append(snap.Votes[id], common.BytesToAddress(key[len(votePrefix)+8:]))
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.iterate(donationPrefix, func(_, value []byte) error {
		var data donationData
		if err := rlp.DecodeBytes(value, &data); err != nil {
			return err
		}
		if data.ID != uint64(len(snap.Donations)) {
			return fmt.Errorf("donation log has a gap at %d", len(snap.Donations))
		}
		amount := data.Amount
		if amount == nil {
			amount = new(uint256.Int)
		}
		snap.Donations = append(snap.Donations, &governance.Donation{
			ID:          data.ID,
			ProposalID:  data.ProposalID,
			Donor:       data.Donor,
			Beneficiary: data.Beneficiary,
			Amount:      amount,
			Executed:    data.Executed,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if enc, err := s.db.Get(poolKey); err == nil {
		if err := rlp.DecodeBytes(enc, snap.Pool); err != nil {
			return nil, fmt.Errorf("failed to decode pool: %w", err)
		}
	}

	if err := s.iterate(balancePrefix, func(key, value []byte) error {
		if len(key) != len(balancePrefix)+common.AddressLength {
			return fmt.Errorf("malformed balance key %x", key)
		}
		amount := new(uint256.Int)
		if err := rlp.DecodeBytes(value, amount); err != nil {
			return err
		}
		if !amount.IsZero() {
			snap.Balances[common.BytesToAddress(key[len(balancePrefix):])] = amount
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.iterate(eventPrefix, func(_, value []byte) error {
		var data eventData
		if err := rlp.DecodeBytes(value, &data); err != nil {
			return err
		}
		if data.Seq != uint64(len(snap.Events)) {
			return fmt.Errorf("event log has a gap at %d", len(snap.Events))
		}
		snap.Events = append(snap.Events, governance.Event{
			Seq:         data.Seq,
			Kind:        governance.EventKind(data.Kind),
			ProposalID:  data.ProposalID,
			DonationID:  data.DonationID,
			Description: data.Description,
			Account:     data.Account,
			Amount:      data.Amount,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	s.log.Info("Ledger loaded", "proposals", len(snap.Proposals), "donations", len(snap.Donations), "members", len(snap.Members), "events", len(snap.Events))
	return snap, nil
}

func putRLP(w ethdb.KeyValueWriter, key []byte, val interface{}) error {
	enc, err := rlp.EncodeToBytes(val)
	if err != nil {
		return err
	}
	return w.Put(key, enc)
}

func putBalance(w ethdb.KeyValueWriter, addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return w.Delete(balanceKey(addr))
	}
	return putRLP(w, balanceKey(addr), amount)
}

func (s *Store) iterate(prefix []byte, fn func(key, value []byte) error) error {
	it := s.db.NewIterator(prefix, nil)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}
