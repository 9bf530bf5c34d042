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
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// payoutKey marks a context as running inside the payout of one donation
type payoutKey struct{ id uint64 }

// GovernanceContract is the single entry surface of the treasury. It checks
// role and balance preconditions, mutates the registry, proposal ledger and
// donation escrow, and emits notifications.
//
// Calls are serialized by mu. Each call checks every precondition before it
// mutates anything, so a rejected call leaves no trace.
type GovernanceContract struct {
	mu sync.Mutex

	escrow    common.Address // 托管账户
	roles     *RoleRegistry
	proposals *ProposalLedger
	donations *DonationEscrow
	gate      TokenGate
	vault     Vault
	notifier  *Notifier
	persister Persister

	payouts map[uint64]chan struct{} // 进行中的拨付

	log log.Logger
}

// NewGovernanceContract creates a new governance contract instance
func NewGovernanceContract(
	escrow common.Address,
	roles *RoleRegistry,
	proposals *ProposalLedger,
	donations *DonationEscrow,
	gate TokenGate,
	vault Vault,
) *GovernanceContract {
	return &GovernanceContract{
		escrow:    escrow,
		roles:     roles,
		proposals: proposals,
		donations: donations,
		gate:      gate,
		vault:     vault,
		notifier:  NewNotifier(),
		payouts:   make(map[uint64]chan struct{}),
		log:       log.New("module", "governance"),
	}
}

// SetPersister installs p to receive every record touched by a successful call
func (gc *GovernanceContract) SetPersister(p Persister) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.persister = p
}

// Notifier returns the outbound event log
func (gc *GovernanceContract) Notifier() *Notifier {
	return gc.notifier
}

// EscrowAddress returns the account holding pooled donations
func (gc *GovernanceContract) EscrowAddress() common.Address {
	return gc.escrow
}

// CreateProposal appends a proposal created by the calling Admin
func (gc *GovernanceContract) CreateProposal(ctx context.Context, call Call, description string) (uint64, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if err := gc.requireRole(RoleAdmin, call.From); err != nil {
		return 0, gc.reject("createProposal", call, err)
	}
	p := gc.proposals.Create(call.From, description)
	gc.commit("createProposal", &Changes{
		Proposal: p,
		Event:    &Event{Kind: EventProposalCreated, ProposalID: p.ID, Description: p.Description, Account: call.From},
	})

	gc.log.Info("Proposal created", "id", p.ID, "creator", call.From)
	return p.ID, nil
}

// Vote casts the caller's vote on proposal id
func (gc *GovernanceContract) Vote(ctx context.Context, call Call, id uint64) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	// Checked in order: role, proposal, balance, guard
	if err := gc.requireRole(RoleMember, call.From); err != nil {
		return gc.reject("vote", call, err)
	}
	if !gc.proposals.Exists(id) {
		return gc.reject("vote", call, fmt.Errorf("proposal %d: %w", id, ErrNotFound))
	}
	if err := gc.requireTokens(ctx, call.From); err != nil {
		return gc.reject("vote", call, err)
	}
	p, err := gc.proposals.Vote(id, call.From)
	if err != nil {
		return gc.reject("vote", call, fmt.Errorf("proposal %d: %w", id, err))
	}
	voter := call.From
	gc.commit("vote", &Changes{
		Proposal: p,
		Voter:    &voter,
		Event:    &Event{Kind: EventVoted, ProposalID: id, Account: voter},
	})

	gc.log.Info("Vote recorded", "proposal", id, "voter", call.From, "count", p.VoteCount)
	return nil
}

// PublicActionWithTokenBurn lets any token holder tag a proposal. The
// balance is checked but never deducted, and no event is emitted.
func (gc *GovernanceContract) PublicActionWithTokenBurn(ctx context.Context, call Call, id uint64) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if !gc.proposals.Exists(id) {
		return gc.reject("publicAction", call, fmt.Errorf("proposal %d: %w", id, ErrNotFound))
	}
	if err := gc.requireTokens(ctx, call.From); err != nil {
		return gc.reject("publicAction", call, err)
	}
	p, err := gc.proposals.AppendMarker(id)
	if err != nil {
		return gc.reject("publicAction", call, err)
	}
	gc.commit("publicAction", &Changes{Proposal: p})

	gc.log.Info("Proposal tagged by token holder", "proposal", id, "caller", call.From)
	return nil
}

// ExecuteProposal marks proposal id executed. The flag is a terminal marker only.
func (gc *GovernanceContract) ExecuteProposal(ctx context.Context, call Call, id uint64) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if err := gc.requireRole(RoleAdmin, call.From); err != nil {
		return gc.reject("executeProposal", call, err)
	}
	p, err := gc.proposals.Execute(id)
	if err != nil {
		return gc.reject("executeProposal", call, fmt.Errorf("proposal %d: %w", id, err))
	}
	gc.commit("executeProposal", &Changes{
		Proposal: p,
		Event:    &Event{Kind: EventExecuted, ProposalID: id, Account: call.From},
	})

	gc.log.Info("Proposal executed", "id", id)
	return nil
}

// DonateToProposal takes custody of the attached value and records a
// donation for the creator of proposal id.
func (gc *GovernanceContract) DonateToProposal(ctx context.Context, call Call, id uint64, declared *uint256.Int) (uint64, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	p, err := gc.proposals.Get(id)
	if err != nil {
		return 0, gc.reject("donate", call, fmt.Errorf("proposal %d: %w", id, err))
	}
	if declared == nil || declared.IsZero() {
		return 0, gc.reject("donate", call, fmt.Errorf("%w: declared amount must be positive", ErrAmountMismatch))
	}
	if value := call.attached(); !value.Eq(declared) {
		return 0, gc.reject("donate", call, fmt.Errorf("%w: declared %s, attached %s", ErrAmountMismatch, declared.Dec(), value.Dec()))
	}
	if err := gc.vault.Transfer(ctx, call.From, gc.escrow, declared); err != nil {
		return 0, gc.reject("donate", call, fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
	d := gc.donations.Record(p, call.From, declared)
	gc.commit("donate", &Changes{
		Donation: d,
		Pool:     gc.donations.Pool(),
		Transfer: &Transfer{From: call.From, To: gc.escrow, Amount: d.Amount.Clone()},
		Event:    &Event{Kind: EventDonationReceived, DonationID: d.ID, ProposalID: id, Account: call.From, Amount: d.Amount.Clone()},
	})

	gc.log.Info("Donation received", "id", d.ID, "proposal", id, "sender", call.From, "amount", d.Amount)
	return d.ID, nil
}

// ExecuteDonation pays donation id out to its beneficiary.
//
// The executed flag is flipped and the pool debited before the transfer,
// and the facade lock is released while the transfer runs. Only a call made
// from inside that payout, such as a re-entrant beneficiary, observes the
// donation as executed. Other callers for the same donation wait for the
// payout to settle. If the transfer fails the claim is undone and the call
// can be retried.
func (gc *GovernanceContract) ExecuteDonation(ctx context.Context, call Call, id uint64) error {
	gc.mu.Lock()
	if err := gc.requireRole(RoleAdmin, call.From); err != nil {
		gc.mu.Unlock()
		return gc.reject("executeDonation", call, err)
	}
	if ctx.Value(payoutKey{id}) == nil {
		for {
			done, busy := gc.payouts[id]
			if !busy {
				break
			}
			if err := gc.await(ctx, done); err != nil {
				gc.mu.Unlock()
				return gc.reject("executeDonation", call, err)
			}
		}
	}
	d, err := gc.donations.Claim(id)
	if err != nil {
		gc.mu.Unlock()
		return gc.reject("executeDonation", call, fmt.Errorf("donation %d: %w", id, err))
	}
	done := make(chan struct{})
	gc.payouts[id] = done
	gc.mu.Unlock()

	err = gc.vault.Transfer(context.WithValue(ctx, payoutKey{id}, struct{}{}), gc.escrow, d.Beneficiary, d.Amount)

	gc.mu.Lock()
	defer gc.mu.Unlock()

	delete(gc.payouts, id)
	close(done)
	if err != nil {
		gc.donations.Unclaim(id)
		gc.log.Warn("Donation payout failed", "id", id, "beneficiary", d.Beneficiary, "err", err)
		return fmt.Errorf("donation %d: %w: %v", id, ErrTransferFailed, err)
	}
	gc.commit("executeDonation", &Changes{
		Donation: d,
		Pool:     gc.donations.Pool(),
		Transfer: &Transfer{From: gc.escrow, To: d.Beneficiary, Amount: d.Amount.Clone()},
		Event:    &Event{Kind: EventDonationExecuted, DonationID: id, ProposalID: d.ProposalID, Account: d.Beneficiary, Amount: d.Amount.Clone()},
	})

	gc.log.Info("Donation executed", "id", id, "beneficiary", d.Beneficiary, "amount", d.Amount)
	return nil
}

// AddUser grants the Member role to addr
func (gc *GovernanceContract) AddUser(ctx context.Context, call Call, addr common.Address) error {
	return gc.setMember(call, addr, true)
}

// RemoveUser revokes the Member role from addr
func (gc *GovernanceContract) RemoveUser(ctx context.Context, call Call, addr common.Address) error {
	return gc.setMember(call, addr, false)
}

func (gc *GovernanceContract) setMember(call Call, addr common.Address, granted bool) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	op := "addUser"
	if !granted {
		op = "removeUser"
	}
	if err := gc.requireRole(RoleAdmin, call.From); err != nil {
		return gc.reject(op, call, err)
	}
	if granted {
		gc.roles.Grant(RoleMember, addr)
	} else {
		gc.roles.Revoke(RoleMember, addr)
	}
	gc.commit(op, &Changes{Role: &RoleChange{Role: RoleMember, Account: addr, Granted: granted}})

	gc.log.Info("Membership changed", "member", addr, "granted", granted, "admin", call.From)
	return nil
}

// Receive accepts an unsolicited deposit. The funds are held in the pool
// and never routed automatically.
func (gc *GovernanceContract) Receive(ctx context.Context, call Call) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	value := call.attached()
	if value.IsZero() {
		return nil
	}
	if err := gc.vault.Transfer(ctx, call.From, gc.escrow, value); err != nil {
		return gc.reject("receive", call, fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
	gc.donations.Credit(value)
	gc.commit("receive", &Changes{
		Pool:     gc.donations.Pool(),
		Transfer: &Transfer{From: call.From, To: gc.escrow, Amount: value.Clone()},
	})

	gc.log.Info("Unsolicited deposit held", "sender", call.From, "amount", value)
	return nil
}

// GetProposal returns proposal id
func (gc *GovernanceContract) GetProposal(id uint64) (*Proposal, error) {
	return gc.proposals.Get(id)
}

// ProposalCount returns the number of proposals
func (gc *GovernanceContract) ProposalCount() uint64 {
	return gc.proposals.Len()
}

// HasVoted reports whether voter has voted on proposal id
func (gc *GovernanceContract) HasVoted(id uint64, voter common.Address) bool {
	return gc.proposals.HasVoted(id, voter)
}

// GetDonation returns donation id
func (gc *GovernanceContract) GetDonation(id uint64) (*Donation, error) {
	return gc.donations.Get(id)
}

// DonationCount returns the number of donations
func (gc *GovernanceContract) DonationCount() uint64 {
	return gc.donations.Len()
}

// EscrowBalance returns the pooled balance held for payout
func (gc *GovernanceContract) EscrowBalance() *uint256.Int {
	return gc.donations.Pool()
}

// HasRole reports whether addr holds role
func (gc *GovernanceContract) HasRole(role Role, addr common.Address) bool {
	return gc.roles.Has(role, addr)
}

// Snapshot returns a copy of the full ledger state and vault balances
func (gc *GovernanceContract) Snapshot() *Snapshot {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.snapshot()
}

// Checkpoint waits until no payout is in flight, then hands a snapshot to
// write. No call runs between taking the snapshot and write returning.
func (gc *GovernanceContract) Checkpoint(ctx context.Context, write func(*Snapshot) error) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	for len(gc.payouts) > 0 {
		for _, done := range gc.payouts {
			if err := gc.await(ctx, done); err != nil {
				return err
			}
			break
		}
	}
	return write(gc.snapshot())
}

func (gc *GovernanceContract) snapshot() *Snapshot {
	snap := &Snapshot{
		Admins:    gc.roles.Members(RoleAdmin),
		Members:   gc.roles.Members(RoleMember),
		Proposals: gc.proposals.All(),
		Votes:     make(map[uint64][]common.Address),
		Donations: gc.donations.All(),
		Pool:      gc.donations.Pool(),
		Events:    gc.notifier.Since(0),
		Balances:  gc.vault.Balances(),
	}
	for _, p := range snap.Proposals {
		voters, _ := gc.proposals.Voters(p.ID)
		if len(voters) > 0 {
			snap.Votes[p.ID] = voters
		}
	}
	return snap
}

// await releases the facade lock until done is closed or ctx ends. The lock
// is held again on return.
func (gc *GovernanceContract) await(ctx context.Context, done <-chan struct{}) error {
	gc.mu.Unlock()
	defer gc.mu.Lock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (gc *GovernanceContract) requireRole(role Role, addr common.Address) error {
	if !gc.roles.Has(role, addr) {
		return fmt.Errorf("%w: %s is not %s", ErrUnauthorized, addr.Hex(), role)
	}
	return nil
}

// requireTokens checks that addr holds at least one whole token
func (gc *GovernanceContract) requireTokens(ctx context.Context, addr common.Address) error {
	unit, err := gc.gate.MinimumUnit(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenGate, err)
	}
	balance, err := gc.gate.BalanceOf(ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenGate, err)
	}
	if balance.Lt(unit) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), unit.Dec())
	}
	return nil
}

func (gc *GovernanceContract) reject(op string, call Call, err error) error {
	gc.log.Debug("Call rejected", "op", op, "caller", call.From, "err", err)
	return err
}

// commit persists the records touched by a call, then publishes its event.
// Write errors are logged and do not fail the call; the next checkpoint
// rewrites every record.
func (gc *GovernanceContract) commit(op string, c *Changes) {
	if c.Event != nil {
		c.Event.Seq = gc.notifier.Len()
	}
	if gc.persister != nil {
		if err := gc.persister.WriteChanges(c); err != nil {
			gc.log.Error("Failed to persist changes", "op", op, "err", err)
		}
	}
	if c.Event != nil {
		gc.notifier.emit(*c.Event)
	}
}
