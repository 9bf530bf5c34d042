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
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Namespace is the JSON-RPC namespace the API is registered under
const Namespace = "treasury"

// JSON-RPC error codes, one per sentinel error
const (
	codeUnauthorized        = -32010
	codeNotFound            = -32011
	codeAlreadyVoted        = -32012
	codeAlreadyExecuted     = -32013
	codeInsufficientBalance = -32014
	codeAmountMismatch      = -32015
	codeTransferFailed      = -32016
	codeTokenGate           = -32017
	codeInvalidParams       = -32602
	codeInternal            = -32603
)

var errInvalidAmount = errors.New("amount must be a non-negative 256-bit integer")

// apiError attaches a stable JSON-RPC code to a domain error
type apiError struct {
	err  error
	code int
}

func (e *apiError) Error() string  { return e.err.Error() }
func (e *apiError) ErrorCode() int { return e.code }
func (e *apiError) Unwrap() error  { return e.err }

// ErrorCode returns the JSON-RPC code reported for err
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, ErrNotFound):
		return codeNotFound
	case errors.Is(err, ErrAlreadyVoted):
		return codeAlreadyVoted
	case errors.Is(err, ErrAlreadyExecuted):
		return codeAlreadyExecuted
	case errors.Is(err, ErrInsufficientBalance):
		return codeInsufficientBalance
	case errors.Is(err, ErrAmountMismatch):
		return codeAmountMismatch
	case errors.Is(err, ErrTransferFailed):
		return codeTransferFailed
	case errors.Is(err, ErrTokenGate):
		return codeTokenGate
	case errors.Is(err, errInvalidAmount), errors.Is(err, ErrUnknownRole):
		return codeInvalidParams
	default:
		return codeInternal
	}
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return &apiError{err: err, code: ErrorCode(err)}
}

// CallArgs identifies the caller and the value attached to a call. Sender
// authentication happens in front of this API.
type CallArgs struct {
	From  common.Address `json:"from"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

func (args CallArgs) toCall() (Call, error) {
	value, err := toU256(args.Value)
	if err != nil {
		return Call{}, err
	}
	return Call{From: args.From, Value: value}, nil
}

// RPCProposal is the JSON form of a proposal
type RPCProposal struct {
	ID          hexutil.Uint64 `json:"id"`
	Description string         `json:"description"`
	Executed    bool           `json:"executed"`
	VoteCount   hexutil.Uint64 `json:"voteCount"`
	Creator     common.Address `json:"creator"`
}

// RPCDonation is the JSON form of a donation
type RPCDonation struct {
	ID          hexutil.Uint64 `json:"id"`
	ProposalID  hexutil.Uint64 `json:"proposalId"`
	Donor       common.Address `json:"donor"`
	Beneficiary common.Address `json:"beneficiary"`
	Amount      *hexutil.Big   `json:"amount"`
	Executed    bool           `json:"executed"`
}

// RPCEvent is the JSON form of a notification
type RPCEvent struct {
	Seq         hexutil.Uint64 `json:"seq"`
	Kind        string         `json:"kind"`
	ProposalID  hexutil.Uint64 `json:"proposalId"`
	DonationID  hexutil.Uint64 `json:"donationId"`
	Description string         `json:"description,omitempty"`
	Account     common.Address `json:"account"`
	Amount      *hexutil.Big   `json:"amount,omitempty"`
}

func newRPCEvent(ev Event) *RPCEvent {
	out := &RPCEvent{
		Seq:         hexutil.Uint64(ev.Seq),
		Kind:        ev.Kind.String(),
		ProposalID:  hexutil.Uint64(ev.ProposalID),
		DonationID:  hexutil.Uint64(ev.DonationID),
		Description: ev.Description,
		Account:     ev.Account,
	}
	if ev.Amount != nil {
		out.Amount = (*hexutil.Big)(ev.Amount.ToBig())
	}
	return out
}

// API exposes the governance contract over JSON-RPC
type API struct {
	gc     *GovernanceContract
	tracer trace.Tracer
}

// NewAPI creates the RPC API for gc
func NewAPI(gc *GovernanceContract) *API {
	return &API{
		gc:     gc,
		tracer: otel.Tracer("github.com/govledger/treasury/governance"),
	}
}

// APIs returns the RPC descriptors to register with an rpc.Server
func APIs(gc *GovernanceContract) []rpc.API {
	return []rpc.API{{
		Namespace: Namespace,
		Service:   NewAPI(gc),
	}}
}

// CreateProposal creates a proposal and returns its id
func (api *API) CreateProposal(ctx context.Context, args CallArgs, description string) (hexutil.Uint64, error) {
	ctx, done := api.span(ctx, "createProposal", args)
	call, err := args.toCall()
	if err != nil {
		return 0, done(err)
	}
	id, err := api.gc.CreateProposal(ctx, call, description)
	return hexutil.Uint64(id), done(err)
}

// Vote casts the caller's vote on a proposal
func (api *API) Vote(ctx context.Context, args CallArgs, id hexutil.Uint64) error {
	ctx, done := api.span(ctx, "vote", args, attribute.Int64("proposal", int64(id)))
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.Vote(ctx, call, uint64(id)))
}

// PublicActionWithTokenBurn tags a proposal on behalf of a token holder
func (api *API) PublicActionWithTokenBurn(ctx context.Context, args CallArgs, id hexutil.Uint64) error {
	ctx, done := api.span(ctx, "publicActionWithTokenBurn", args, attribute.Int64("proposal", int64(id)))
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.PublicActionWithTokenBurn(ctx, call, uint64(id)))
}

// ExecuteProposal marks a proposal executed
func (api *API) ExecuteProposal(ctx context.Context, args CallArgs, id hexutil.Uint64) error {
	ctx, done := api.span(ctx, "executeProposal", args, attribute.Int64("proposal", int64(id)))
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.ExecuteProposal(ctx, call, uint64(id)))
}

// DonateToProposal escrows the attached value for a proposal's creator
func (api *API) DonateToProposal(ctx context.Context, args CallArgs, id hexutil.Uint64, amount *hexutil.Big) (hexutil.Uint64, error) {
	ctx, done := api.span(ctx, "donateToProposal", args, attribute.Int64("proposal", int64(id)))
	call, err := args.toCall()
	if err != nil {
		return 0, done(err)
	}
	declared, err := toU256(amount)
	if err != nil {
		return 0, done(err)
	}
	donationID, err := api.gc.DonateToProposal(ctx, call, uint64(id), declared)
	return hexutil.Uint64(donationID), done(err)
}

// ExecuteDonation pays a donation out to its beneficiary
func (api *API) ExecuteDonation(ctx context.Context, args CallArgs, id hexutil.Uint64) error {
	ctx, done := api.span(ctx, "executeDonation", args, attribute.Int64("donation", int64(id)))
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.ExecuteDonation(ctx, call, uint64(id)))
}

// AddUser grants the Member role
func (api *API) AddUser(ctx context.Context, args CallArgs, user common.Address) error {
	ctx, done := api.span(ctx, "addUser", args)
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.AddUser(ctx, call, user))
}

// RemoveUser revokes the Member role
func (api *API) RemoveUser(ctx context.Context, args CallArgs, user common.Address) error {
	ctx, done := api.span(ctx, "removeUser", args)
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.RemoveUser(ctx, call, user))
}

// Receive accepts an unsolicited deposit
func (api *API) Receive(ctx context.Context, args CallArgs) error {
	ctx, done := api.span(ctx, "receive", args)
	call, err := args.toCall()
	if err != nil {
		return done(err)
	}
	return done(api.gc.Receive(ctx, call))
}

// GetProposal returns a proposal by id
func (api *API) GetProposal(id hexutil.Uint64) (*RPCProposal, error) {
	p, err := api.gc.GetProposal(uint64(id))
	if err != nil {
		return nil, wrapError(err)
	}
	return &RPCProposal{
		ID:          hexutil.Uint64(p.ID),
		Description: p.Description,
		Executed:    p.Executed,
		VoteCount:   hexutil.Uint64(p.VoteCount),
		Creator:     p.Creator,
	}, nil
}

// ProposalCount returns the number of proposals
func (api *API) ProposalCount() hexutil.Uint64 {
	return hexutil.Uint64(api.gc.ProposalCount())
}

// HasVoted reports whether voter has voted on a proposal
func (api *API) HasVoted(id hexutil.Uint64, voter common.Address) bool {
	return api.gc.HasVoted(uint64(id), voter)
}

// GetDonation returns a donation by id
func (api *API) GetDonation(id hexutil.Uint64) (*RPCDonation, error) {
	d, err := api.gc.GetDonation(uint64(id))
	if err != nil {
		return nil, wrapError(err)
	}
	return &RPCDonation{
		ID:          hexutil.Uint64(d.ID),
		ProposalID:  hexutil.Uint64(d.ProposalID),
		Donor:       d.Donor,
		Beneficiary: d.Beneficiary,
		Amount:      (*hexutil.Big)(d.Amount.ToBig()),
		Executed:    d.Executed,
	}, nil
}

// DonationCount returns the number of donations
func (api *API) DonationCount() hexutil.Uint64 {
	return hexutil.Uint64(api.gc.DonationCount())
}

// EscrowBalance returns the pooled balance held for payout
func (api *API) EscrowBalance() *hexutil.Big {
	return (*hexutil.Big)(api.gc.EscrowBalance().ToBig())
}

// HasRole reports whether addr holds the named role
func (api *API) HasRole(role string, addr common.Address) (bool, error) {
	r, err := ParseRole(role)
	if err != nil {
		return false, wrapError(err)
	}
	return api.gc.HasRole(r, addr), nil
}

// Events returns the notifications with sequence number >= since
func (api *API) Events(since hexutil.Uint64) []*RPCEvent {
	events := api.gc.Notifier().Since(uint64(since))
	out := make([]*RPCEvent, len(events))
	for i, ev := range events {
		out[i] = newRPCEvent(ev)
	}
	return out
}

// Notifications streams every new notification to the subscriber
func (api *API) Notifications(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	events := make(chan Event, 64)
	sub := api.gc.Notifier().Subscribe(events)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-events:
				notifier.Notify(rpcSub.ID, newRPCEvent(ev))
			case <-rpcSub.Err():
				return
			case <-sub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// span starts a trace span for method. The returned func ends the span and
// converts err into its JSON-RPC form.
func (api *API) span(ctx context.Context, method string, args CallArgs, attrs ...attribute.KeyValue) (context.Context, func(error) error) {
	attrs = append(attrs, attribute.String("caller", args.From.Hex()))
	ctx, span := api.tracer.Start(ctx, Namespace+"."+method, trace.WithAttributes(attrs...))
	return ctx, func(err error) error {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return wrapError(err)
	}
}

func toU256(b *hexutil.Big) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	v := (*big.Int)(b)
	if v.Sign() < 0 {
		return nil, errInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errInvalidAmount
	}
	return out, nil
}
