// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package rewarding implements the reward claim pools and the batch claim
// orchestrator. A claim is paid only when countersigned by a holder of the
// reward-manager role over the (account, amount, orderId, claim) typed data,
// and each order ID redeems at most once per pool.
package rewarding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Sapien-io/sapien-contracts-sub001/authorization"
	"github.com/Sapien-io/sapien-contracts-sub001/pkg/log"
	"github.com/Sapien-io/sapien-contracts-sub001/roles"
	"github.com/Sapien-io/sapien-contracts-sub001/tokens"
)

// Error definitions
var (
	// ErrPaused indicates the pool is paused
	ErrPaused = errors.New("reward pool is paused")
	// ErrInvalidAmount indicates a zero or negative claim amount
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientAvailableRewards indicates the pool cannot cover the amount
	ErrInsufficientAvailableRewards = errors.New("insufficient available rewards")
	// ErrZeroAddress indicates a missing pool at construction
	ErrZeroAddress = errors.New("zero address")
	// ErrReentrantCall indicates a nested entry into a fund-moving operation
	ErrReentrantCall = errors.New("reentrant call")
)

var _claimMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sapien_rewarding_claims_total",
	Help: "reward claims by pool.",
}, []string{"pool"})

func init() {
	prometheus.MustRegister(_claimMtc)
}

// RewardClaimedEvent records one paid claim
type RewardClaimedEvent struct {
	Pool    string
	Account common.Address
	OrderID uint64
	Amount  *big.Int
}

// Name returns the audit-log name of the event
func (RewardClaimedEvent) Name() string { return "RewardClaimed" }

type redeemKey struct {
	account common.Address
	orderID uint64
}

type poolSnapshot struct {
	available      *big.Int
	totalDeposited *big.Int
	totalClaimed   *big.Int
	redeemLen      int
	eventsLen      int
	regSnapshot    int
	ledgerSnapshot int
}

// Pool is one reward pool deployment with its own signing domain, order
// registry, pause flag and custody account
type Pool struct {
	name       string
	addr       common.Address
	authorizer *authorization.Authorizer
	ledger     tokens.Ledger
	roles      *roles.Registry
	clock      clock.Clock

	available      *big.Int
	totalDeposited *big.Int
	totalClaimed   *big.Int
	redeemed       map[redeemKey]bool
	redeemJournal  []redeemKey
	snapshots      []poolSnapshot
	paused         bool
	entered        bool
	events         []RewardClaimedEvent
}

// NewPool creates a reward pool. addr is the custody account of the pool and
// the verifying contract of its signing domain.
func NewPool(
	name string,
	addr common.Address,
	domain authorization.Domain,
	registry *authorization.Registry,
	ledger tokens.Ledger,
	roleRegistry *roles.Registry,
	clk clock.Clock,
) (*Pool, error) {
	if addr == (common.Address{}) {
		return nil, errors.Wrap(ErrZeroAddress, "pool custody address must be set")
	}
	if registry == nil || ledger == nil || roleRegistry == nil {
		return nil, errors.New("registry, ledger and role registry must be set")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Pool{
		name:           name,
		addr:           addr,
		authorizer:     authorization.NewAuthorizer(domain, registry),
		ledger:         ledger,
		roles:          roleRegistry,
		clock:          clk,
		available:      big.NewInt(0),
		totalDeposited: big.NewInt(0),
		totalClaimed:   big.NewInt(0),
		redeemed:       make(map[redeemKey]bool),
	}, nil
}

// Name returns the pool name
func (p *Pool) Name() string { return p.name }

// Addr returns the pool custody address
func (p *Pool) Addr() common.Address { return p.addr }

// Paused returns the pause flag
func (p *Pool) Paused() bool { return p.paused }

// AvailableRewards returns the undistributed balance
func (p *Pool) AvailableRewards() *big.Int { return new(big.Int).Set(p.available) }

// TotalDeposited returns the lifetime deposits
func (p *Pool) TotalDeposited() *big.Int { return new(big.Int).Set(p.totalDeposited) }

// TotalClaimed returns the lifetime paid claims
func (p *Pool) TotalClaimed() *big.Int { return new(big.Int).Set(p.totalClaimed) }

// IsRedeemed checks whether the order ID has been redeemed for the account
func (p *Pool) IsRedeemed(account common.Address, orderID uint64) bool {
	return p.redeemed[redeemKey{account: account, orderID: orderID}]
}

// Events returns the claim events emitted so far
func (p *Pool) Events() []RewardClaimedEvent {
	events := make([]RewardClaimedEvent, len(p.events))
	copy(events, p.events)
	return events
}

// Pause blocks claims; authority only
func (p *Pool) Pause(caller common.Address) error {
	if err := p.requireAuthority(caller, roles.Pauser); err != nil {
		return err
	}
	p.paused = true
	log.L().Info("reward pool paused", zap.String("pool", p.name), zap.String("caller", caller.String()))
	return nil
}

// Unpause re-enables claims; authority only
func (p *Pool) Unpause(caller common.Address) error {
	if err := p.requireAuthority(caller, roles.Pauser); err != nil {
		return err
	}
	p.paused = false
	log.L().Info("reward pool unpaused", zap.String("pool", p.name), zap.String("caller", caller.String()))
	return nil
}

// DepositRewards funds the pool; reward admin only
func (p *Pool) DepositRewards(caller common.Address, amount *big.Int) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := p.requireAuthority(caller, roles.RewardAdmin); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "deposit amount must be positive")
	}
	if err := p.ledger.Transfer(caller, p.addr, amount); err != nil {
		return err
	}
	p.available.Add(p.available, amount)
	p.totalDeposited.Add(p.totalDeposited, amount)
	log.L().Info("rewards deposited",
		zap.String("pool", p.name),
		zap.String("amount", amount.String()),
		zap.String("available", p.available.String()))
	return nil
}

// WithdrawRewards removes undistributed funds from the pool; reward admin only
func (p *Pool) WithdrawRewards(caller common.Address, amount *big.Int) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := p.requireAuthority(caller, roles.RewardAdmin); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "withdraw amount must be positive")
	}
	if amount.Cmp(p.available) > 0 {
		return errors.Wrapf(ErrInsufficientAvailableRewards, "available %s, requested %s", p.available, amount)
	}
	if err := p.ledger.Transfer(p.addr, caller, amount); err != nil {
		return err
	}
	p.available.Sub(p.available, amount)
	log.L().Info("rewards withdrawn",
		zap.String("pool", p.name),
		zap.String("amount", amount.String()),
		zap.String("available", p.available.String()))
	return nil
}

// ClaimRewardFor pays a countersigned claim to account. The signature is
// always validated against the target account, never the caller; a caller
// other than the account itself must hold the batch-claimer role.
func (p *Pool) ClaimRewardFor(caller, account common.Address, amount *big.Int, orderID uint64, sig []byte) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if p.paused {
		return errors.Wrapf(ErrPaused, "pool %s", p.name)
	}
	if caller != account && !p.roles.HasRole(roles.BatchClaimer, caller) {
		return errors.Wrapf(roles.ErrUnauthorized, "caller %s may not claim for %s", caller, account)
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "claim amount must be positive")
	}
	if err := authorization.CheckOrderValidity(orderID, amount, p.clock.Now()); err != nil {
		return err
	}
	recovered, err := p.authorizer.RecoverAction(account, amount, orderID, authorization.ActionClaim, sig)
	if err != nil {
		return err
	}
	if !p.roles.HasRole(roles.RewardManager, recovered) {
		return errors.Wrapf(authorization.ErrSignatureMismatch, "recovered signer %s is not a reward manager", recovered)
	}
	key := redeemKey{account: account, orderID: orderID}
	if p.redeemed[key] {
		return errors.Wrapf(authorization.ErrOrderAlreadyUsed, "order %d already redeemed for %s", orderID, account)
	}
	used, err := p.authorizer.IsOrderUsed(orderID)
	if err != nil {
		return err
	}
	if used {
		return errors.Wrapf(authorization.ErrOrderAlreadyUsed, "order %d", orderID)
	}
	if amount.Cmp(p.available) > 0 {
		return errors.Wrapf(ErrInsufficientAvailableRewards, "available %s, requested %s", p.available, amount)
	}

	snapshot := p.authorizer.Snapshot()
	if err := p.authorizer.UseOrder(orderID); err != nil {
		p.authorizer.Commit(snapshot)
		return err
	}
	if err := p.ledger.Transfer(p.addr, account, amount); err != nil {
		if rerr := p.authorizer.Revert(snapshot); rerr != nil {
			log.L().Error("failed to revert order registry", zap.Error(rerr))
		}
		return err
	}
	p.authorizer.Commit(snapshot)

	p.available.Sub(p.available, amount)
	p.totalClaimed.Add(p.totalClaimed, amount)
	p.redeemed[key] = true
	p.redeemJournal = append(p.redeemJournal, key)
	p.events = append(p.events, RewardClaimedEvent{
		Pool:    p.name,
		Account: account,
		OrderID: orderID,
		Amount:  new(big.Int).Set(amount),
	})
	_claimMtc.WithLabelValues(p.name).Inc()
	log.L().Debug("reward claimed",
		zap.String("pool", p.name),
		zap.String("account", account.String()),
		zap.Uint64("orderID", orderID),
		zap.String("amount", amount.String()))
	return nil
}

// Snapshot records the pool state, its order registry and, when supported,
// the token ledger
func (p *Pool) Snapshot() int {
	snapshot := poolSnapshot{
		available:      new(big.Int).Set(p.available),
		totalDeposited: new(big.Int).Set(p.totalDeposited),
		totalClaimed:   new(big.Int).Set(p.totalClaimed),
		redeemLen:      len(p.redeemJournal),
		eventsLen:      len(p.events),
		regSnapshot:    p.authorizer.Snapshot(),
		ledgerSnapshot: -1,
	}
	if snapshotter, ok := p.ledger.(tokens.Snapshotter); ok {
		snapshot.ledgerSnapshot = snapshotter.Snapshot()
	}
	p.snapshots = append(p.snapshots, snapshot)
	return len(p.snapshots) - 1
}

// Revert rolls the pool, its order registry and the token ledger back to the
// given snapshot
func (p *Pool) Revert(snapshot int) error {
	if snapshot < 0 || snapshot >= len(p.snapshots) {
		return errors.Errorf("invalid snapshot %d", snapshot)
	}
	s := p.snapshots[snapshot]
	p.available = s.available
	p.totalDeposited = s.totalDeposited
	p.totalClaimed = s.totalClaimed
	for _, key := range p.redeemJournal[s.redeemLen:] {
		delete(p.redeemed, key)
	}
	p.redeemJournal = p.redeemJournal[:s.redeemLen]
	p.events = p.events[:s.eventsLen]
	if err := p.authorizer.Revert(s.regSnapshot); err != nil {
		return err
	}
	if snapshotter, ok := p.ledger.(tokens.Snapshotter); ok && s.ledgerSnapshot >= 0 {
		if err := snapshotter.Revert(s.ledgerSnapshot); err != nil {
			return err
		}
	}
	p.snapshots = p.snapshots[:snapshot]
	return nil
}

// Commit discards the given snapshot, keeping the state
func (p *Pool) Commit(snapshot int) {
	if snapshot < 0 || snapshot >= len(p.snapshots) {
		return
	}
	s := p.snapshots[snapshot]
	p.authorizer.Commit(s.regSnapshot)
	if snapshotter, ok := p.ledger.(tokens.Snapshotter); ok && s.ledgerSnapshot >= 0 {
		snapshotter.Commit(s.ledgerSnapshot)
	}
	p.snapshots = p.snapshots[:snapshot]
}

func (p *Pool) requireAuthority(caller common.Address, role roles.Role) error {
	if caller == p.roles.Admin() || p.roles.HasRole(role, caller) {
		return nil
	}
	return errors.Wrapf(roles.ErrUnauthorized, "caller %s lacks %s", caller, role)
}

// enter is the re-entrancy guard on every fund-moving entry point
func (p *Pool) enter() (func(), error) {
	if p.entered {
		return nil, ErrReentrantCall
	}
	p.entered = true
	return func() { p.entered = false }, nil
}
