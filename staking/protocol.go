// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package staking implements the lock-up staking ledger: positions keyed by
// (account, orderId) move through NonExistent -> Active -> CooldownPending ->
// Redeemed, with an early exit that forfeits a fixed penalty. Every mutation
// requires a countersignature by the designated off-chain signer and a
// single-use order ID.
package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Sapien-io/sapien-contracts-sub001/authorization"
	"github.com/Sapien-io/sapien-contracts-sub001/config"
	"github.com/Sapien-io/sapien-contracts-sub001/pkg/log"
	"github.com/Sapien-io/sapien-contracts-sub001/roles"
	"github.com/Sapien-io/sapien-contracts-sub001/tokens"
)

// Error definitions
var (
	// ErrPaused indicates the action is blocked by the pause flag
	ErrPaused = errors.New("staking is paused")
	// ErrInvalidAmount indicates a zero, negative or out-of-range amount
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrBelowMinimumStake indicates the stake is below the configured minimum
	ErrBelowMinimumStake = errors.New("stake amount below minimum")
	// ErrInvalidLockPeriod indicates the lock duration is not a configured tier
	ErrInvalidLockPeriod = errors.New("invalid lock period")
	// ErrLockPeriodNotCompleted indicates the position is still locked
	ErrLockPeriodNotCompleted = errors.New("lock period not completed")
	// ErrCooldownAlreadyInitiated indicates a cooldown is already pending
	ErrCooldownAlreadyInitiated = errors.New("cooldown already initiated")
	// ErrCooldownPeriodNotCompleted indicates the cooldown has not elapsed
	ErrCooldownPeriodNotCompleted = errors.New("cooldown period not completed")
	// ErrLockPeriodCompletedUseRegularUnstake indicates the lock has expired so the regular unstake path applies
	ErrLockPeriodCompletedUseRegularUnstake = errors.New("lock period completed, use regular unstake")
	// ErrPositionNotFound indicates no active position under (account, orderId)
	ErrPositionNotFound = errors.New("no active stake position")
	// ErrReentrantCall indicates a nested entry into a fund-moving operation
	ErrReentrantCall = errors.New("reentrant call")
	// ErrZeroAddress indicates a zero address at construction
	ErrZeroAddress = errors.New("zero address")
)

var (
	_stakingActionMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sapien_staking_actions_total",
		Help: "staking actions by type.",
	}, []string{"type"})
	_totalStakedMtc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sapien_staking_total_staked",
		Help: "total staked amount in base token units.",
	})
)

func init() {
	prometheus.MustRegister(_stakingActionMtc, _totalStakedMtc)
}

// Protocol is one staking ledger deployment
type Protocol struct {
	cfg        config.Staking
	addr       common.Address
	treasury   common.Address
	signer     common.Address
	authorizer *authorization.Authorizer
	ledger     tokens.Ledger
	roles      *roles.Registry
	clock      clock.Clock

	positions   map[PositionKey]*Position
	totalStaked *big.Int
	paused      bool
	entered     bool
	events      []Event

	pendingImplementation common.Address
	implementation        common.Address
}

// NewProtocol creates a staking ledger. addr is the custody account holding
// staked funds, treasury receives early-exit penalties, and signer is the
// off-chain authority whose key countersigns every action.
func NewProtocol(
	cfg config.Config,
	addr, treasury, signer common.Address,
	registry *authorization.Registry,
	ledger tokens.Ledger,
	roleRegistry *roles.Registry,
	clk clock.Clock,
) (*Protocol, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zero := common.Address{}
	if addr == zero || treasury == zero || signer == zero {
		return nil, errors.Wrap(ErrZeroAddress, "custody, treasury and signer addresses must be set")
	}
	if registry == nil || ledger == nil || roleRegistry == nil {
		return nil, errors.New("registry, ledger and role registry must be set")
	}
	if clk == nil {
		clk = clock.New()
	}
	domain := authorization.NewDomain(cfg.Signing.Name, cfg.Signing.Version, cfg.Signing.ChainID, addr)
	return &Protocol{
		cfg:         cfg.Staking,
		addr:        addr,
		treasury:    treasury,
		signer:      signer,
		authorizer:  authorization.NewAuthorizer(domain, registry),
		ledger:      ledger,
		roles:       roleRegistry,
		clock:       clk,
		positions:   make(map[PositionKey]*Position),
		totalStaked: big.NewInt(0),
	}, nil
}

// Addr returns the custody address, which is also the verifying contract of
// the signing domain
func (p *Protocol) Addr() common.Address { return p.addr }

// Paused returns the pause flag
func (p *Protocol) Paused() bool { return p.paused }

// TotalStaked returns the total principal across all positions
func (p *Protocol) TotalStaked() *big.Int { return new(big.Int).Set(p.totalStaked) }

// Position returns a copy of the position under (account, orderId)
func (p *Protocol) Position(account common.Address, orderID uint64) (Position, bool) {
	pos, ok := p.positions[PositionKey{Account: account, OrderID: orderID}]
	if !ok {
		return Position{}, false
	}
	return pos.clone(), true
}

// Events returns the events emitted so far
func (p *Protocol) Events() []Event {
	events := make([]Event, len(p.events))
	copy(events, p.events)
	return events
}

// Pause blocks all state-mutating entry points; authority only
func (p *Protocol) Pause(caller common.Address) error {
	if err := p.requireAuthority(caller, roles.Pauser); err != nil {
		return err
	}
	p.paused = true
	log.L().Info("staking paused", zap.String("caller", caller.String()))
	return nil
}

// Unpause re-enables state-mutating entry points; authority only
func (p *Protocol) Unpause(caller common.Address) error {
	if err := p.requireAuthority(caller, roles.Pauser); err != nil {
		return err
	}
	p.paused = false
	log.L().Info("staking unpaused", zap.String("caller", caller.String()))
	return nil
}

// AuthorizeUpgrade records the implementation the authority has approved;
// authority only
func (p *Protocol) AuthorizeUpgrade(caller, newImplementation common.Address) error {
	if err := p.requireAuthority(caller, roles.Upgrader); err != nil {
		return err
	}
	if newImplementation == (common.Address{}) {
		return errors.Wrap(ErrZeroAddress, "implementation address must be set")
	}
	p.pendingImplementation = newImplementation
	log.L().Info("upgrade authorized", zap.String("implementation", newImplementation.String()))
	return nil
}

// UpgradeTo switches to a previously authorized implementation; authority only
func (p *Protocol) UpgradeTo(caller, newImplementation common.Address) error {
	if err := p.requireAuthority(caller, roles.Upgrader); err != nil {
		return err
	}
	if newImplementation != p.pendingImplementation || newImplementation == (common.Address{}) {
		return errors.Wrapf(roles.ErrUnauthorized, "implementation %s is not authorized", newImplementation)
	}
	p.implementation = newImplementation
	p.pendingImplementation = common.Address{}
	log.L().Info("upgraded", zap.String("implementation", newImplementation.String()))
	return nil
}

// Implementation returns the active implementation address
func (p *Protocol) Implementation() common.Address { return p.implementation }

func (p *Protocol) requireAuthority(caller common.Address, role roles.Role) error {
	if caller == p.roles.Admin() || p.roles.HasRole(role, caller) {
		return nil
	}
	return errors.Wrapf(roles.ErrUnauthorized, "caller %s lacks %s", caller, role)
}

// enter is the re-entrancy guard on every fund-moving entry point
func (p *Protocol) enter() (func(), error) {
	if p.entered {
		return nil, ErrReentrantCall
	}
	p.entered = true
	return func() { p.entered = false }, nil
}

func (p *Protocol) activePosition(account common.Address, orderID uint64) (*Position, error) {
	pos, ok := p.positions[PositionKey{Account: account, OrderID: orderID}]
	if !ok || !pos.Active {
		return nil, errors.Wrapf(ErrPositionNotFound, "account %s, order %d", account, orderID)
	}
	return pos, nil
}

func (p *Protocol) emit(ev Event) {
	p.events = append(p.events, ev)
	_stakingActionMtc.WithLabelValues(ev.Name()).Inc()
	gauge, _ := new(big.Float).SetInt(p.totalStaked).Float64()
	_totalStakedMtc.Set(gauge)
}
