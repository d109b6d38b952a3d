// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Sapien-io/sapien-contracts-sub001/authorization"
	"github.com/Sapien-io/sapien-contracts-sub001/pkg/log"
	"github.com/Sapien-io/sapien-contracts-sub001/tokens"
)

// Stake creates a new Active position under (caller, orderId). The lock
// duration must be a configured tier; the multiplier is fixed from the tier
// table at creation.
func (p *Protocol) Stake(
	caller common.Address,
	amount *big.Int,
	lockDuration time.Duration,
	orderID uint64,
	sig []byte,
) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if p.paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "stake amount must be positive")
	}
	if amount.Cmp(p.cfg.MinimumStakeAmount()) < 0 {
		return errors.Wrapf(ErrBelowMinimumStake, "amount %s, minimum %s", amount, p.cfg.MinimumStake)
	}
	multiplier, ok := p.cfg.MultiplierFor(lockDuration)
	if !ok {
		return errors.Wrapf(ErrInvalidLockPeriod, "%s is not a configured lock tier", lockDuration)
	}

	snapshot := p.authorizer.Snapshot()
	if err := p.authorizer.Authorize(p.signer, caller, amount, orderID, authorization.ActionStake, sig); err != nil {
		p.authorizer.Commit(snapshot)
		return err
	}
	if err := p.ledger.Transfer(caller, p.addr, amount); err != nil {
		if rerr := p.authorizer.Revert(snapshot); rerr != nil {
			log.L().Error("failed to revert order registry", zap.Error(rerr))
		}
		return err
	}
	p.authorizer.Commit(snapshot)

	now := p.clock.Now()
	p.positions[PositionKey{Account: caller, OrderID: orderID}] = &Position{
		Principal:      new(big.Int).Set(amount),
		LockDuration:   lockDuration,
		StartTime:      now,
		MultiplierBps:  multiplier,
		CooldownAmount: big.NewInt(0),
		Active:         true,
	}
	p.totalStaked.Add(p.totalStaked, amount)
	p.emit(StakedEvent{
		Account:       caller,
		OrderID:       orderID,
		Amount:        new(big.Int).Set(amount),
		LockDuration:  lockDuration,
		MultiplierBps: multiplier,
	})
	log.L().Debug("staked",
		zap.String("account", caller.String()),
		zap.Uint64("orderID", orderID),
		zap.String("amount", amount.String()),
		zap.Duration("lockDuration", lockDuration))
	return nil
}

// InitiateUnstake announces the intent to withdraw amount from the position
// created by stakeOrderId, starting the mandatory cooldown. No funds move.
func (p *Protocol) InitiateUnstake(
	caller common.Address,
	amount *big.Int,
	newOrderID, stakeOrderID uint64,
	sig []byte,
) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if p.paused {
		return ErrPaused
	}
	pos, err := p.activePosition(caller, stakeOrderID)
	if err != nil {
		return err
	}
	now := p.clock.Now()
	if now.Before(pos.LockExpiry()) {
		return errors.Wrapf(ErrLockPeriodNotCompleted, "lock expires at %s", pos.LockExpiry())
	}
	if pos.CooldownPending() {
		return errors.Wrapf(ErrCooldownAlreadyInitiated, "cooldown started at %s", pos.CooldownStart)
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(pos.Principal) > 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount must be in (0, %s]", pos.Principal)
	}
	if err := p.authorizer.Authorize(p.signer, caller, amount, newOrderID, authorization.ActionInitiateUnstake, sig); err != nil {
		return err
	}

	pos.CooldownStart = now
	pos.CooldownAmount = new(big.Int).Set(amount)
	p.emit(UnstakingInitiatedEvent{
		Account:       caller,
		StakeOrderID:  stakeOrderID,
		Amount:        new(big.Int).Set(amount),
		CooldownStart: now,
	})
	log.L().Debug("unstaking initiated",
		zap.String("account", caller.String()),
		zap.Uint64("stakeOrderID", stakeOrderID),
		zap.String("amount", amount.String()))
	return nil
}

// Unstake withdraws the announced amount once the cooldown has elapsed,
// resets the cooldown fields and deactivates the position when the principal
// reaches zero
func (p *Protocol) Unstake(
	caller common.Address,
	amount *big.Int,
	newOrderID, stakeOrderID uint64,
	sig []byte,
) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if p.paused {
		return ErrPaused
	}
	pos, err := p.activePosition(caller, stakeOrderID)
	if err != nil {
		return err
	}
	if !pos.CooldownPending() {
		return errors.Wrap(ErrCooldownPeriodNotCompleted, "no cooldown pending")
	}
	if amount == nil || amount.Cmp(pos.CooldownAmount) != 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount must equal cooldown amount %s", pos.CooldownAmount)
	}
	ready := pos.CooldownStart.Add(p.cfg.CooldownPeriod.Std())
	if p.clock.Now().Before(ready) {
		return errors.Wrapf(ErrCooldownPeriodNotCompleted, "cooldown ends at %s", ready)
	}

	snapshot := p.authorizer.Snapshot()
	if err := p.authorizer.Authorize(p.signer, caller, amount, newOrderID, authorization.ActionUnstake, sig); err != nil {
		p.authorizer.Commit(snapshot)
		return err
	}
	if err := p.ledger.Transfer(p.addr, caller, amount); err != nil {
		if rerr := p.authorizer.Revert(snapshot); rerr != nil {
			log.L().Error("failed to revert order registry", zap.Error(rerr))
		}
		return err
	}
	p.authorizer.Commit(snapshot)

	pos.Principal.Sub(pos.Principal, amount)
	pos.CooldownStart = time.Time{}
	pos.CooldownAmount = big.NewInt(0)
	if pos.Principal.Sign() == 0 {
		pos.Active = false
	}
	p.totalStaked.Sub(p.totalStaked, amount)
	p.emit(UnstakedEvent{
		Account:      caller,
		StakeOrderID: stakeOrderID,
		Amount:       new(big.Int).Set(amount),
		Remaining:    new(big.Int).Set(pos.Principal),
	})
	log.L().Debug("unstaked",
		zap.String("account", caller.String()),
		zap.Uint64("stakeOrderID", stakeOrderID),
		zap.String("amount", amount.String()),
		zap.String("remaining", pos.Principal.String()))
	return nil
}

// InstantUnstake exits during the lock period, forfeiting the configured
// penalty percentage to the treasury. The position is fully deactivated even
// when amount is less than the principal; any remainder stays in custody.
func (p *Protocol) InstantUnstake(
	caller common.Address,
	amount *big.Int,
	newOrderID, stakeOrderID uint64,
	sig []byte,
) error {
	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()
	if p.paused {
		return ErrPaused
	}
	pos, err := p.activePosition(caller, stakeOrderID)
	if err != nil {
		return err
	}
	if !p.clock.Now().Before(pos.LockExpiry()) {
		return errors.Wrapf(ErrLockPeriodCompletedUseRegularUnstake, "lock expired at %s", pos.LockExpiry())
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(pos.Principal) > 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount must be in (0, %s]", pos.Principal)
	}

	regSnapshot := p.authorizer.Snapshot()
	if err := p.authorizer.Authorize(p.signer, caller, amount, newOrderID, authorization.ActionInstantUnstake, sig); err != nil {
		p.authorizer.Commit(regSnapshot)
		return err
	}

	penalty := new(big.Int).Div(
		new(big.Int).Mul(amount, new(big.Int).SetUint64(p.cfg.EarlyWithdrawalPenaltyPercent)),
		big.NewInt(100),
	)
	payout := new(big.Int).Sub(amount, penalty)

	ledgerSnapshotter, _ := p.ledger.(tokens.Snapshotter)
	ledgerSnapshot := -1
	if ledgerSnapshotter != nil {
		ledgerSnapshot = ledgerSnapshotter.Snapshot()
	}
	revert := func() {
		if ledgerSnapshotter != nil {
			if rerr := ledgerSnapshotter.Revert(ledgerSnapshot); rerr != nil {
				log.L().Error("failed to revert ledger", zap.Error(rerr))
			}
		}
		if rerr := p.authorizer.Revert(regSnapshot); rerr != nil {
			log.L().Error("failed to revert order registry", zap.Error(rerr))
		}
	}
	if err := p.ledger.Transfer(p.addr, caller, payout); err != nil {
		revert()
		return err
	}
	if err := p.ledger.Transfer(p.addr, p.treasury, penalty); err != nil {
		revert()
		return err
	}
	if ledgerSnapshotter != nil {
		ledgerSnapshotter.Commit(ledgerSnapshot)
	}
	p.authorizer.Commit(regSnapshot)

	// full exit only: the position deactivates even on a partial amount
	pos.Principal.Sub(pos.Principal, amount)
	pos.CooldownStart = time.Time{}
	pos.CooldownAmount = big.NewInt(0)
	pos.Active = false
	p.totalStaked.Sub(p.totalStaked, amount)
	p.emit(InstantUnstakeEvent{
		Account:      caller,
		StakeOrderID: stakeOrderID,
		Amount:       new(big.Int).Set(amount),
		Penalty:      penalty,
		Payout:       payout,
	})
	log.L().Debug("instant unstake",
		zap.String("account", caller.String()),
		zap.Uint64("stakeOrderID", stakeOrderID),
		zap.String("amount", amount.String()),
		zap.String("penalty", penalty.String()))
	return nil
}
