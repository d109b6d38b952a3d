// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package rewarding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Sapien-io/sapien-contracts-sub001/pkg/log"
)

// ErrRewardsContractPaused indicates a batch claim was attempted while one of
// the underlying pools is paused
var ErrRewardsContractPaused = errors.New("rewards contract is paused")

// BatchClaim is one claim request against a single pool
type BatchClaim struct {
	Amount  *big.Int
	OrderID uint64
	Sig     []byte
}

// BatchClaimer aggregates claims against two reward pools into one
// all-or-nothing action. Both pools must be unpaused for any batch to run;
// a zero-amount claim is a skip marker and consumes nothing.
type BatchClaimer struct {
	addr  common.Address
	poolA *Pool
	poolB *Pool
}

// NewBatchClaimer creates a batch claimer over the two pools. addr is the
// caller identity the claimer presents to the pools and must hold the
// batch-claimer role on both.
func NewBatchClaimer(addr common.Address, poolA, poolB *Pool) (*BatchClaimer, error) {
	if addr == (common.Address{}) {
		return nil, errors.Wrap(ErrZeroAddress, "batch claimer address must be set")
	}
	if poolA == nil || poolB == nil {
		return nil, errors.New("both pools must be set")
	}
	return &BatchClaimer{addr: addr, poolA: poolA, poolB: poolB}, nil
}

// Addr returns the caller identity of the batch claimer
func (b *BatchClaimer) Addr() common.Address { return b.addr }

// ClaimAll claims from both pools for account in one atomic step. The pause
// state of both pools is checked up front, first pool first, before any claim
// is processed; a failure on either claim reverts both.
func (b *BatchClaimer) ClaimAll(account common.Address, claimA, claimB BatchClaim) error {
	if b.poolA.Paused() {
		return errors.Wrapf(ErrRewardsContractPaused, "pool %s", b.poolA.Name())
	}
	if b.poolB.Paused() {
		return errors.Wrapf(ErrRewardsContractPaused, "pool %s", b.poolB.Name())
	}

	snapA := b.poolA.Snapshot()
	snapB := b.poolB.Snapshot()
	revert := func() {
		if rerr := b.poolB.Revert(snapB); rerr != nil {
			log.L().Error("failed to revert pool", zap.String("pool", b.poolB.Name()), zap.Error(rerr))
		}
		if rerr := b.poolA.Revert(snapA); rerr != nil {
			log.L().Error("failed to revert pool", zap.String("pool", b.poolA.Name()), zap.Error(rerr))
		}
	}
	if err := b.claimOne(b.poolA, account, claimA); err != nil {
		revert()
		return err
	}
	if err := b.claimOne(b.poolB, account, claimB); err != nil {
		revert()
		return err
	}
	b.poolB.Commit(snapB)
	b.poolA.Commit(snapA)
	log.L().Debug("batch claim completed",
		zap.String("account", account.String()),
		zap.Uint64("orderA", claimA.OrderID),
		zap.Uint64("orderB", claimB.OrderID))
	return nil
}

func (b *BatchClaimer) claimOne(pool *Pool, account common.Address, claim BatchClaim) error {
	if claim.Amount == nil || claim.Amount.Sign() == 0 {
		return nil
	}
	return errors.Wrapf(
		pool.ClaimRewardFor(b.addr, account, claim.Amount, claim.OrderID, claim.Sig),
		"pool %s", pool.Name(),
	)
}
