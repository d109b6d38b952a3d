// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Sapien-io/sapien-contracts-sub001/authorization"
	"github.com/Sapien-io/sapien-contracts-sub001/config"
	"github.com/Sapien-io/sapien-contracts-sub001/roles"
	"github.com/Sapien-io/sapien-contracts-sub001/tokens"
)

type stakingFixture struct {
	p        *Protocol
	cfg      config.Config
	domain   authorization.Domain
	ledger   *tokens.InMemoryLedger
	clk      *clock.Mock
	signerSK *ecdsa.PrivateKey
	admin    common.Address
	treasury common.Address
	user     common.Address
}

func newStakingFixture(t *testing.T) *stakingFixture {
	t.Helper()
	signerSK, err := crypto.GenerateKey()
	require.NoError(t, err)
	f := &stakingFixture{
		cfg:      config.Default,
		ledger:   tokens.NewInMemoryLedger(),
		clk:      clock.NewMock(),
		signerSK: signerSK,
		admin:    common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		treasury: common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		user:     common.HexToAddress("0x00000000000000000000000000000000000000b1"),
	}
	custody := common.HexToAddress("0x01")
	f.domain = authorization.NewDomain(f.cfg.Signing.Name, f.cfg.Signing.Version, f.cfg.Signing.ChainID, custody)
	f.p, err = NewProtocol(
		f.cfg, custody, f.treasury, crypto.PubkeyToAddress(signerSK.PublicKey),
		authorization.NewRegistry(), f.ledger, roles.NewRegistry(f.admin), f.clk,
	)
	require.NoError(t, err)
	// fund the user with 100x the minimum stake
	f.ledger.Mint(f.user, new(big.Int).Mul(f.minStake(), big.NewInt(100)))
	return f
}

func (f *stakingFixture) minStake() *big.Int { return f.cfg.Staking.MinimumStakeAmount() }

// stakes returns amount scaled in minimum-stake units
func (f *stakingFixture) stakes(n int64) *big.Int {
	return new(big.Int).Mul(f.minStake(), big.NewInt(n))
}

func (f *stakingFixture) sign(t *testing.T, amount *big.Int, orderID uint64, action authorization.ActionType) []byte {
	t.Helper()
	sig, err := authorization.Sign(f.domain.Hash(f.user, amount, orderID, action), f.signerSK)
	require.NoError(t, err)
	return sig
}

func (f *stakingFixture) stake(t *testing.T, amount *big.Int, lock time.Duration, orderID uint64) {
	t.Helper()
	require.NoError(t, f.p.Stake(f.user, amount, lock, orderID, f.sign(t, amount, orderID, authorization.ActionStake)))
}

func TestNewProtocol(t *testing.T) {
	f := newStakingFixture(t)

	_, err := NewProtocol(f.cfg, common.Address{}, f.treasury, f.user,
		authorization.NewRegistry(), f.ledger, roles.NewRegistry(f.admin), f.clk)
	require.Equal(t, ErrZeroAddress, errors.Cause(err))

	_, err = NewProtocol(f.cfg, common.HexToAddress("0x01"), f.treasury, f.user,
		nil, f.ledger, roles.NewRegistry(f.admin), f.clk)
	require.Error(t, err)

	badCfg := f.cfg
	badCfg.Staking.LockTiers = nil
	_, err = NewProtocol(badCfg, common.HexToAddress("0x01"), f.treasury, f.user,
		authorization.NewRegistry(), f.ledger, roles.NewRegistry(f.admin), f.clk)
	require.Equal(t, config.ErrInvalidCfg, errors.Cause(err))
}

func TestStake(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour
	amount := f.stakes(10)

	f.stake(t, amount, lock, 1)
	require.Equal(t, amount, f.ledger.BalanceOf(f.p.Addr()))
	require.Equal(t, amount, f.p.TotalStaked())
	pos, ok := f.p.Position(f.user, 1)
	require.True(t, ok)
	require.True(t, pos.Active)
	require.Equal(t, amount, pos.Principal)
	require.Equal(t, lock, pos.LockDuration)
	require.Equal(t, uint16(10500), pos.MultiplierBps)
	require.False(t, pos.CooldownPending())
	require.Len(t, f.p.Events(), 1)
	require.Equal(t, "Staked", f.p.Events()[0].Name())

	// each configured tier fixes its multiplier at creation
	for i, tier := range []struct {
		lock       time.Duration
		multiplier uint16
	}{
		{90 * 24 * time.Hour, 11000},
		{180 * 24 * time.Hour, 12500},
		{365 * 24 * time.Hour, 15000},
	} {
		orderID := uint64(10 + i)
		f.stake(t, f.minStake(), tier.lock, orderID)
		pos, ok := f.p.Position(f.user, orderID)
		require.True(t, ok)
		require.Equal(t, tier.multiplier, pos.MultiplierBps)
	}

	// replaying an order ID fails even with a valid signature
	err := f.p.Stake(f.user, amount, lock, 1, f.sign(t, amount, 1, authorization.ActionStake))
	require.Equal(t, authorization.ErrOrderAlreadyUsed, errors.Cause(err))

	err = f.p.Stake(f.user, f.stakes(0), lock, 2, f.sign(t, f.stakes(0), 2, authorization.ActionStake))
	require.Equal(t, ErrInvalidAmount, errors.Cause(err))

	below := new(big.Int).Sub(f.minStake(), big.NewInt(1))
	err = f.p.Stake(f.user, below, lock, 2, f.sign(t, below, 2, authorization.ActionStake))
	require.Equal(t, ErrBelowMinimumStake, errors.Cause(err))

	err = f.p.Stake(f.user, amount, 31*24*time.Hour, 2, f.sign(t, amount, 2, authorization.ActionStake))
	require.Equal(t, ErrInvalidLockPeriod, errors.Cause(err))

	// a signature by a key other than the designated signer never authorizes,
	// and the rejected order stays fresh
	strangerSK, err := crypto.GenerateKey()
	require.NoError(t, err)
	badSig, err := authorization.Sign(f.domain.Hash(f.user, amount, 2, authorization.ActionStake), strangerSK)
	require.NoError(t, err)
	err = f.p.Stake(f.user, amount, lock, 2, badSig)
	require.Equal(t, authorization.ErrSignatureMismatch, errors.Cause(err))
	f.stake(t, amount, lock, 2)
}

func TestStakeTransferFailureFreesOrder(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour

	// more than the user's balance, so the custody transfer fails after the
	// order was marked used
	amount := f.stakes(1000)
	sig := f.sign(t, amount, 1, authorization.ActionStake)
	err := f.p.Stake(f.user, amount, lock, 1, sig)
	require.Equal(t, tokens.ErrTransferFailed, errors.Cause(err))
	_, ok := f.p.Position(f.user, 1)
	require.False(t, ok)

	// the rollback freed the order for a retry
	f.ledger.Mint(f.user, amount)
	require.NoError(t, f.p.Stake(f.user, amount, lock, 1, sig))
}

func TestUnstakeLifecycle(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour
	amount := f.stakes(10)
	balanceBefore := f.ledger.BalanceOf(f.user)
	f.stake(t, amount, lock, 1)

	// initiating before lock expiry is rejected
	err := f.p.InitiateUnstake(f.user, amount, 2, 1, f.sign(t, amount, 2, authorization.ActionInitiateUnstake))
	require.Equal(t, ErrLockPeriodNotCompleted, errors.Cause(err))

	f.clk.Add(lock)
	require.NoError(t, f.p.InitiateUnstake(f.user, amount, 2, 1, f.sign(t, amount, 2, authorization.ActionInitiateUnstake)))
	pos, _ := f.p.Position(f.user, 1)
	require.True(t, pos.CooldownPending())

	// a second initiation while the cooldown is pending is rejected
	err = f.p.InitiateUnstake(f.user, amount, 3, 1, f.sign(t, amount, 3, authorization.ActionInitiateUnstake))
	require.Equal(t, ErrCooldownAlreadyInitiated, errors.Cause(err))

	// withdrawing before the cooldown elapsed is rejected
	err = f.p.Unstake(f.user, amount, 3, 1, f.sign(t, amount, 3, authorization.ActionUnstake))
	require.Equal(t, ErrCooldownPeriodNotCompleted, errors.Cause(err))

	f.clk.Add(f.cfg.Staking.CooldownPeriod.Std())

	// the withdrawn amount must equal the announced amount
	half := f.stakes(5)
	err = f.p.Unstake(f.user, half, 3, 1, f.sign(t, half, 3, authorization.ActionUnstake))
	require.Equal(t, ErrInvalidAmount, errors.Cause(err))

	require.NoError(t, f.p.Unstake(f.user, amount, 3, 1, f.sign(t, amount, 3, authorization.ActionUnstake)))
	require.Equal(t, balanceBefore, f.ledger.BalanceOf(f.user))
	require.Zero(t, f.p.TotalStaked().Sign())
	pos, ok := f.p.Position(f.user, 1)
	require.True(t, ok)
	require.False(t, pos.Active)

	// the redeemed position accepts no further actions
	err = f.p.InitiateUnstake(f.user, amount, 4, 1, f.sign(t, amount, 4, authorization.ActionInitiateUnstake))
	require.Equal(t, ErrPositionNotFound, errors.Cause(err))
}

func TestPartialUnstake(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour
	amount := f.stakes(10)
	half := f.stakes(5)
	f.stake(t, amount, lock, 1)
	f.clk.Add(lock)

	require.NoError(t, f.p.InitiateUnstake(f.user, half, 2, 1, f.sign(t, half, 2, authorization.ActionInitiateUnstake)))
	f.clk.Add(f.cfg.Staking.CooldownPeriod.Std())
	require.NoError(t, f.p.Unstake(f.user, half, 3, 1, f.sign(t, half, 3, authorization.ActionUnstake)))

	// a partial withdrawal keeps the position active with the cooldown reset
	pos, ok := f.p.Position(f.user, 1)
	require.True(t, ok)
	require.True(t, pos.Active)
	require.Equal(t, half, pos.Principal)
	require.False(t, pos.CooldownPending())
	require.Equal(t, half, f.p.TotalStaked())

	// the remainder goes through a fresh cooldown cycle
	require.NoError(t, f.p.InitiateUnstake(f.user, half, 4, 1, f.sign(t, half, 4, authorization.ActionInitiateUnstake)))
	f.clk.Add(f.cfg.Staking.CooldownPeriod.Std())
	require.NoError(t, f.p.Unstake(f.user, half, 5, 1, f.sign(t, half, 5, authorization.ActionUnstake)))
	pos, _ = f.p.Position(f.user, 1)
	require.False(t, pos.Active)
}

func TestInstantUnstake(t *testing.T) {
	f := newStakingFixture(t)
	lock := 90 * 24 * time.Hour
	amount := f.stakes(10)
	balanceBefore := f.ledger.BalanceOf(f.user)
	f.stake(t, amount, lock, 1)

	require.NoError(t, f.p.InstantUnstake(f.user, amount, 2, 1, f.sign(t, amount, 2, authorization.ActionInstantUnstake)))
	penalty := new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(20)), big.NewInt(100))
	payout := new(big.Int).Sub(amount, penalty)
	require.Equal(t, new(big.Int).Sub(balanceBefore, penalty), f.ledger.BalanceOf(f.user))
	require.Equal(t, penalty, f.ledger.BalanceOf(f.treasury))
	require.Equal(t, payout, new(big.Int).Sub(amount, f.ledger.BalanceOf(f.treasury)))
	pos, ok := f.p.Position(f.user, 1)
	require.True(t, ok)
	require.False(t, pos.Active)
	require.Zero(t, f.p.TotalStaked().Sign())

	// once the lock expired the regular unstake path applies
	f.stake(t, amount, lock, 3)
	f.clk.Add(lock)
	err := f.p.InstantUnstake(f.user, amount, 4, 3, f.sign(t, amount, 4, authorization.ActionInstantUnstake))
	require.Equal(t, ErrLockPeriodCompletedUseRegularUnstake, errors.Cause(err))
}

func TestInstantUnstakePartialDeactivates(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour
	amount := f.stakes(10)
	half := f.stakes(5)
	f.stake(t, amount, lock, 1)

	// an instant exit deactivates the whole position even for a partial
	// amount; the remainder stays in custody
	require.NoError(t, f.p.InstantUnstake(f.user, half, 2, 1, f.sign(t, half, 2, authorization.ActionInstantUnstake)))
	pos, ok := f.p.Position(f.user, 1)
	require.True(t, ok)
	require.False(t, pos.Active)
	require.Equal(t, half, pos.Principal)
	require.Equal(t, half, f.p.TotalStaked())
	require.Equal(t, half, f.ledger.BalanceOf(f.p.Addr()))

	err := f.p.InitiateUnstake(f.user, half, 3, 1, f.sign(t, half, 3, authorization.ActionInitiateUnstake))
	require.Equal(t, ErrPositionNotFound, errors.Cause(err))
}

func TestPenaltyRounding(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour

	// an amount not divisible by 5 forces the 20% penalty to round down
	amount := new(big.Int).Add(f.minStake(), big.NewInt(3))
	f.stake(t, amount, lock, 1)
	require.NoError(t, f.p.InstantUnstake(f.user, amount, 2, 1, f.sign(t, amount, 2, authorization.ActionInstantUnstake)))

	penalty := f.ledger.BalanceOf(f.treasury)
	expected := new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(20)), big.NewInt(100))
	require.Equal(t, expected, penalty)
	// payout and penalty add back up to the exited amount
	require.Zero(t, f.ledger.BalanceOf(f.p.Addr()).Sign())
}

func TestPauseBlocksActions(t *testing.T) {
	f := newStakingFixture(t)
	lock := 30 * 24 * time.Hour
	amount := f.stakes(10)

	err := f.p.Pause(f.user)
	require.Equal(t, roles.ErrUnauthorized, errors.Cause(err))

	require.NoError(t, f.p.Pause(f.admin))
	require.True(t, f.p.Paused())
	err = f.p.Stake(f.user, amount, lock, 1, f.sign(t, amount, 1, authorization.ActionStake))
	require.Equal(t, ErrPaused, errors.Cause(err))

	require.NoError(t, f.p.Unpause(f.admin))
	f.stake(t, amount, lock, 1)
}

func TestUpgrade(t *testing.T) {
	f := newStakingFixture(t)
	impl := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	err := f.p.UpgradeTo(f.admin, impl)
	require.Equal(t, roles.ErrUnauthorized, errors.Cause(err))

	err = f.p.AuthorizeUpgrade(f.user, impl)
	require.Equal(t, roles.ErrUnauthorized, errors.Cause(err))

	require.NoError(t, f.p.AuthorizeUpgrade(f.admin, impl))
	require.NoError(t, f.p.UpgradeTo(f.admin, impl))
	require.Equal(t, impl, f.p.Implementation())

	// the pending slot is cleared after the switch
	err = f.p.UpgradeTo(f.admin, impl)
	require.Equal(t, roles.ErrUnauthorized, errors.Cause(err))
}
