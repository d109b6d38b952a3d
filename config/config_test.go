// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	require.NoError(t, Default.Validate())
	require.Equal(t, big.NewInt(0).Exp(big.NewInt(10), big.NewInt(18), nil), Default.Staking.MinimumStakeAmount())

	tests := []struct {
		duration time.Duration
		bps      uint16
	}{
		{30 * 24 * time.Hour, 10500},
		{90 * 24 * time.Hour, 11000},
		{180 * 24 * time.Hour, 12500},
		{365 * 24 * time.Hour, 15000},
	}
	for _, tt := range tests {
		bps, ok := Default.Staking.MultiplierFor(tt.duration)
		require.True(t, ok)
		require.Equal(t, tt.bps, bps)
	}

	_, ok := Default.Staking.MultiplierFor(60 * 24 * time.Hour)
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	cfg := Default
	cfg.Staking.EarlyWithdrawalPenaltyPercent = 101
	require.Equal(t, ErrInvalidCfg, errors.Cause(cfg.Validate()))

	cfg = Default
	cfg.Staking.MinimumStake = "not-a-number"
	require.Equal(t, ErrInvalidCfg, errors.Cause(cfg.Validate()))

	cfg = Default
	cfg.Staking.CooldownPeriod = 0
	require.Equal(t, ErrInvalidCfg, errors.Cause(cfg.Validate()))

	cfg = Default
	cfg.Staking.LockTiers = nil
	require.Equal(t, ErrInvalidCfg, errors.Cause(cfg.Validate()))

	cfg = Default
	cfg.Staking.LockTiers = []LockTier{
		{Duration: Duration(30 * 24 * time.Hour), MultiplierBps: 10500},
		{Duration: Duration(30 * 24 * time.Hour), MultiplierBps: 11000},
	}
	require.Equal(t, ErrInvalidCfg, errors.Cause(cfg.Validate()))

	cfg = Default
	cfg.Staking.LockTiers = []LockTier{{Duration: Duration(30 * 24 * time.Hour), MultiplierBps: 1 << 16}}
	require.Error(t, cfg.Validate())
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
signing:
  name: SapienStaking
  version: "2"
  chainID: 8453
staking:
  cooldownPeriod: 336h
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := New(path)
	require.NoError(t, err)
	require.Equal(t, "2", cfg.Signing.Version)
	require.Equal(t, uint64(8453), cfg.Signing.ChainID)
	require.Equal(t, 336*time.Hour, cfg.Staking.CooldownPeriod.Std())
	// untouched fields keep their defaults
	require.Equal(t, uint64(20), cfg.Staking.EarlyWithdrawalPenaltyPercent)
	require.Len(t, cfg.Staking.LockTiers, 4)

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
